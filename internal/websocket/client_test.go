package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/events"
)

func TestSubscriptionMatchesByCollection(t *testing.T) {
	sub := &Subscription{Name: events.CollectionCallPeers}

	env := events.NewEnvelope(events.CollectionCallPeers, uuid.New().String(), events.OpAdded, map[string]string{"call_id": "c1"})
	require.True(t, sub.matches(env))

	other := events.NewEnvelope(events.CollectionCalls, uuid.New().String(), events.OpAdded, nil)
	require.False(t, sub.matches(other))
}

func TestSubscriptionContextFilters(t *testing.T) {
	sub := &Subscription{
		Name:    events.CollectionCallPeers,
		Context: map[string]string{"call_id": "c1"},
	}

	match := events.NewEnvelope(events.CollectionCallPeers, uuid.New().String(), events.OpChanged, map[string]string{"call_id": "c1", "muted": "true"})
	require.True(t, sub.matches(match))

	otherCall := events.NewEnvelope(events.CollectionCallPeers, uuid.New().String(), events.OpChanged, map[string]string{"call_id": "c2"})
	require.False(t, sub.matches(otherCall))

	missingField := events.NewEnvelope(events.CollectionCallPeers, uuid.New().String(), events.OpChanged, map[string]string{"muted": "true"})
	require.False(t, sub.matches(missingField))
}

func TestRemovedEnvelopesMatchWithoutBody(t *testing.T) {
	sub := &Subscription{
		Name:    events.CollectionCallPeers,
		Context: map[string]string{"call_id": "c1"},
	}
	removed := events.NewEnvelope(events.CollectionCallPeers, uuid.New().String(), events.OpRemoved, nil)
	require.True(t, sub.matches(removed))
}

func TestSubscriptionKeyIsStable(t *testing.T) {
	a := &Subscription{Name: "jr_call_peers", Context: map[string]string{"call_id": "c1", "hunt_id": "h1"}}
	b := &Subscription{Name: "jr_call_peers", Context: map[string]string{"hunt_id": "h1", "call_id": "c1"}}
	require.Equal(t, a.Key(), b.Key())

	c := &Subscription{Name: "jr_call_peers", Context: map[string]string{"call_id": "c2"}}
	require.NotEqual(t, a.Key(), c.Key())
}

func TestTrySendNeverBlocksOnFullBuffer(t *testing.T) {
	client := NewClient(uuid.New(), nil)
	client.Send = make(chan []byte, 1)

	require.True(t, client.trySend([]byte("one")))

	// the write loop is not draining; the frame is dropped, not queued
	done := make(chan bool, 1)
	go func() { done <- client.trySend([]byte("two")) }()
	select {
	case delivered := <-done:
		require.False(t, delivered)
	case <-time.After(time.Second):
		t.Fatal("send on a full buffer blocked")
	}
	require.Len(t, client.Send, 1)
}

func TestClientSubscriptionLifecycle(t *testing.T) {
	client := NewClient(uuid.New(), nil)
	sub := &Subscription{SubscriberID: uuid.New().String(), Name: "teamName"}
	client.addSubscription(sub)

	env := events.NewEnvelope("teamName", "teamName", events.OpChanged, map[string]string{"name": "Plunderers"})
	require.Len(t, client.matchingSubscriptions(env), 1)

	removed := client.removeSubscription(sub.Key())
	require.Equal(t, sub.SubscriberID, removed.SubscriberID)
	require.Empty(t, client.matchingSubscriptions(env))
	require.Nil(t, client.removeSubscription(sub.Key()))
}
