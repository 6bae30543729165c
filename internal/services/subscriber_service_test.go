package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
)

type subscriberFixture struct {
	svc     *SubscriberService
	subs    *memSubscriberRepo
	servers *memServerRepo
	bus     *capturingBus
	server  uuid.UUID
}

func newSubscriberFixture(t *testing.T) *subscriberFixture {
	t.Helper()
	f := &subscriberFixture{
		subs:    newMemSubscriberRepo(),
		servers: newMemServerRepo(),
		bus:     &capturingBus{},
	}
	f.svc = NewSubscriberService(f.subs, f.servers, f.bus, nil)

	reg := NewRegistryService(f.servers, f.subs, newMemCallRepo(), newMemRouterRepo(), newMemProducerRepo(), newMemConnectRequestRepo(), nil, nil, nil)
	server, err := reg.RegisterServer(context.Background(), "host-a", 100)
	require.NoError(t, err)
	f.server = server.ID
	return f
}

func TestSubscribeIsIdempotent(t *testing.T) {
	f := newSubscriberFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	viewContext := map[string]string{"call_id": uuid.New().String()}

	first, err := f.svc.Subscribe(ctx, f.server, "conn-1", userID, "jr_call_peers", viewContext)
	require.NoError(t, err)
	second, err := f.svc.Subscribe(ctx, f.server, "conn-1", userID, "jr_call_peers", viewContext)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, f.subs.count())
}

func TestSubscribeDistinguishesScope(t *testing.T) {
	f := newSubscriberFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	a, err := f.svc.Subscribe(ctx, f.server, "conn-1", userID, "jr_call_peers", map[string]string{"call_id": uuid.New().String()})
	require.NoError(t, err)
	b, err := f.svc.Subscribe(ctx, f.server, "conn-1", userID, "jr_call_peers", map[string]string{"call_id": uuid.New().String()})
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)

	// same view from a different connection is a distinct subscription
	c, err := f.svc.Subscribe(ctx, f.server, "conn-2", userID, "teamName", nil)
	require.NoError(t, err)
	d, err := f.svc.Subscribe(ctx, f.server, "conn-1", userID, "teamName", nil)
	require.NoError(t, err)
	require.NotEqual(t, c.ID, d.ID)
}

func TestSubscribeRequiresKnownServer(t *testing.T) {
	f := newSubscriberFixture(t)
	_, err := f.svc.Subscribe(context.Background(), uuid.New(), "conn-1", uuid.New(), "teamName", nil)
	require.ErrorIs(t, err, jr_errors.ErrNotFound)
}

func TestSubscribeValidatesInput(t *testing.T) {
	f := newSubscriberFixture(t)
	_, err := f.svc.Subscribe(context.Background(), f.server, "", uuid.New(), "teamName", nil)
	require.ErrorIs(t, err, jr_errors.ErrInvalidInput)
	_, err = f.svc.Subscribe(context.Background(), f.server, "conn-1", uuid.New(), "", nil)
	require.ErrorIs(t, err, jr_errors.ErrInvalidInput)
}

func TestDropConnectionRemovesAllSubscriptions(t *testing.T) {
	f := newSubscriberFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.svc.Subscribe(ctx, f.server, "conn-1", userID, "teamName", nil)
	require.NoError(t, err)
	_, err = f.svc.Subscribe(ctx, f.server, "conn-1", userID, "hasUsers", nil)
	require.NoError(t, err)
	_, err = f.svc.Subscribe(ctx, f.server, "conn-2", userID, "teamName", nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.DropConnection(ctx, f.server, "conn-1"))
	require.Equal(t, 1, f.subs.count())
}

func TestUnsubscribeRemovesOneSubscription(t *testing.T) {
	f := newSubscriberFixture(t)
	ctx := context.Background()

	sub, err := f.svc.Subscribe(ctx, f.server, "conn-1", uuid.New(), "teamName", nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.Unsubscribe(ctx, sub.ID))
	require.Equal(t, 0, f.subs.count())

	err = f.svc.Unsubscribe(ctx, sub.ID)
	require.Error(t, err)
}
