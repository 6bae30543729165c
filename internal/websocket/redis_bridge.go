package websocket

import (
	"context"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/events"
)

// RedisBridge forwards change envelopes arriving on the event bus to the
// hub, which fans them out to subscribed clients.
type RedisBridge struct {
	bus *events.RedisEventBus
	hub *Hub
}

func NewRedisBridge(bus *events.RedisEventBus, hub *Hub) *RedisBridge {
	return &RedisBridge{bus: bus, hub: hub}
}

// Attach registers the hub against every collection clients can follow.
func (b *RedisBridge) Attach() {
	forward := func(_ context.Context, env events.Envelope) {
		b.hub.Broadcast(env)
	}
	for _, collection := range []string{
		events.CollectionServers,
		events.CollectionCalls,
		events.CollectionCallPeers,
		events.CollectionRouters,
		events.CollectionProducerServers,
		events.PseudoHasUsers,
		events.PseudoTeamName,
	} {
		b.bus.Subscribe(events.CollectionChannel(collection), forward)
	}
}
