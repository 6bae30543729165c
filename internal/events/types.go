package events

import "context"

// Op is the kind of change applied to a document.
type Op string

const (
	OpAdded   Op = "added"
	OpChanged Op = "changed"
	OpRemoved Op = "removed"
)

// Collection names carried in change envelopes. These are the stable string
// identifiers of the persisted record shapes.
const (
	CollectionServers         = "jr_servers"
	CollectionSubscribers     = "jr_subscribers"
	CollectionCalls           = "jr_calls"
	CollectionCallPeers       = "jr_call_peers"
	CollectionRouters         = "jr_mediasoup_routers"
	CollectionProducerServers = "jr_mediasoup_producer_servers"
	CollectionConnectRequests = "jr_mediasoup_monitor_connect_requests"
	CollectionSettings        = "jr_settings"
	CollectionUsers           = "jr_users"
)

// Pseudo-collections: one-document, key-stable views derived from state
// rather than raw records.
const (
	PseudoHasUsers = "hasUsers"
	PseudoTeamName = "teamName"
)

// Handler consumes change envelopes for a collection.
type Handler func(ctx context.Context, env Envelope)

// Publisher is the write side of the change-notification bus. Repositories
// and services publish an envelope for every mutation they make.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}
