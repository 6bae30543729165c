package sfu

import (
	"context"

	"github.com/google/uuid"
)

// RouterInfo is what the SFU hands back when a router is created.
type RouterInfo struct {
	RouterID        uuid.UUID
	RTPCapabilities string
}

// ConnectParams carries the network half of a transport-connect handshake.
type ConnectParams struct {
	TransportID    uuid.UUID
	IP             string
	Port           int
	SRTPParameters string
}

// Engine is the control surface of the out-of-process SFU worker. The
// coordination layer only creates/tears down routers and drives transport
// connects; all media-plane work stays inside the worker.
type Engine interface {
	CreateRouter(ctx context.Context) (RouterInfo, error)
	CloseRouter(ctx context.Context, routerID uuid.UUID) error
	ConnectTransport(ctx context.Context, params ConnectParams) error
}
