package websocket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/events"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/repository"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/services"
)

// ViewSource produces the initial document set for a view, sent to a client
// as a burst of "added" envelopes when its subscription is established.
type ViewSource func(ctx context.Context, viewContext map[string]string) ([]events.Envelope, error)

// ViewRegistry maps subscribable view names to their initial-state sources.
type ViewRegistry struct {
	sources map[string]ViewSource
}

func NewViewRegistry() *ViewRegistry {
	return &ViewRegistry{sources: make(map[string]ViewSource)}
}

func (r *ViewRegistry) Register(name string, source ViewSource) {
	r.sources[name] = source
}

// Resolve returns the source for a view name, or ErrNotFound for views that
// cannot be subscribed to.
func (r *ViewRegistry) Resolve(name string) (ViewSource, error) {
	source, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("view %q: %w", name, jr_errors.ErrNotFound)
	}
	return source, nil
}

// DefaultViewRegistry wires up the standard view set: the two derived
// one-document views plus the record views clients follow during a call.
func DefaultViewRegistry(
	pubs *services.PublicationService,
	servers repository.ServerRepository,
	calls repository.CallRepository,
	producers repository.ProducerRepository,
	staleness time.Duration,
) *ViewRegistry {
	reg := NewViewRegistry()

	reg.Register(events.PseudoHasUsers, func(ctx context.Context, _ map[string]string) ([]events.Envelope, error) {
		doc, err := pubs.HasUsersDoc(ctx)
		if err != nil {
			return nil, err
		}
		return []events.Envelope{events.NewEnvelope(events.PseudoHasUsers, events.PseudoHasUsers, events.OpAdded, doc)}, nil
	})

	reg.Register(events.PseudoTeamName, func(ctx context.Context, _ map[string]string) ([]events.Envelope, error) {
		doc, err := pubs.TeamNameDoc(ctx)
		if err != nil {
			return nil, err
		}
		return []events.Envelope{events.NewEnvelope(events.PseudoTeamName, events.PseudoTeamName, events.OpAdded, doc)}, nil
	})

	reg.Register(events.CollectionServers, func(ctx context.Context, _ map[string]string) ([]events.Envelope, error) {
		live, err := servers.ListLive(ctx, time.Now().Add(-staleness))
		if err != nil {
			return nil, err
		}
		out := make([]events.Envelope, 0, len(live))
		for _, s := range live {
			out = append(out, events.NewEnvelope(events.CollectionServers, s.ID.String(), events.OpAdded, s))
		}
		return out, nil
	})

	reg.Register(events.CollectionCallPeers, func(ctx context.Context, viewContext map[string]string) ([]events.Envelope, error) {
		callID, err := contextCallID(viewContext)
		if err != nil {
			return nil, err
		}
		peers, err := calls.ListPeers(ctx, callID)
		if err != nil {
			return nil, err
		}
		out := make([]events.Envelope, 0, len(peers))
		for _, p := range peers {
			out = append(out, events.NewEnvelope(events.CollectionCallPeers, p.ID.String(), events.OpAdded, p))
		}
		return out, nil
	})

	reg.Register(events.CollectionProducerServers, func(ctx context.Context, viewContext map[string]string) ([]events.Envelope, error) {
		callID, err := contextCallID(viewContext)
		if err != nil {
			return nil, err
		}
		live, err := producers.ListLiveByCall(ctx, callID)
		if err != nil {
			return nil, err
		}
		out := make([]events.Envelope, 0, len(live))
		for _, p := range live {
			out = append(out, events.NewEnvelope(events.CollectionProducerServers, p.ID.String(), events.OpAdded, p))
		}
		return out, nil
	})

	return reg
}

func contextCallID(viewContext map[string]string) (uuid.UUID, error) {
	raw, ok := viewContext["call_id"]
	if !ok {
		return uuid.Nil, fmt.Errorf("missing call_id context: %w", jr_errors.ErrInvalidInput)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid call_id: %w", jr_errors.ErrInvalidInput)
	}
	return id, nil
}
