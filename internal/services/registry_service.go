package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/registry"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/events"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/repository"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
	"github.com/Palindrome-Puzzles/jolly-roger/pkg/logger"
)

// HeartbeatCache is the optional Redis-side accelerator for liveness checks.
type HeartbeatCache interface {
	Beat(ctx context.Context, serverID string, at time.Time) error
	Forget(ctx context.Context, serverID string) error
}

// RegistryService tracks live application-server processes and reaps
// everything a dead server owned. Cleanup keys off the shared store, so any
// node can reap any other node's leftovers.
type RegistryService struct {
	servers     repository.ServerRepository
	subscribers repository.SubscriberRepository
	calls       repository.CallRepository
	routers     repository.RouterRepository
	producers   repository.ProducerRepository
	requests    repository.ConnectRequestRepository
	heartbeats  HeartbeatCache
	bus         events.Publisher
	log         *logger.Logger
	now         func() time.Time
}

func NewRegistryService(
	servers repository.ServerRepository,
	subscribers repository.SubscriberRepository,
	calls repository.CallRepository,
	routers repository.RouterRepository,
	producers repository.ProducerRepository,
	requests repository.ConnectRequestRepository,
	heartbeats HeartbeatCache,
	bus events.Publisher,
	log *logger.Logger,
) *RegistryService {
	return &RegistryService{
		servers:     servers,
		subscribers: subscribers,
		calls:       calls,
		routers:     routers,
		producers:   producers,
		requests:    requests,
		heartbeats:  heartbeats,
		bus:         bus,
		log:         log,
		now:         time.Now,
	}
}

// RegisterServer records this process in the shared registry.
func (s *RegistryService) RegisterServer(ctx context.Context, hostname string, pid int) (registry.Server, error) {
	if hostname == "" || pid <= 0 {
		return registry.Server{}, fmt.Errorf("register server: %w", jr_errors.ErrInvalidInput)
	}
	now := s.now()
	server := registry.Server{
		ID:        uuid.New(),
		Hostname:  hostname,
		PID:       pid,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.servers.Create(ctx, &server); err != nil {
		return registry.Server{}, fmt.Errorf("register server: %w", err)
	}
	if s.heartbeats != nil {
		_ = s.heartbeats.Beat(ctx, server.ID.String(), now)
	}
	s.publish(ctx, events.NewEnvelope(events.CollectionServers, server.ID.String(), events.OpAdded, server))
	return server, nil
}

// Heartbeat refreshes the server's liveness timestamp.
func (s *RegistryService) Heartbeat(ctx context.Context, serverID uuid.UUID) error {
	now := s.now()
	if err := s.servers.Heartbeat(ctx, serverID, now); err != nil {
		return fmt.Errorf("heartbeat %s: %w", serverID, err)
	}
	if s.heartbeats != nil {
		_ = s.heartbeats.Beat(ctx, serverID.String(), now)
	}
	return nil
}

// ListLiveServers returns servers that heartbeated within the staleness window.
func (s *RegistryService) ListLiveServers(ctx context.Context, staleness time.Duration) ([]registry.Server, error) {
	return s.servers.ListLive(ctx, s.now().Add(-staleness))
}

// UnregisterServer removes this process's registry entry and everything it
// owns. Called on graceful shutdown.
func (s *RegistryService) UnregisterServer(ctx context.Context, serverID uuid.UUID) error {
	return s.reapServer(ctx, serverID)
}

// ReapDeadServers finds servers with no heartbeat inside the staleness window
// and removes them along with their owned Subscribers, Routers,
// ProducerServers and ConnectRequests. Malformed or already-reaped entries
// are skipped, never fatal.
func (s *RegistryService) ReapDeadServers(ctx context.Context, staleness time.Duration) (int, error) {
	stale, err := s.servers.ListStale(ctx, s.now().Add(-staleness))
	if err != nil {
		return 0, fmt.Errorf("list stale servers: %w", err)
	}

	reaped := 0
	for _, server := range stale {
		if err := s.reapServer(ctx, server.ID); err != nil {
			if s.log != nil {
				s.log.Warnf("skipping dead server %s (%s pid %d): %v", server.ID, server.Hostname, server.PID, err)
			}
			continue
		}
		if s.log != nil {
			s.log.Infof("reaped dead server %s (%s pid %d)", server.ID, server.Hostname, server.PID)
		}
		reaped++
	}
	return reaped, nil
}

func (s *RegistryService) reapServer(ctx context.Context, serverID uuid.UUID) error {
	if n, err := s.subscribers.DeleteByServer(ctx, serverID); err != nil {
		return fmt.Errorf("reap subscribers: %w", err)
	} else if n > 0 {
		s.publish(ctx, events.NewEnvelope(events.CollectionSubscribers, serverID.String(), events.OpRemoved, nil))
	}

	// A dead owning server ends its calls: clients re-join and provision a
	// fresh call rather than resuming a router nobody owns.
	routers, err := s.routers.ListByServer(ctx, serverID)
	if err != nil {
		return fmt.Errorf("list routers: %w", err)
	}
	for _, router := range routers {
		if err := s.calls.Close(ctx, router.CallID); err != nil {
			if s.log != nil {
				s.log.Warnf("could not close call %s for dead router %s: %v", router.CallID, router.ID, err)
			}
		}
		s.publish(ctx, events.NewEnvelope(events.CollectionRouters, router.ID.String(), events.OpRemoved, nil))
	}
	if _, err := s.routers.DeleteByServer(ctx, serverID); err != nil {
		return fmt.Errorf("reap routers: %w", err)
	}

	if n, err := s.producers.RemoveByServer(ctx, serverID); err != nil {
		return fmt.Errorf("reap producers: %w", err)
	} else if n > 0 {
		s.publish(ctx, events.NewEnvelope(events.CollectionProducerServers, serverID.String(), events.OpRemoved, nil))
	}

	if _, err := s.requests.DeleteByServer(ctx, serverID); err != nil {
		return fmt.Errorf("reap connect requests: %w", err)
	}

	if _, err := s.calls.RemovePeersByServer(ctx, serverID); err != nil {
		return fmt.Errorf("reap call peers: %w", err)
	}

	if err := s.servers.Delete(ctx, serverID); err != nil && !errors.Is(err, jr_errors.ErrNotFound) {
		return fmt.Errorf("delete server: %w", err)
	}
	if s.heartbeats != nil {
		_ = s.heartbeats.Forget(ctx, serverID.String())
	}
	s.publish(ctx, events.NewEnvelope(events.CollectionServers, serverID.String(), events.OpRemoved, nil))
	return nil
}

// RunHeartbeatLoop heartbeats at the configured interval until ctx is done.
func (s *RegistryService) RunHeartbeatLoop(ctx context.Context, serverID uuid.UUID, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Heartbeat(ctx, serverID); err != nil && s.log != nil {
				s.log.Errorf("heartbeat failed: %v", err)
			}
		}
	}
}

func (s *RegistryService) publish(ctx context.Context, env events.Envelope) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, env); err != nil && s.log != nil {
		s.log.Warnf("publish %s/%s: %v", env.Collection, env.Op, err)
	}
}
