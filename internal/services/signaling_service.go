package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/mediasoup"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/events"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/repository"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/sfu"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
	"github.com/Palindrome-Puzzles/jolly-roger/pkg/logger"
)

// Notifier is the read side of the change bus the dispatcher wakes on.
type Notifier interface {
	Subscribe(channel string, handler events.Handler)
}

// RequestConnectParams is the input to the cross-server connect handshake.
type RequestConnectParams struct {
	ReceivingServer uuid.UUID
	TransportID     uuid.UUID
	CallID          uuid.UUID
	PeerID          uuid.UUID
	TrackID         uuid.UUID
	IP              string
	Port            int
	SRTPParameters  string
	ProducerID      uuid.UUID
	ProducerSctp    string
	ProducerLabel   string
	ProducerProto   string
}

// SignalingService relays transport-connect handshakes between servers
// through the shared store. The initiating server writes a ConnectRequest
// addressed to the server owning the router; that server observes its
// mailbox, runs the native connect, records the producer and deletes the
// request. Requests for one transport are handled in insertion order;
// different transports proceed concurrently. Duplicate observation of a
// request id is a no-op.
type SignalingService struct {
	requests  repository.ConnectRequestRepository
	producers repository.ProducerRepository
	engine    sfu.Engine
	serverID  uuid.UUID
	bus       events.Publisher
	log       *logger.Logger

	handshakeTimeout time.Duration
	pollInterval     time.Duration
	now              func() time.Time

	mu      sync.Mutex
	queues  map[uuid.UUID]*transportQueue
	handled map[uuid.UUID]time.Time
	wake    chan struct{}
}

func NewSignalingService(
	requests repository.ConnectRequestRepository,
	producers repository.ProducerRepository,
	engine sfu.Engine,
	serverID uuid.UUID,
	bus events.Publisher,
	log *logger.Logger,
	handshakeTimeout time.Duration,
) *SignalingService {
	if handshakeTimeout == 0 {
		handshakeTimeout = 30 * time.Second
	}
	return &SignalingService{
		requests:         requests,
		producers:        producers,
		engine:           engine,
		serverID:         serverID,
		bus:              bus,
		log:              log,
		handshakeTimeout: handshakeTimeout,
		pollInterval:     2 * time.Second,
		now:              time.Now,
		queues:           make(map[uuid.UUID]*transportQueue),
		handled:          make(map[uuid.UUID]time.Time),
		wake:             make(chan struct{}, 1),
	}
}

// RequestConnect files a mailbox entry asking receivingServer to connect the
// given transport. Returns the request id the caller can await on.
func (s *SignalingService) RequestConnect(ctx context.Context, p RequestConnectParams) (mediasoup.ConnectRequest, error) {
	if p.ReceivingServer == uuid.Nil || p.TransportID == uuid.Nil || p.ProducerID == uuid.Nil || p.TrackID == uuid.Nil {
		return mediasoup.ConnectRequest{}, fmt.Errorf("request connect: %w", jr_errors.ErrInvalidInput)
	}
	if p.IP == "" || p.Port <= 0 || p.Port > 65535 {
		return mediasoup.ConnectRequest{}, fmt.Errorf("request connect: bad network params: %w", jr_errors.ErrInvalidInput)
	}

	req := mediasoup.ConnectRequest{
		ID:                           uuid.New(),
		InitiatingServer:             s.serverID,
		ReceivingServer:              p.ReceivingServer,
		TransportID:                  p.TransportID,
		CallID:                       p.CallID,
		PeerID:                       p.PeerID,
		TrackID:                      p.TrackID,
		IP:                           p.IP,
		Port:                         p.Port,
		SRTPParameters:               p.SRTPParameters,
		ProducerID:                   p.ProducerID,
		ProducerSctpStreamParameters: p.ProducerSctp,
		ProducerLabel:                p.ProducerLabel,
		ProducerProtocol:             p.ProducerProto,
		CreatedAt:                    s.now(),
	}
	if err := s.requests.Create(ctx, &req); err != nil {
		return mediasoup.ConnectRequest{}, fmt.Errorf("request connect: %w", err)
	}

	env := events.NewEnvelope(events.CollectionConnectRequests, req.ID.String(), events.OpAdded, req)
	env.Server = p.ReceivingServer.String()
	if s.bus != nil {
		if err := s.bus.Publish(ctx, env); err != nil && s.log != nil {
			// the receiver's poll fallback will still pick the request up
			s.log.Warnf("notify receiving server %s: %v", p.ReceivingServer, err)
		}
	}
	return req, nil
}

// AwaitCompletion blocks until the request disappears from the store or the
// timeout elapses. Absence only means the receiver fulfilled the request
// while the row was still inside its reap horizon (CreatedAt plus the
// handshake timeout); past that horizon the sweeper may have reaped it, so
// absence is ambiguous and reported as ErrTimeout. The caller retries
// against another route or surfaces the failure.
func (s *SignalingService) AwaitCompletion(ctx context.Context, req mediasoup.ConnectRequest, timeout time.Duration) error {
	if timeout <= 0 || timeout > s.handshakeTimeout {
		timeout = s.handshakeTimeout
	}
	deadline := s.now().Add(timeout)
	reapHorizon := req.CreatedAt.Add(s.handshakeTimeout)
	if reapHorizon.Before(deadline) {
		deadline = reapHorizon
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		_, err := s.requests.GetByID(ctx, req.ID)
		if errors.Is(err, jr_errors.ErrNotFound) {
			if s.now().After(reapHorizon) {
				return fmt.Errorf("await completion of %s: request expired unfulfilled: %w", req.ID, jr_errors.ErrTimeout)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("await completion: %w", err)
		}
		if s.now().After(deadline) {
			return fmt.Errorf("await completion of %s: %w", req.ID, jr_errors.ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Run drives the receiving side: wake on mailbox notifications for this
// server, with a periodic poll as the fallback for missed notifications.
func (s *SignalingService) Run(ctx context.Context, notifier Notifier) {
	if notifier != nil {
		notifier.Subscribe(events.ServerChannel(s.serverID.String()), func(_ context.Context, env events.Envelope) {
			if env.Collection == events.CollectionConnectRequests && env.Op == events.OpAdded {
				select {
				case s.wake <- struct{}{}:
				default:
				}
			}
		})
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		s.drainPending(ctx)
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-ticker.C:
		}
	}
}

// drainPending lists this server's mailbox in insertion order and feeds each
// request to its transport's queue.
func (s *SignalingService) drainPending(ctx context.Context) {
	pending, err := s.requests.ListPendingFor(ctx, s.serverID)
	if err != nil {
		if s.log != nil {
			s.log.Errorf("list pending connect requests: %v", err)
		}
		return
	}
	for _, req := range pending {
		s.enqueue(ctx, req)
	}
}

// transportQueue serializes requests for one transport. Queues for distinct
// transports run concurrently.
type transportQueue struct {
	pending []mediasoup.ConnectRequest
	queued  map[uuid.UUID]bool
	busy    bool
}

func (s *SignalingService) enqueue(ctx context.Context, req mediasoup.ConnectRequest) {
	s.mu.Lock()
	if _, done := s.handled[req.ID]; done {
		s.mu.Unlock()
		return
	}
	q, ok := s.queues[req.TransportID]
	if !ok {
		q = &transportQueue{queued: make(map[uuid.UUID]bool)}
		s.queues[req.TransportID] = q
	}
	if q.queued[req.ID] {
		s.mu.Unlock()
		return
	}
	q.queued[req.ID] = true
	q.pending = append(q.pending, req)
	start := !q.busy
	if start {
		q.busy = true
	}
	s.mu.Unlock()

	if start {
		go s.runQueue(ctx, req.TransportID, q)
	}
}

func (s *SignalingService) runQueue(ctx context.Context, transportID uuid.UUID, q *transportQueue) {
	for {
		s.mu.Lock()
		if len(q.pending) == 0 {
			q.busy = false
			delete(s.queues, transportID)
			s.mu.Unlock()
			return
		}
		req := q.pending[0]
		q.pending = q.pending[1:]
		delete(q.queued, req.ID)
		s.mu.Unlock()

		if err := s.handleRequest(ctx, req); err != nil && s.log != nil {
			s.log.Errorf("connect request %s (transport %s): %v", req.ID, transportID, err)
		}
	}
}

// handleRequest performs one handshake. Duplicate deliveries are no-ops:
// either the id is in the handled set or the record is already gone.
func (s *SignalingService) handleRequest(ctx context.Context, req mediasoup.ConnectRequest) error {
	s.mu.Lock()
	if _, done := s.handled[req.ID]; done {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if _, err := s.requests.GetByID(ctx, req.ID); err != nil {
		if errors.Is(err, jr_errors.ErrNotFound) {
			s.markHandled(req.ID)
			return nil
		}
		return err
	}

	if err := s.engine.ConnectTransport(ctx, sfu.ConnectParams{
		TransportID:    req.TransportID,
		IP:             req.IP,
		Port:           req.Port,
		SRTPParameters: req.SRTPParameters,
	}); err != nil {
		// leave the record: the sweeper reaps it after the handshake timeout
		// and the initiating side's await surfaces the non-completion
		return fmt.Errorf("native connect: %w", err)
	}

	if err := s.registerProducer(ctx, req); err != nil {
		return err
	}

	if err := s.requests.Delete(ctx, req.ID); err != nil && !errors.Is(err, jr_errors.ErrNotFound) {
		return fmt.Errorf("delete fulfilled request: %w", err)
	}
	s.markHandled(req.ID)
	s.publish(ctx, events.NewEnvelope(events.CollectionConnectRequests, req.ID.String(), events.OpRemoved, nil))
	return nil
}

// registerProducer records the producer, enforcing one live producer per
// client track. A replay carrying the producer id we already hold is a
// no-op; a new producer for an existing track supersedes the stale one.
func (s *SignalingService) registerProducer(ctx context.Context, req mediasoup.ConnectRequest) error {
	if existing, err := s.producers.GetLiveByTrack(ctx, req.TrackID); err == nil {
		if existing.ProducerID == req.ProducerID {
			return nil
		}
		if err := s.producers.Remove(ctx, existing.ID); err != nil && !errors.Is(err, jr_errors.ErrNotFound) {
			return fmt.Errorf("supersede producer for track %s: %w", req.TrackID, err)
		}
		s.publish(ctx, events.NewEnvelope(events.CollectionProducerServers, existing.ID.String(), events.OpRemoved, nil))
	} else if !errors.Is(err, jr_errors.ErrNotFound) {
		return fmt.Errorf("check track %s: %w", req.TrackID, err)
	}

	now := s.now()
	p := mediasoup.ProducerServer{
		ID:            uuid.New(),
		CreatedServer: s.serverID,
		CallID:        req.CallID,
		PeerID:        req.PeerID,
		TransportID:   req.TransportID,
		TrackID:       req.TrackID,
		ProducerID:    req.ProducerID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.producers.Create(ctx, &p); err != nil {
		if errors.Is(err, jr_errors.ErrAlreadyExists) {
			// index race with a concurrent replay; whoever won holds the track
			if winner, werr := s.producers.GetLiveByTrack(ctx, req.TrackID); werr == nil && winner.ProducerID == req.ProducerID {
				return nil
			}
		}
		return fmt.Errorf("register producer: %w", err)
	}
	s.publish(ctx, events.NewEnvelope(events.CollectionProducerServers, p.ID.String(), events.OpAdded, p))
	return nil
}

// TeardownTransport soft-deletes every live producer on a transport.
func (s *SignalingService) TeardownTransport(ctx context.Context, transportID uuid.UUID) error {
	n, err := s.producers.RemoveByTransport(ctx, transportID)
	if err != nil {
		return fmt.Errorf("teardown transport %s: %w", transportID, err)
	}
	if n > 0 {
		s.publish(ctx, events.NewEnvelope(events.CollectionProducerServers, transportID.String(), events.OpRemoved, nil))
	}
	return nil
}

// ReapStaleRequests drops mailbox entries older than the handshake timeout.
func (s *SignalingService) ReapStaleRequests(ctx context.Context) (int64, error) {
	return s.requests.DeleteOlderThan(ctx, s.now().Add(-s.handshakeTimeout))
}

func (s *SignalingService) markHandled(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handled[id] = s.now()
	// prune the dedup window
	cutoff := s.now().Add(-2 * s.handshakeTimeout)
	for k, v := range s.handled {
		if v.Before(cutoff) {
			delete(s.handled, k)
		}
	}
}

func (s *SignalingService) publish(ctx context.Context, env events.Envelope) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, env); err != nil && s.log != nil {
		s.log.Warnf("publish %s/%s: %v", env.Collection, env.Op, err)
	}
}
