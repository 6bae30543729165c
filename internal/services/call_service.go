package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/call"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/mediasoup"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/events"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/repository"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/sfu"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
	"github.com/Palindrome-Puzzles/jolly-roger/pkg/logger"
)

// CallService owns the call session directory: the router provisioning state
// machine and per-peer mute/deafen state.
type CallService struct {
	calls     repository.CallRepository
	routers   repository.RouterRepository
	producers repository.ProducerRepository
	users     repository.UserRepository
	engine    sfu.Engine
	serverID  uuid.UUID
	bus       events.Publisher
	log       *logger.Logger
	now       func() time.Time
}

func NewCallService(
	calls repository.CallRepository,
	routers repository.RouterRepository,
	producers repository.ProducerRepository,
	users repository.UserRepository,
	engine sfu.Engine,
	serverID uuid.UUID,
	bus events.Publisher,
	log *logger.Logger,
) *CallService {
	return &CallService{
		calls:     calls,
		routers:   routers,
		producers: producers,
		users:     users,
		engine:    engine,
		serverID:  serverID,
		bus:       bus,
		log:       log,
		now:       time.Now,
	}
}

// CreateCall opens a call room for a puzzle. The room starts without a
// router; the first joiner's EnsureRouter provisions one.
func (s *CallService) CreateCall(ctx context.Context, huntID, puzzleID uuid.UUID) (call.Call, error) {
	if huntID == uuid.Nil || puzzleID == uuid.Nil {
		return call.Call{}, fmt.Errorf("create call: %w", jr_errors.ErrInvalidInput)
	}
	now := s.now()
	c := call.Call{
		ID:          uuid.New(),
		HuntID:      huntID,
		PuzzleID:    puzzleID,
		RouterState: call.StateNoRouter,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.calls.Create(ctx, &c); err != nil {
		return call.Call{}, fmt.Errorf("create call: %w", err)
	}
	s.publish(ctx, events.NewEnvelope(events.CollectionCalls, c.ID.String(), events.OpAdded, c))
	return c, nil
}

func (s *CallService) GetCall(ctx context.Context, callID uuid.UUID) (call.Call, error) {
	return s.calls.GetByID(ctx, callID)
}

// EnsureRouter provisions the call's SFU router on this server, walking the
// call through NO_ROUTER -> ROUTER_PENDING -> ROUTER_ACTIVE. A creation
// failure reverts to NO_ROUTER and surfaces the error; the client reconnect
// path retries, the server never retries silently.
func (s *CallService) EnsureRouter(ctx context.Context, callID uuid.UUID) (mediasoup.Router, error) {
	c, err := s.calls.GetByID(ctx, callID)
	if err != nil {
		return mediasoup.Router{}, fmt.Errorf("ensure router: %w", err)
	}

	switch c.RouterState {
	case call.StateRouterActive:
		return s.routers.GetByCall(ctx, callID)
	case call.StateRouterPending:
		// another server (or request) is mid-provisioning
		return mediasoup.Router{}, fmt.Errorf("ensure router: %w", jr_errors.ErrConflict)
	case call.StateClosed:
		return mediasoup.Router{}, fmt.Errorf("ensure router: call closed: %w", jr_errors.ErrNotFound)
	}

	if err := s.calls.TransitionRouterState(ctx, callID, call.StateNoRouter, call.StateRouterPending); err != nil {
		if errors.Is(err, jr_errors.ErrInvalidTransition) {
			// lost the provisioning race
			return mediasoup.Router{}, fmt.Errorf("ensure router: %w", jr_errors.ErrConflict)
		}
		return mediasoup.Router{}, fmt.Errorf("ensure router: %w", err)
	}

	info, err := s.engine.CreateRouter(ctx)
	if err != nil {
		if revertErr := s.calls.TransitionRouterState(ctx, callID, call.StateRouterPending, call.StateNoRouter); revertErr != nil && s.log != nil {
			s.log.Errorf("could not revert call %s to NO_ROUTER: %v", callID, revertErr)
		}
		return mediasoup.Router{}, fmt.Errorf("ensure router: create on sfu: %w", err)
	}

	router := mediasoup.Router{
		ID:              uuid.New(),
		HuntID:          c.HuntID,
		CallID:          callID,
		CreatedServer:   s.serverID,
		RouterID:        info.RouterID,
		RTPCapabilities: info.RTPCapabilities,
		CreatedAt:       s.now(),
	}
	if err := s.routers.Create(ctx, &router); err != nil {
		_ = s.engine.CloseRouter(ctx, info.RouterID)
		if revertErr := s.calls.TransitionRouterState(ctx, callID, call.StateRouterPending, call.StateNoRouter); revertErr != nil && s.log != nil {
			s.log.Errorf("could not revert call %s to NO_ROUTER: %v", callID, revertErr)
		}
		return mediasoup.Router{}, fmt.Errorf("ensure router: persist: %w", err)
	}

	// The router id is persisted; only now does the call become active.
	if err := s.calls.TransitionRouterState(ctx, callID, call.StateRouterPending, call.StateRouterActive); err != nil {
		return mediasoup.Router{}, fmt.Errorf("ensure router: activate: %w", err)
	}

	s.publish(ctx, events.NewEnvelope(events.CollectionRouters, router.ID.String(), events.OpAdded, router))
	return router, nil
}

// CloseCall ends the call: state machine to CLOSED, router torn down.
func (s *CallService) CloseCall(ctx context.Context, callID uuid.UUID) error {
	if err := s.calls.Close(ctx, callID); err != nil {
		return fmt.Errorf("close call: %w", err)
	}
	if router, err := s.routers.GetByCall(ctx, callID); err == nil {
		if err := s.engine.CloseRouter(ctx, router.RouterID); err != nil && s.log != nil {
			s.log.Warnf("close router %s on sfu: %v", router.RouterID, err)
		}
		if err := s.routers.DeleteByCall(ctx, callID); err != nil && s.log != nil {
			s.log.Warnf("delete router record for call %s: %v", callID, err)
		}
		s.publish(ctx, events.NewEnvelope(events.CollectionRouters, router.ID.String(), events.OpRemoved, nil))
	}
	s.publish(ctx, events.NewEnvelope(events.CollectionCalls, callID.String(), events.OpRemoved, nil))
	return nil
}

// Join adds (or refreshes) a peer in the call.
func (s *CallService) Join(ctx context.Context, callID, userID uuid.UUID) (call.Peer, error) {
	c, err := s.calls.GetByID(ctx, callID)
	if err != nil {
		return call.Peer{}, fmt.Errorf("join call: %w", err)
	}
	if c.RouterState == call.StateClosed {
		return call.Peer{}, fmt.Errorf("join call: call closed: %w", jr_errors.ErrNotFound)
	}
	now := s.now()
	p := call.Peer{
		ID:       uuid.New(),
		CallID:   callID,
		UserID:   userID,
		ServerID: s.serverID,
		JoinedAt: now,
	}
	if err := s.calls.UpsertPeer(ctx, &p); err != nil {
		return call.Peer{}, fmt.Errorf("join call: %w", err)
	}
	peer, err := s.calls.GetPeer(ctx, callID, userID)
	if err != nil {
		return call.Peer{}, fmt.Errorf("join call: %w", err)
	}
	s.publish(ctx, events.NewEnvelope(events.CollectionCallPeers, peer.ID.String(), events.OpAdded, peer))
	return peer, nil
}

// Leave removes a peer from the call.
func (s *CallService) Leave(ctx context.Context, callID, userID uuid.UUID) error {
	if err := s.calls.RemovePeer(ctx, callID, userID); err != nil {
		return fmt.Errorf("leave call: %w", err)
	}
	s.publish(ctx, events.NewEnvelope(events.CollectionCallPeers, userID.String(), events.OpRemoved, nil))
	return nil
}

func (s *CallService) ListPeers(ctx context.Context, callID uuid.UUID) ([]call.Peer, error) {
	return s.calls.ListPeers(ctx, callID)
}

// SetMuted flips the caller's own mute flag. Unmuting also clears a remote
// mute: only the muted peer can undo one.
func (s *CallService) SetMuted(ctx context.Context, callID, userID uuid.UUID, muted bool) (call.Peer, error) {
	p, err := s.calls.GetPeer(ctx, callID, userID)
	if err != nil {
		return call.Peer{}, fmt.Errorf("set muted: %w", err)
	}
	p.Muted = muted
	if !muted {
		p.RemoteMutedBy = uuid.NullUUID{}
	}
	if err := s.calls.UpdatePeer(ctx, p); err != nil {
		return call.Peer{}, fmt.Errorf("set muted: %w", err)
	}
	s.publish(ctx, events.NewEnvelope(events.CollectionCallPeers, p.ID.String(), events.OpChanged, p))
	return p, nil
}

// SetDeafened flips the caller's own deafen flag.
func (s *CallService) SetDeafened(ctx context.Context, callID, userID uuid.UUID, deafened bool) (call.Peer, error) {
	p, err := s.calls.GetPeer(ctx, callID, userID)
	if err != nil {
		return call.Peer{}, fmt.Errorf("set deafened: %w", err)
	}
	p.Deafened = deafened
	if err := s.calls.UpdatePeer(ctx, p); err != nil {
		return call.Peer{}, fmt.Errorf("set deafened: %w", err)
	}
	s.publish(ctx, events.NewEnvelope(events.CollectionCallPeers, p.ID.String(), events.OpChanged, p))
	return p, nil
}

// RemoteMute force-mutes another peer. Restricted to admins. The mute is
// one-directional: the muter cannot undo it, only the muted peer's own
// unmute clears it.
func (s *CallService) RemoteMute(ctx context.Context, callID, targetUserID, byUserID uuid.UUID) (call.Peer, error) {
	by, err := s.users.GetByID(ctx, byUserID)
	if err != nil {
		return call.Peer{}, fmt.Errorf("remote mute: %w", err)
	}
	if !by.IsAdmin {
		return call.Peer{}, fmt.Errorf("remote mute: %w", jr_errors.ErrForbidden)
	}
	if targetUserID == byUserID {
		return call.Peer{}, fmt.Errorf("remote mute: %w", jr_errors.ErrInvalidInput)
	}

	p, err := s.calls.GetPeer(ctx, callID, targetUserID)
	if err != nil {
		return call.Peer{}, fmt.Errorf("remote mute: %w", err)
	}
	p.Muted = true
	p.RemoteMutedBy = uuid.NullUUID{UUID: byUserID, Valid: true}
	if err := s.calls.UpdatePeer(ctx, p); err != nil {
		return call.Peer{}, fmt.Errorf("remote mute: %w", err)
	}
	s.publish(ctx, events.NewEnvelope(events.CollectionCallPeers, p.ID.String(), events.OpChanged, p))
	return p, nil
}

func (s *CallService) publish(ctx context.Context, env events.Envelope) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, env); err != nil && s.log != nil {
		s.log.Warnf("publish %s/%s: %v", env.Collection, env.Op, err)
	}
}
