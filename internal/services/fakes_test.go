package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/account"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/call"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/mediasoup"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/registry"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/subscriber"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/events"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/sfu"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
)

// In-memory repository doubles mirroring the store semantics the real
// implementations rely on: guarded state transitions, unique indexes and
// insertion-ordered mailboxes.

type memServerRepo struct {
	mu      sync.Mutex
	servers map[uuid.UUID]registry.Server
}

func newMemServerRepo() *memServerRepo {
	return &memServerRepo{servers: make(map[uuid.UUID]registry.Server)}
}

func (r *memServerRepo) Create(_ context.Context, s *registry.Server) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[s.ID] = *s
	return nil
}

func (r *memServerRepo) GetByID(_ context.Context, id uuid.UUID) (registry.Server, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.servers[id]
	if !ok {
		return registry.Server{}, fmt.Errorf("server %s: %w", id, jr_errors.ErrNotFound)
	}
	return s, nil
}

func (r *memServerRepo) Heartbeat(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.servers[id]
	if !ok {
		return fmt.Errorf("server %s: %w", id, jr_errors.ErrNotFound)
	}
	s.UpdatedAt = at
	r.servers[id] = s
	return nil
}

func (r *memServerRepo) ListLive(_ context.Context, cutoff time.Time) ([]registry.Server, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []registry.Server
	for _, s := range r.servers {
		if s.UpdatedAt.After(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memServerRepo) ListStale(_ context.Context, cutoff time.Time) ([]registry.Server, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []registry.Server
	for _, s := range r.servers {
		if !s.UpdatedAt.After(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memServerRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.servers[id]; !ok {
		return fmt.Errorf("server %s: %w", id, jr_errors.ErrNotFound)
	}
	delete(r.servers, id)
	return nil
}

type memSubscriberRepo struct {
	mu   sync.Mutex
	subs map[uuid.UUID]subscriber.Subscriber
}

func newMemSubscriberRepo() *memSubscriberRepo {
	return &memSubscriberRepo{subs: make(map[uuid.UUID]subscriber.Subscriber)}
}

func (r *memSubscriberRepo) Create(_ context.Context, s *subscriber.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.subs {
		if existing.ScopeHash == s.ScopeHash {
			return fmt.Errorf("scope hash: %w", jr_errors.ErrAlreadyExists)
		}
	}
	r.subs[s.ID] = *s
	return nil
}

func (r *memSubscriberRepo) GetByID(_ context.Context, id uuid.UUID) (subscriber.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return subscriber.Subscriber{}, jr_errors.ErrNotFound
	}
	return s, nil
}

func (r *memSubscriberRepo) GetByScopeHash(_ context.Context, hash string) (subscriber.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.ScopeHash == hash {
			return s, nil
		}
	}
	return subscriber.Subscriber{}, jr_errors.ErrNotFound
}

func (r *memSubscriberRepo) ListByName(_ context.Context, name string) ([]subscriber.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []subscriber.Subscriber
	for _, s := range r.subs {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSubscriberRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[id]; !ok {
		return jr_errors.ErrNotFound
	}
	delete(r.subs, id)
	return nil
}

func (r *memSubscriberRepo) DeleteByConnection(_ context.Context, serverID uuid.UUID, connection string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.subs {
		if s.ServerID == serverID && s.Connection == connection {
			delete(r.subs, id)
			n++
		}
	}
	return n, nil
}

func (r *memSubscriberRepo) DeleteByServer(_ context.Context, serverID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.subs {
		if s.ServerID == serverID {
			delete(r.subs, id)
			n++
		}
	}
	return n, nil
}

func (r *memSubscriberRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

type memCallRepo struct {
	mu    sync.Mutex
	calls map[uuid.UUID]call.Call
	peers map[uuid.UUID]call.Peer
}

func newMemCallRepo() *memCallRepo {
	return &memCallRepo{
		calls: make(map[uuid.UUID]call.Call),
		peers: make(map[uuid.UUID]call.Peer),
	}
}

func (r *memCallRepo) Create(_ context.Context, c *call.Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[c.ID] = *c
	return nil
}

func (r *memCallRepo) GetByID(_ context.Context, id uuid.UUID) (call.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return call.Call{}, fmt.Errorf("call %s: %w", id, jr_errors.ErrNotFound)
	}
	return c, nil
}

func (r *memCallRepo) TransitionRouterState(_ context.Context, id uuid.UUID, from, to call.RouterState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return fmt.Errorf("call %s: %w", id, jr_errors.ErrNotFound)
	}
	if c.RouterState != from {
		return fmt.Errorf("call %s is %s not %s: %w", id, c.RouterState, from, jr_errors.ErrInvalidTransition)
	}
	c.RouterState = to
	r.calls[id] = c
	return nil
}

func (r *memCallRepo) Close(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return fmt.Errorf("call %s: %w", id, jr_errors.ErrNotFound)
	}
	c.RouterState = call.StateClosed
	r.calls[id] = c
	return nil
}

func (r *memCallRepo) UpsertPeer(_ context.Context, p *call.Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.peers {
		if existing.CallID == p.CallID && existing.UserID == p.UserID {
			existing.ServerID = p.ServerID
			r.peers[id] = existing
			return nil
		}
	}
	r.peers[p.ID] = *p
	return nil
}

func (r *memCallRepo) GetPeer(_ context.Context, callID, userID uuid.UUID) (call.Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.peers {
		if p.CallID == callID && p.UserID == userID {
			return p, nil
		}
	}
	return call.Peer{}, fmt.Errorf("peer: %w", jr_errors.ErrNotFound)
}

func (r *memCallRepo) UpdatePeer(_ context.Context, p call.Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[p.ID]; !ok {
		return fmt.Errorf("peer %s: %w", p.ID, jr_errors.ErrNotFound)
	}
	r.peers[p.ID] = p
	return nil
}

func (r *memCallRepo) RemovePeer(_ context.Context, callID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.peers {
		if p.CallID == callID && p.UserID == userID {
			delete(r.peers, id)
			return nil
		}
	}
	return fmt.Errorf("peer: %w", jr_errors.ErrNotFound)
}

func (r *memCallRepo) ListPeers(_ context.Context, callID uuid.UUID) ([]call.Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []call.Peer
	for _, p := range r.peers {
		if p.CallID == callID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memCallRepo) RemovePeersByServer(_ context.Context, serverID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, p := range r.peers {
		if p.ServerID == serverID {
			delete(r.peers, id)
			n++
		}
	}
	return n, nil
}

type memRouterRepo struct {
	mu      sync.Mutex
	routers map[uuid.UUID]mediasoup.Router
}

func newMemRouterRepo() *memRouterRepo {
	return &memRouterRepo{routers: make(map[uuid.UUID]mediasoup.Router)}
}

func (r *memRouterRepo) Create(_ context.Context, router *mediasoup.Router) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.routers {
		if existing.CallID == router.CallID {
			return fmt.Errorf("call %s already has a router: %w", router.CallID, jr_errors.ErrAlreadyExists)
		}
	}
	r.routers[router.ID] = *router
	return nil
}

func (r *memRouterRepo) GetByCall(_ context.Context, callID uuid.UUID) (mediasoup.Router, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, router := range r.routers {
		if router.CallID == callID {
			return router, nil
		}
	}
	return mediasoup.Router{}, fmt.Errorf("router for call %s: %w", callID, jr_errors.ErrNotFound)
}

func (r *memRouterRepo) ListByServer(_ context.Context, serverID uuid.UUID) ([]mediasoup.Router, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []mediasoup.Router
	for _, router := range r.routers {
		if router.CreatedServer == serverID {
			out = append(out, router)
		}
	}
	return out, nil
}

func (r *memRouterRepo) DeleteByCall(_ context.Context, callID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, router := range r.routers {
		if router.CallID == callID {
			delete(r.routers, id)
		}
	}
	return nil
}

func (r *memRouterRepo) DeleteByServer(_ context.Context, serverID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, router := range r.routers {
		if router.CreatedServer == serverID {
			delete(r.routers, id)
			n++
		}
	}
	return n, nil
}

type memProducerRepo struct {
	mu        sync.Mutex
	producers map[uuid.UUID]mediasoup.ProducerServer
}

func newMemProducerRepo() *memProducerRepo {
	return &memProducerRepo{producers: make(map[uuid.UUID]mediasoup.ProducerServer)}
}

func (r *memProducerRepo) Create(_ context.Context, p *mediasoup.ProducerServer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.producers {
		if !existing.Deleted && existing.TrackID == p.TrackID {
			return fmt.Errorf("track %s: %w", p.TrackID, jr_errors.ErrAlreadyExists)
		}
	}
	r.producers[p.ID] = *p
	return nil
}

func (r *memProducerRepo) GetLiveByTrack(_ context.Context, trackID uuid.UUID) (mediasoup.ProducerServer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.producers {
		if !p.Deleted && p.TrackID == trackID {
			return p, nil
		}
	}
	return mediasoup.ProducerServer{}, fmt.Errorf("track %s: %w", trackID, jr_errors.ErrNotFound)
}

func (r *memProducerRepo) FindIncludingDeleted(_ context.Context, id uuid.UUID) (mediasoup.ProducerServer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.producers[id]
	if !ok {
		return mediasoup.ProducerServer{}, jr_errors.ErrNotFound
	}
	return p, nil
}

func (r *memProducerRepo) ListLiveByCall(_ context.Context, callID uuid.UUID) ([]mediasoup.ProducerServer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []mediasoup.ProducerServer
	for _, p := range r.producers {
		if !p.Deleted && p.CallID == callID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProducerRepo) Remove(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.producers[id]
	if !ok {
		return jr_errors.ErrNotFound
	}
	p.Deleted = true
	r.producers[id] = p
	return nil
}

func (r *memProducerRepo) Restore(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.producers[id]
	if !ok {
		return jr_errors.ErrNotFound
	}
	p.Deleted = false
	r.producers[id] = p
	return nil
}

func (r *memProducerRepo) RemoveByTransport(_ context.Context, transportID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, p := range r.producers {
		if !p.Deleted && p.TransportID == transportID {
			p.Deleted = true
			r.producers[id] = p
			n++
		}
	}
	return n, nil
}

func (r *memProducerRepo) RemoveByServer(_ context.Context, serverID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, p := range r.producers {
		if !p.Deleted && p.CreatedServer == serverID {
			p.Deleted = true
			r.producers[id] = p
			n++
		}
	}
	return n, nil
}

type memConnectRequestRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]mediasoup.ConnectRequest
	nextSeq  int64
}

func newMemConnectRequestRepo() *memConnectRequestRepo {
	return &memConnectRequestRepo{requests: make(map[uuid.UUID]mediasoup.ConnectRequest)}
}

func (r *memConnectRequestRepo) Create(_ context.Context, req *mediasoup.ConnectRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSeq++
	req.Seq = r.nextSeq
	r.requests[req.ID] = *req
	return nil
}

func (r *memConnectRequestRepo) GetByID(_ context.Context, id uuid.UUID) (mediasoup.ConnectRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return mediasoup.ConnectRequest{}, fmt.Errorf("request %s: %w", id, jr_errors.ErrNotFound)
	}
	return req, nil
}

func (r *memConnectRequestRepo) ListPendingFor(_ context.Context, serverID uuid.UUID) ([]mediasoup.ConnectRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []mediasoup.ConnectRequest
	for _, req := range r.requests {
		if req.ReceivingServer == serverID {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (r *memConnectRequestRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[id]; !ok {
		return jr_errors.ErrNotFound
	}
	delete(r.requests, id)
	return nil
}

func (r *memConnectRequestRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, req := range r.requests {
		if req.CreatedAt.Before(cutoff) {
			delete(r.requests, id)
			n++
		}
	}
	return n, nil
}

func (r *memConnectRequestRepo) DeleteByServer(_ context.Context, serverID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, req := range r.requests {
		if req.ReceivingServer == serverID || req.InitiatingServer == serverID {
			delete(r.requests, id)
			n++
		}
	}
	return n, nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]account.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]account.User)}
}

func (r *memUserRepo) Create(_ context.Context, u *account.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (account.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return account.User{}, fmt.Errorf("user %s: %w", id, jr_errors.ErrNotFound)
	}
	return u, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (account.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return account.User{}, fmt.Errorf("user %s: %w", email, jr_errors.ErrNotFound)
}

func (r *memUserRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

// fakeEngine records native SFU operations and lets tests inject failures.
type fakeEngine struct {
	mu             sync.Mutex
	createErr      error
	connectErr     error
	created        []uuid.UUID
	closed         []uuid.UUID
	connectedOrder []uuid.UUID
}

func (e *fakeEngine) CreateRouter(_ context.Context) (sfu.RouterInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.createErr != nil {
		return sfu.RouterInfo{}, e.createErr
	}
	id := uuid.New()
	e.created = append(e.created, id)
	return sfu.RouterInfo{RouterID: id, RTPCapabilities: `{"codecs":[]}`}, nil
}

func (e *fakeEngine) CloseRouter(_ context.Context, routerID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = append(e.closed, routerID)
	return nil
}

func (e *fakeEngine) ConnectTransport(_ context.Context, params sfu.ConnectParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.connectErr != nil {
		return e.connectErr
	}
	e.connectedOrder = append(e.connectedOrder, params.TransportID)
	return nil
}

func (e *fakeEngine) connectCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.connectedOrder)
}

// capturingBus records published envelopes.
type capturingBus struct {
	mu        sync.Mutex
	envelopes []events.Envelope
}

func (b *capturingBus) Publish(_ context.Context, env events.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.envelopes = append(b.envelopes, env)
	return nil
}

func (b *capturingBus) byCollection(collection string) []events.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Envelope
	for _, env := range b.envelopes {
		if env.Collection == collection {
			out = append(out, env)
		}
	}
	return out
}

type fakeHeartbeatCache struct {
	mu     sync.Mutex
	beats  map[string]time.Time
	forgot []string
}

func newFakeHeartbeatCache() *fakeHeartbeatCache {
	return &fakeHeartbeatCache{beats: make(map[string]time.Time)}
}

func (c *fakeHeartbeatCache) Beat(_ context.Context, serverID string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.beats[serverID] = at
	return nil
}

func (c *fakeHeartbeatCache) StaleMembers(_ context.Context, cutoff time.Time) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for id, at := range c.beats {
		if !at.After(cutoff) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (c *fakeHeartbeatCache) Forget(_ context.Context, serverID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.beats, serverID)
	c.forgot = append(c.forgot, serverID)
	return nil
}
