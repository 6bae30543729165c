package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/account"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/call"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/mediasoup"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/registry"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/subscriber"
)

type ServerRepository interface {
	Create(ctx context.Context, s *registry.Server) error
	GetByID(ctx context.Context, id uuid.UUID) (registry.Server, error)
	Heartbeat(ctx context.Context, id uuid.UUID, at time.Time) error
	ListLive(ctx context.Context, cutoff time.Time) ([]registry.Server, error)
	ListStale(ctx context.Context, cutoff time.Time) ([]registry.Server, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type SubscriberRepository interface {
	Create(ctx context.Context, s *subscriber.Subscriber) error
	GetByID(ctx context.Context, id uuid.UUID) (subscriber.Subscriber, error)
	GetByScopeHash(ctx context.Context, hash string) (subscriber.Subscriber, error)
	ListByName(ctx context.Context, name string) ([]subscriber.Subscriber, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByConnection(ctx context.Context, serverID uuid.UUID, connection string) (int64, error)
	DeleteByServer(ctx context.Context, serverID uuid.UUID) (int64, error)
}

type CallRepository interface {
	Create(ctx context.Context, c *call.Call) error
	GetByID(ctx context.Context, id uuid.UUID) (call.Call, error)
	// TransitionRouterState performs a guarded update: the row moves from the
	// expected state to the new one atomically, or the call fails with
	// ErrInvalidTransition when another server won the race.
	TransitionRouterState(ctx context.Context, id uuid.UUID, from, to call.RouterState) error
	// Close moves the call to CLOSED from whatever non-closed state it is in.
	Close(ctx context.Context, id uuid.UUID) error

	UpsertPeer(ctx context.Context, p *call.Peer) error
	GetPeer(ctx context.Context, callID, userID uuid.UUID) (call.Peer, error)
	UpdatePeer(ctx context.Context, p call.Peer) error
	RemovePeer(ctx context.Context, callID, userID uuid.UUID) error
	ListPeers(ctx context.Context, callID uuid.UUID) ([]call.Peer, error)
	RemovePeersByServer(ctx context.Context, serverID uuid.UUID) (int64, error)
}

type RouterRepository interface {
	Create(ctx context.Context, r *mediasoup.Router) error
	GetByCall(ctx context.Context, callID uuid.UUID) (mediasoup.Router, error)
	ListByServer(ctx context.Context, serverID uuid.UUID) ([]mediasoup.Router, error)
	DeleteByCall(ctx context.Context, callID uuid.UUID) error
	DeleteByServer(ctx context.Context, serverID uuid.UUID) (int64, error)
}

type ProducerRepository interface {
	Create(ctx context.Context, p *mediasoup.ProducerServer) error
	GetLiveByTrack(ctx context.Context, trackID uuid.UUID) (mediasoup.ProducerServer, error)
	FindIncludingDeleted(ctx context.Context, id uuid.UUID) (mediasoup.ProducerServer, error)
	ListLiveByCall(ctx context.Context, callID uuid.UUID) ([]mediasoup.ProducerServer, error)
	Remove(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
	RemoveByTransport(ctx context.Context, transportID uuid.UUID) (int64, error)
	RemoveByServer(ctx context.Context, serverID uuid.UUID) (int64, error)
}

type ConnectRequestRepository interface {
	Create(ctx context.Context, r *mediasoup.ConnectRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (mediasoup.ConnectRequest, error)
	// ListPendingFor returns requests addressed to the given server ordered by
	// insertion (Seq ascending), the order the relay must preserve per transport.
	ListPendingFor(ctx context.Context, serverID uuid.UUID) ([]mediasoup.ConnectRequest, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteByServer(ctx context.Context, serverID uuid.UUID) (int64, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *account.User) error
	GetByID(ctx context.Context, id uuid.UUID) (account.User, error)
	GetByEmail(ctx context.Context, email string) (account.User, error)
	Count(ctx context.Context) (int64, error)
}

type APIKeyRepository interface {
	Create(ctx context.Context, k *account.APIKey) error
	GetLiveByUser(ctx context.Context, userID uuid.UUID) (account.APIKey, error)
	GetLiveByKey(ctx context.Context, key string) (account.APIKey, error)
	ListLiveByUser(ctx context.Context, userID uuid.UUID) ([]account.APIKey, error)
	Remove(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
	FindIncludingDeleted(ctx context.Context, id uuid.UUID) (account.APIKey, error)
}

type SettingRepository interface {
	Get(ctx context.Context, name string) (account.Setting, error)
	Upsert(ctx context.Context, name, value string) (account.Setting, error)
}

type UploadTokenRepository interface {
	Create(ctx context.Context, t *account.UploadToken) error
	GetByID(ctx context.Context, id uuid.UUID) (account.UploadToken, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
