package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
)

// LockStore provides named advisory locks shared by all server processes.
// A lock is a SETNX key holding an owner token with a TTL; release compares
// the token so an expired lock reclaimed by another process is never deleted
// by the original holder.
type LockStore struct {
	client *goredis.Client
	ttl    time.Duration
	retry  time.Duration
}

const lockKeyPrefix = "lock:"

// releaseScript deletes the lock key only when the caller still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func NewLockStore(client *goredis.Client, ttl time.Duration) *LockStore {
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &LockStore{client: client, ttl: ttl, retry: 50 * time.Millisecond}
}

// Acquire takes the named lock, blocking until it is available or ctx is done.
// It returns the owner token needed to release.
func (s *LockStore) Acquire(ctx context.Context, name string) (string, error) {
	key := lockKeyPrefix + name
	token := uuid.New().String()

	for {
		ok, err := s.client.SetNX(ctx, key, token, s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("acquire lock %s: %w", name, err)
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("acquire lock %s: %w", name, jr_errors.ErrTimeout)
		case <-time.After(s.retry):
		}
	}
}

// Release frees the lock if token still owns it.
func (s *LockStore) Release(ctx context.Context, name, token string) error {
	key := lockKeyPrefix + name
	return releaseScript.Run(ctx, s.client, []string{key}, token).Err()
}

// WithLock runs fn inside the named critical section. The lock is released
// even when fn fails. The critical section should not span long-running I/O
// beyond what it must serialize.
func (s *LockStore) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	token, err := s.Acquire(ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		// best effort, a fresh context so release survives ctx cancellation
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Release(releaseCtx, name, token)
	}()
	return fn(ctx)
}
