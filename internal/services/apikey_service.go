package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/account"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/repository"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
	"github.com/Palindrome-Puzzles/jolly-roger/pkg/logger"
)

// Locker is the named advisory lock service used to serialize the key
// issuance critical section across processes.
type Locker interface {
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// APIKeyService issues and rolls per-user API keys. Issuance runs inside a
// per-user named lock: uniqueness cannot lean on a plain index because rolled
// keys stay around soft-deleted.
type APIKeyService struct {
	keys  repository.APIKeyRepository
	users repository.UserRepository
	locks Locker
	log   *logger.Logger
}

func NewAPIKeyService(keys repository.APIKeyRepository, users repository.UserRepository, locks Locker, log *logger.Logger) *APIKeyService {
	return &APIKeyService{keys: keys, users: users, locks: locks, log: log}
}

// FetchAPIKey returns the user's live key, creating one if needed. Only
// admins may fetch another user's key.
func (s *APIKeyService) FetchAPIKey(ctx context.Context, callerID uuid.UUID, forUser *uuid.UUID) (string, error) {
	target, err := s.userForKeyOperation(ctx, callerID, forUser)
	if err != nil {
		return "", err
	}

	if key, err := s.keys.GetLiveByUser(ctx, target); err == nil {
		return key.Key, nil
	} else if !errors.Is(err, jr_errors.ErrNotFound) {
		return "", fmt.Errorf("fetch api key: %w", err)
	}

	var out string
	lockName := fmt.Sprintf("api_key:%s", target)
	err = s.locks.WithLock(ctx, lockName, func(ctx context.Context) error {
		// re-check under the lock: another process may have issued one
		if key, err := s.keys.GetLiveByUser(ctx, target); err == nil {
			out = key.Key
			return nil
		} else if !errors.Is(err, jr_errors.ErrNotFound) {
			return err
		}

		now := time.Now()
		key := account.APIKey{
			ID:        uuid.New(),
			UserID:    target,
			Key:       generateKey(32),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if s.log != nil {
			s.log.Infof("generating new API key for user %s (requested by %s)", target, callerID)
		}
		if err := s.keys.Create(ctx, &key); err != nil {
			return err
		}
		out = key.Key
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fetch api key: %w", err)
	}
	return out, nil
}

// RollAPIKey expires the user's live keys and issues a fresh one.
func (s *APIKeyService) RollAPIKey(ctx context.Context, callerID uuid.UUID, forUser *uuid.UUID) (string, error) {
	target, err := s.userForKeyOperation(ctx, callerID, forUser)
	if err != nil {
		return "", err
	}

	keys, err := s.keys.ListLiveByUser(ctx, target)
	if err != nil {
		return "", fmt.Errorf("roll api key: %w", err)
	}
	for _, k := range keys {
		if s.log != nil {
			s.log.Infof("expiring API key %s for user %s (requested by %s)", k.ID, target, callerID)
		}
		if err := s.keys.Remove(ctx, k.ID); err != nil && !errors.Is(err, jr_errors.ErrNotFound) {
			return "", fmt.Errorf("roll api key: %w", err)
		}
	}

	return s.FetchAPIKey(ctx, callerID, &target)
}

// ResolveKey maps an API key string to its owning user.
func (s *APIKeyService) ResolveKey(ctx context.Context, key string) (account.User, error) {
	record, err := s.keys.GetLiveByKey(ctx, key)
	if err != nil {
		if errors.Is(err, jr_errors.ErrNotFound) {
			return account.User{}, jr_errors.ErrUnauthorized
		}
		return account.User{}, err
	}
	return s.users.GetByID(ctx, record.UserID)
}

func (s *APIKeyService) userForKeyOperation(ctx context.Context, callerID uuid.UUID, forUser *uuid.UUID) (uuid.UUID, error) {
	if forUser == nil || *forUser == callerID {
		return callerID, nil
	}
	caller, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve caller: %w", err)
	}
	if !caller.IsAdmin {
		return uuid.Nil, fmt.Errorf("only operators can fetch other users' keys: %w", jr_errors.ErrForbidden)
	}
	return *forUser, nil
}

const keyAlphabet = "23456789ABCDEFGHJKLMNPQRSTWXYZabcdefghijkmnopqrstuvwxyz"

func generateKey(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i := range buf {
		buf[i] = keyAlphabet[int(buf[i])%len(keyAlphabet)]
	}
	return string(buf)
}
