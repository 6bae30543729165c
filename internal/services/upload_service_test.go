package services

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/account"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
)

type memUploadTokenRepo struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]account.UploadToken
}

func newMemUploadTokenRepo() *memUploadTokenRepo {
	return &memUploadTokenRepo{tokens: make(map[uuid.UUID]account.UploadToken)}
}

func (r *memUploadTokenRepo) Create(_ context.Context, t *account.UploadToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.ID] = *t
	return nil
}

func (r *memUploadTokenRepo) GetByID(_ context.Context, id uuid.UUID) (account.UploadToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok {
		return account.UploadToken{}, jr_errors.ErrNotFound
	}
	return t, nil
}

func (r *memUploadTokenRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[id]; !ok {
		return jr_errors.ErrNotFound
	}
	delete(r.tokens, id)
	return nil
}

func (r *memUploadTokenRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tokens {
		if t.CreatedAt.Before(cutoff) {
			delete(r.tokens, id)
			n++
		}
	}
	return n, nil
}

type memBlobStore struct {
	mu    sync.Mutex
	blobs map[string]string
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string]string)}
}

func (s *memBlobStore) Put(_ context.Context, key, _ string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = string(data)
	return nil
}

func TestUploadTokenRoundTrip(t *testing.T) {
	tokens := newMemUploadTokenRepo()
	blobs := newMemBlobStore()
	svc := NewUploadService(tokens, blobs, time.Minute, nil)

	ctx := context.Background()
	token, err := svc.CreateToken(ctx, uuid.New(), "huntlogo.png", "image/png")
	require.NoError(t, err)

	require.NoError(t, svc.Consume(ctx, token.ID, strings.NewReader("image-bytes")))
	require.Equal(t, "image-bytes", blobs.blobs["huntlogo.png"])

	// tokens are single use
	err = svc.Consume(ctx, token.ID, strings.NewReader("again"))
	require.ErrorIs(t, err, jr_errors.ErrNotFound)
}

func TestUploadTokenExpires(t *testing.T) {
	tokens := newMemUploadTokenRepo()
	blobs := newMemBlobStore()
	svc := NewUploadService(tokens, blobs, time.Minute, nil)

	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	ctx := context.Background()
	token, err := svc.CreateToken(ctx, uuid.New(), "huntlogo.png", "image/png")
	require.NoError(t, err)

	clock = clock.Add(2 * time.Minute)
	err = svc.Consume(ctx, token.ID, strings.NewReader("late"))
	require.ErrorIs(t, err, jr_errors.ErrTokenExpired)
	require.Empty(t, blobs.blobs)

	// the expired token is burned, not left for retries
	_, err = tokens.GetByID(ctx, token.ID)
	require.ErrorIs(t, err, jr_errors.ErrNotFound)
}

func TestCreateTokenValidatesInput(t *testing.T) {
	svc := NewUploadService(newMemUploadTokenRepo(), newMemBlobStore(), time.Minute, nil)
	_, err := svc.CreateToken(context.Background(), uuid.New(), "", "image/png")
	require.ErrorIs(t, err, jr_errors.ErrInvalidInput)
	_, err = svc.CreateToken(context.Background(), uuid.New(), "huntlogo.png", "")
	require.ErrorIs(t, err, jr_errors.ErrInvalidInput)
}
