package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/config"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/account"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
)

func TestSweepOnceReapsEverything(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	reg := newRegistryFixture()
	reg.clock = clock

	sig := newSignalingFixture()
	sig.svc.now = func() time.Time { return clock }

	tokens := newMemUploadTokenRepo()

	cfg := config.CoordinationConfig{
		HeartbeatInterval:  5 * time.Second,
		StalenessThreshold: 15 * time.Second,
		HandshakeTimeout:   30 * time.Second,
		SweepInterval:      15 * time.Second,
		SweepJitter:        15 * time.Second,
		UploadTokenTTL:     time.Minute,
	}
	sweeper := NewSweeper(cfg, reg.svc, sig.svc, tokens, reg.cache, nil)
	sweeper.now = func() time.Time { return clock }

	// a server that will go silent, a stale mailbox entry, an unused token,
	// and a cache entry orphaned by a crash mid-reap
	dead, err := reg.svc.RegisterServer(ctx, "host-a", 100)
	require.NoError(t, err)

	staleReq, err := sig.svc.RequestConnect(ctx, sig.connectParams(uuid.New(), uuid.New()))
	require.NoError(t, err)

	staleToken := account.UploadToken{ID: uuid.New(), UserID: uuid.New(), Asset: "a.png", MimeType: "image/png", CreatedAt: clock}
	require.NoError(t, tokens.Create(ctx, &staleToken))

	orphan := uuid.New().String()
	require.NoError(t, reg.cache.Beat(ctx, orphan, clock))

	// nothing is swept while everything is fresh
	sweeper.SweepOnce(ctx)
	_, err = reg.servers.GetByID(ctx, dead.ID)
	require.NoError(t, err)
	require.Contains(t, reg.cache.beats, orphan)

	clock = clock.Add(2 * time.Minute)
	reg.clock = clock

	sweeper.SweepOnce(ctx)

	_, err = reg.servers.GetByID(ctx, dead.ID)
	require.ErrorIs(t, err, jr_errors.ErrNotFound)
	_, err = sig.requests.GetByID(ctx, staleReq.ID)
	require.ErrorIs(t, err, jr_errors.ErrNotFound)
	_, err = tokens.GetByID(ctx, staleToken.ID)
	require.ErrorIs(t, err, jr_errors.ErrNotFound)
	require.NotContains(t, reg.cache.beats, orphan)
	require.Empty(t, reg.cache.beats)
}
