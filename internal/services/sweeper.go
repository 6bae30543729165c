package services

import (
	"context"
	"math/rand"
	"time"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/config"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/repository"
	"github.com/Palindrome-Puzzles/jolly-roger/pkg/logger"
)

// HeartbeatSweepCache is the scan side of the heartbeat accelerator: list
// entries whose cached heartbeat expired and drop them.
type HeartbeatSweepCache interface {
	StaleMembers(ctx context.Context, cutoff time.Time) ([]string, error)
	Forget(ctx context.Context, serverID string) error
}

// Sweeper is the periodic background task that garbage-collects transient
// state: dead servers (and everything they owned), stale connect-request
// mailbox entries, unused upload tokens, and expired heartbeat cache
// entries. Every server runs one; the interval is jittered so the fleet
// doesn't sweep in lockstep.
type Sweeper struct {
	cfg          config.CoordinationConfig
	registry     *RegistryService
	signaling    *SignalingService
	uploadTokens repository.UploadTokenRepository
	heartbeats   HeartbeatSweepCache
	log          *logger.Logger
	now          func() time.Time
}

func NewSweeper(
	cfg config.CoordinationConfig,
	registry *RegistryService,
	signaling *SignalingService,
	uploadTokens repository.UploadTokenRepository,
	heartbeats HeartbeatSweepCache,
	log *logger.Logger,
) *Sweeper {
	return &Sweeper{
		cfg:          cfg,
		registry:     registry,
		signaling:    signaling,
		uploadTokens: uploadTokens,
		heartbeats:   heartbeats,
		log:          log,
		now:          time.Now,
	}
}

// Run sweeps until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		wait := s.cfg.SweepInterval
		if s.cfg.SweepJitter > 0 {
			wait += time.Duration(rand.Int63n(int64(s.cfg.SweepJitter)))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		s.SweepOnce(ctx)
	}
}

// SweepOnce runs all reapers. Individual failures are logged and the rest of
// the pass continues; a single bad record never takes the process down.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	if s.registry != nil {
		if n, err := s.registry.ReapDeadServers(ctx, s.cfg.StalenessThreshold); err != nil {
			s.logError("sweep dead servers: %v", err)
		} else if n > 0 {
			s.logInfo("swept %d dead servers", n)
		}
	}

	if s.signaling != nil {
		if n, err := s.signaling.ReapStaleRequests(ctx); err != nil {
			s.logError("sweep stale connect requests: %v", err)
		} else if n > 0 {
			s.logInfo("swept %d stale connect requests", n)
		}
	}

	if s.uploadTokens != nil {
		cutoff := s.now().Add(-s.cfg.UploadTokenTTL)
		if n, err := s.uploadTokens.DeleteOlderThan(ctx, cutoff); err != nil {
			s.logError("sweep upload tokens: %v", err)
		} else if n > 0 {
			s.logInfo("swept %d expired upload tokens", n)
		}
	}

	// cache entries whose server was reaped without a Forget (crash between
	// the store delete and the cache call) would otherwise linger forever
	if s.heartbeats != nil {
		cutoff := s.now().Add(-s.cfg.StalenessThreshold)
		ids, err := s.heartbeats.StaleMembers(ctx, cutoff)
		if err != nil {
			s.logError("scan heartbeat cache: %v", err)
		} else {
			for _, id := range ids {
				if err := s.heartbeats.Forget(ctx, id); err != nil {
					s.logError("forget cached heartbeat %s: %v", id, err)
				}
			}
			if len(ids) > 0 {
				s.logInfo("swept %d expired heartbeat cache entries", len(ids))
			}
		}
	}
}

func (s *Sweeper) logError(template string, args ...interface{}) {
	if s.log != nil {
		s.log.Errorf(template, args...)
	}
}

func (s *Sweeper) logInfo(template string, args ...interface{}) {
	if s.log != nil {
		s.log.Infof(template, args...)
	}
}
