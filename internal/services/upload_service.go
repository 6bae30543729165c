package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/account"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/repository"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
	"github.com/Palindrome-Puzzles/jolly-roger/pkg/logger"
)

// BlobStore is where consumed uploads land.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
}

// UploadService authenticates uploads with short-lived tokens. A client
// requests a token through the authenticated API, then posts the asset to
// the token's unguessable id; tokens unused within the TTL are swept.
type UploadService struct {
	tokens repository.UploadTokenRepository
	blobs  BlobStore
	ttl    time.Duration
	log    *logger.Logger
	now    func() time.Time
}

func NewUploadService(tokens repository.UploadTokenRepository, blobs BlobStore, ttl time.Duration, log *logger.Logger) *UploadService {
	if ttl == 0 {
		ttl = time.Minute
	}
	return &UploadService{tokens: tokens, blobs: blobs, ttl: ttl, log: log, now: time.Now}
}

// CreateToken issues an upload token for the given asset.
func (s *UploadService) CreateToken(ctx context.Context, userID uuid.UUID, asset, mimeType string) (account.UploadToken, error) {
	if asset == "" || mimeType == "" {
		return account.UploadToken{}, fmt.Errorf("create upload token: %w", jr_errors.ErrInvalidInput)
	}
	token := account.UploadToken{
		ID:        uuid.New(),
		UserID:    userID,
		Asset:     asset,
		MimeType:  mimeType,
		CreatedAt: s.now(),
	}
	if err := s.tokens.Create(ctx, &token); err != nil {
		return account.UploadToken{}, fmt.Errorf("create upload token: %w", err)
	}
	return token, nil
}

// Consume validates the token, stores the asset, and burns the token.
func (s *UploadService) Consume(ctx context.Context, tokenID uuid.UUID, body io.Reader) error {
	token, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("consume upload token: %w", err)
	}
	if s.now().Sub(token.CreatedAt) > s.ttl {
		// burn it anyway so it can't be retried
		_ = s.tokens.Delete(ctx, tokenID)
		return fmt.Errorf("consume upload token: %w", jr_errors.ErrTokenExpired)
	}

	if err := s.blobs.Put(ctx, token.Asset, token.MimeType, body); err != nil {
		return fmt.Errorf("store asset %s: %w", token.Asset, err)
	}
	if err := s.tokens.Delete(ctx, tokenID); err != nil && s.log != nil {
		s.log.Warnf("could not burn upload token %s: %v", tokenID, err)
	}
	return nil
}
