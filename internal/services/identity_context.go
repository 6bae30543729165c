package services

import (
	"context"

	"github.com/google/uuid"

	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
)

type identityCtxKey struct{}

// Identity is the authenticated caller attached to a request context by the
// auth middleware, whether it came in via JWT or API key.
type Identity struct {
	UserID  uuid.UUID
	IsAdmin bool
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	if !ok {
		return Identity{}, jr_errors.ErrUnauthorized
	}
	return id, nil
}
