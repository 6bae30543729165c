package jr_errors

import (
	"errors"
)

// Common errors
var (
	ErrInvalidTransition  = errors.New("invalid router state transition")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAlreadyExists      = errors.New("already exists")
	ErrTimeout            = errors.New("coordination timeout")
	ErrServerStale        = errors.New("server heartbeat stale")
	ErrTokenExpired       = errors.New("token expired")
	ErrServiceUnavailable = errors.New("service unavailable")
)
