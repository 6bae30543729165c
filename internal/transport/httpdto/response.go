package httpdto

import (
	"errors"
	"net/http"

	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
)

type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// FromError maps a service error to an HTTP status, a stable error code,
// and the response body to send.
func FromError(err error) (int, Response[any]) {
	switch {
	case errors.Is(err, jr_errors.ErrInvalidInput):
		return http.StatusBadRequest, NewErrorResponse(err.Error(), "INVALID_INPUT")
	case errors.Is(err, jr_errors.ErrUnauthorized):
		return http.StatusUnauthorized, NewErrorResponse("unauthorized", "UNAUTHORIZED")
	case errors.Is(err, jr_errors.ErrForbidden):
		return http.StatusForbidden, NewErrorResponse("forbidden", "FORBIDDEN")
	case errors.Is(err, jr_errors.ErrNotFound):
		return http.StatusNotFound, NewErrorResponse("not found", "NOT_FOUND")
	case errors.Is(err, jr_errors.ErrAlreadyExists), errors.Is(err, jr_errors.ErrConflict), errors.Is(err, jr_errors.ErrInvalidTransition):
		return http.StatusConflict, NewErrorResponse(err.Error(), "CONFLICT")
	case errors.Is(err, jr_errors.ErrTokenExpired):
		return http.StatusGone, NewErrorResponse("token expired", "TOKEN_EXPIRED")
	case errors.Is(err, jr_errors.ErrTimeout):
		return http.StatusGatewayTimeout, NewErrorResponse("coordination timeout", "TIMEOUT")
	case errors.Is(err, jr_errors.ErrServiceUnavailable), errors.Is(err, jr_errors.ErrServerStale):
		return http.StatusServiceUnavailable, NewErrorResponse("service unavailable", "UNAVAILABLE")
	default:
		return http.StatusInternalServerError, NewErrorResponse("internal error", "INTERNAL_ERROR")
	}
}
