package httpdto

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
)

func TestFromErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{jr_errors.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
		{jr_errors.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{jr_errors.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{jr_errors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{jr_errors.ErrConflict, http.StatusConflict, "CONFLICT"},
		{jr_errors.ErrAlreadyExists, http.StatusConflict, "CONFLICT"},
		{jr_errors.ErrInvalidTransition, http.StatusConflict, "CONFLICT"},
		{jr_errors.ErrTokenExpired, http.StatusGone, "TOKEN_EXPIRED"},
		{jr_errors.ErrTimeout, http.StatusGatewayTimeout, "TIMEOUT"},
		{jr_errors.ErrServiceUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE"},
	}

	for _, tc := range cases {
		status, body := FromError(fmt.Errorf("op failed: %w", tc.err))
		require.Equal(t, tc.status, status, tc.err.Error())
		require.Equal(t, tc.code, body.Code, tc.err.Error())
		require.False(t, body.Success)
	}
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	status, body := FromError(fmt.Errorf("disk on fire"))
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "INTERNAL_ERROR", body.Code)
	// unexpected errors never leak their message to clients
	require.Equal(t, "internal error", body.Error)
}
