package subscriber

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestScopeHashIsOrderIndependent(t *testing.T) {
	serverID := uuid.New()
	a := ScopeHashFor(serverID, "conn-1", "jr_call_peers", map[string]string{"call_id": "c1", "hunt_id": "h1"})
	b := ScopeHashFor(serverID, "conn-1", "jr_call_peers", map[string]string{"hunt_id": "h1", "call_id": "c1"})
	require.Equal(t, a, b)
}

func TestScopeHashDistinguishesScope(t *testing.T) {
	serverID := uuid.New()
	base := ScopeHashFor(serverID, "conn-1", "jr_call_peers", map[string]string{"call_id": "c1"})

	require.NotEqual(t, base, ScopeHashFor(uuid.New(), "conn-1", "jr_call_peers", map[string]string{"call_id": "c1"}))
	require.NotEqual(t, base, ScopeHashFor(serverID, "conn-2", "jr_call_peers", map[string]string{"call_id": "c1"}))
	require.NotEqual(t, base, ScopeHashFor(serverID, "conn-1", "jr_calls", map[string]string{"call_id": "c1"}))
	require.NotEqual(t, base, ScopeHashFor(serverID, "conn-1", "jr_call_peers", map[string]string{"call_id": "c2"}))
	require.NotEqual(t, base, ScopeHashFor(serverID, "conn-1", "jr_call_peers", nil))
}

func TestScopeHashFieldsDoNotBleed(t *testing.T) {
	// the separator keeps adjacent fields from colliding
	serverID := uuid.New()
	a := ScopeHashFor(serverID, "ab", "c", nil)
	b := ScopeHashFor(serverID, "a", "bc", nil)
	require.NotEqual(t, a, b)
}

func TestContextRoundTrip(t *testing.T) {
	in := map[string]string{"call_id": "c1", "hunt_id": "h1"}
	require.Equal(t, in, DecodeContext(EncodeContext(in)))

	require.Equal(t, "{}", EncodeContext(nil))
	require.Empty(t, DecodeContext(""))
	require.Empty(t, DecodeContext("{}"))
}
