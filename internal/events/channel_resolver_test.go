package events

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestResolveChannelsForCollectionChange(t *testing.T) {
	resolver := NewChannelResolver()
	env := NewEnvelope(CollectionCalls, uuid.New().String(), OpAdded, map[string]string{"router_state": "NO_ROUTER"})

	channels := resolver.ResolveChannels(env)
	require.Equal(t, []string{"channel:collection:jr_calls"}, channels)
}

func TestResolveChannelsForAddressedChange(t *testing.T) {
	resolver := NewChannelResolver()
	serverID := uuid.New().String()
	env := NewEnvelope(CollectionConnectRequests, uuid.New().String(), OpAdded, nil)
	env.Server = serverID

	channels := resolver.ResolveChannels(env)
	require.Len(t, channels, 2)
	require.Contains(t, channels, "channel:collection:jr_mediasoup_monitor_connect_requests")
	require.Contains(t, channels, "channel:server:"+serverID)
}

func TestResolveChannelsSkipsEmptyCollection(t *testing.T) {
	resolver := NewChannelResolver()
	require.Nil(t, resolver.ResolveChannels(Envelope{}))
}

func TestEnvelopeCarriesDocument(t *testing.T) {
	env := NewEnvelope(PseudoTeamName, PseudoTeamName, OpChanged, map[string]string{"name": "Plunderers"})
	require.Equal(t, OpChanged, env.Op)
	require.False(t, env.OccurredAt.IsZero())

	var doc map[string]string
	require.NoError(t, json.Unmarshal(env.Doc, &doc))
	require.Equal(t, "Plunderers", doc["name"])
}

func TestEnvelopeWithoutDocument(t *testing.T) {
	env := NewEnvelope(CollectionCallPeers, uuid.New().String(), OpRemoved, nil)
	require.Empty(t, env.Doc)
}
