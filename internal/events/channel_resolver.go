package events

import "fmt"

// ChannelResolver maps an envelope to the pub/sub channels it should be
// delivered on.
type ChannelResolver interface {
	ResolveChannels(env Envelope) []string
}

// DefaultChannelResolver publishes every change on its collection channel,
// and additionally on the addressed server's mailbox channel when the
// envelope targets one (connect requests).
type DefaultChannelResolver struct{}

func NewChannelResolver() ChannelResolver {
	return DefaultChannelResolver{}
}

func (DefaultChannelResolver) ResolveChannels(env Envelope) []string {
	if env.Collection == "" {
		return nil
	}
	channels := []string{CollectionChannel(env.Collection)}
	if env.Server != "" {
		channels = append(channels, ServerChannel(env.Server))
	}
	return channels
}

// CollectionChannel is the channel carrying all changes for one collection.
func CollectionChannel(collection string) string {
	return fmt.Sprintf("channel:collection:%s", collection)
}

// ServerChannel is the per-server mailbox channel.
func ServerChannel(serverID string) string {
	return fmt.Sprintf("channel:server:%s", serverID)
}
