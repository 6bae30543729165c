package redis

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// HeartbeatStore caches server heartbeat timestamps in a sorted set so that
// staleness scans don't need to hit Postgres on every liveness check. The
// database row remains the source of truth; this is an accelerator.
type HeartbeatStore struct {
	client *goredis.Client
}

const serverHeartbeatKey = "servers:heartbeat"

func NewHeartbeatStore(client *goredis.Client) *HeartbeatStore {
	return &HeartbeatStore{client: client}
}

// Beat records a heartbeat for the given server id.
func (h *HeartbeatStore) Beat(ctx context.Context, serverID string, at time.Time) error {
	return h.client.ZAdd(ctx, serverHeartbeatKey, goredis.Z{
		Score:  float64(at.Unix()),
		Member: serverID,
	}).Err()
}

// StaleMembers returns server ids whose cached heartbeat is older than cutoff.
func (h *HeartbeatStore) StaleMembers(ctx context.Context, cutoff time.Time) ([]string, error) {
	return h.client.ZRangeByScore(ctx, serverHeartbeatKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
}

// Forget drops a server from the heartbeat cache.
func (h *HeartbeatStore) Forget(ctx context.Context, serverID string) error {
	return h.client.ZRem(ctx, serverHeartbeatKey, serverID).Err()
}
