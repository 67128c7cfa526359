package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// SeenCache implements ports.TransferSeenCache. It is a best-effort fast path
// in front of the ledger insert: a re-polled transfer hash found here is
// skipped without a database round trip. The ledger's unique constraint stays
// authoritative, so cache misses and redis outages only cost an extra query.
type SeenCache struct {
	client *goredis.Client
	prefix string
}

// NewSeenCache creates a new Redis-backed seen-transfer cache.
func NewSeenCache(client *goredis.Client) *SeenCache {
	return &SeenCache{
		client: client,
		prefix: "transfer:seen:",
	}
}

// Seen reports whether the transfer hash was already observed.
func (c *SeenCache) Seen(ctx context.Context, txHash string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+txHash).Result()
	if err != nil {
		return false, fmt.Errorf("redis seen check: %w", err)
	}
	return n > 0, nil
}

// MarkSeen remembers a transfer hash for ttl.
func (c *SeenCache) MarkSeen(ctx context.Context, txHash string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+txHash, 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis mark seen: %w", err)
	}
	return nil
}
