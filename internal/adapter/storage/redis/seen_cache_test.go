package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeenCache_MissThenHit(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewSeenCache(client)
	ctx := context.Background()

	seen, err := cache.Seen(ctx, "hash-abc")
	require.NoError(t, err)
	assert.False(t, seen, "unknown hash should be a miss")

	require.NoError(t, cache.MarkSeen(ctx, "hash-abc", time.Hour))

	seen, err = cache.Seen(ctx, "hash-abc")
	require.NoError(t, err)
	assert.True(t, seen, "marked hash should be a hit")
}

func TestSeenCache_Expiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewSeenCache(client)
	ctx := context.Background()

	require.NoError(t, cache.MarkSeen(ctx, "hash-ttl", time.Minute))
	s.FastForward(2 * time.Minute)

	seen, err := cache.Seen(ctx, "hash-ttl")
	require.NoError(t, err)
	assert.False(t, seen, "expired hash should be a miss")
}

func TestSeenCache_IndependentHashes(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewSeenCache(client)
	ctx := context.Background()

	require.NoError(t, cache.MarkSeen(ctx, "hash-1", time.Hour))

	seen, err := cache.Seen(ctx, "hash-2")
	require.NoError(t, err)
	assert.False(t, seen)
}
