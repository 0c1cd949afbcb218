package cache_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/concierge-dev/concierge/internal/cache"
	"github.com/stretchr/testify/assert"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("get miss on empty cache", func(t *testing.T) {
		c := cache.NewMemoryCache()
		_, found := c.Get(ctx, "missing")
		assert.False(t, found)
	})

	t.Run("set then get", func(t *testing.T) {
		c := cache.NewMemoryCache()
		c.Set(ctx, cache.EmbeddingKey("open issue"), "[0.1,0.2]", time.Hour)

		value, found := c.Get(ctx, cache.EmbeddingKey("open issue"))
		assert.True(t, found)
		assert.Equal(t, "[0.1,0.2]", value)
	})

	t.Run("expired entries are misses", func(t *testing.T) {
		c := cache.NewMemoryCache()
		c.Set(ctx, "key", "value", -time.Second)

		_, found := c.Get(ctx, "key")
		assert.False(t, found)
	})

	t.Run("invalidate removes entry", func(t *testing.T) {
		c := cache.NewMemoryCache()
		c.Set(ctx, "key", "value", time.Hour)
		c.Invalidate(ctx, "key")

		_, found := c.Get(ctx, "key")
		assert.False(t, found)
	})
}

// An unreachable Redis backend must behave exactly like a cold cache:
// every Get is a miss, every Set/Invalidate a silent no-op.
func TestRedisCacheDegradesToMiss(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Port 1 is never listening; every operation fails at the backend.
	c := cache.NewRedisCache("127.0.0.1:1", logger)
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, found := c.Get(ctx, "key")
	assert.False(t, found, "backend error must read as a miss, not surface")

	// Neither of these may panic or return anything to the caller.
	c.Set(ctx, "key", "value", time.Minute)
	c.Invalidate(ctx, "key")

	_, found = c.Get(ctx, "key")
	assert.False(t, found)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "embedding:q", cache.EmbeddingKey("q"))
	assert.Equal(t, "decision:q", cache.DecisionKey("q"))
	assert.Equal(t, "handler_meta:email", cache.HandlerMetadataKey("email"))
	assert.NotEqual(t, cache.EmbeddingKey("q"), cache.DecisionKey("q"),
		"cache classes must not collide")
}
