package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache over a Redis backend. Every backend error
// (connection refused, timeout) is logged and degraded to miss/no-op;
// callers cannot distinguish an unreachable backend from a cold cache.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisCache creates a RedisCache talking to the given address.
func NewRedisCache(addr string, logger *slog.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	return &RedisCache{
		client: client,
		logger: logger.With("component", "redis_cache"),
	}
}

// Get returns the cached value for key. Backend errors are misses.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed, treating as miss",
				"key", key,
				"error", err)
		}
		return "", false
	}
	return value, true
}

// Set stores value under key. Backend errors are no-ops.
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed, skipping",
			"key", key,
			"error", err)
	}
}

// Invalidate removes key. Backend errors are no-ops.
func (c *RedisCache) Invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("cache invalidate failed, skipping",
			"key", key,
			"error", err)
	}
}

// Close releases the underlying Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
