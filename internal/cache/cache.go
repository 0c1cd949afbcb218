// Package cache provides the decision cache: a TTL key-value store for
// embeddings, routing decisions, and handler metadata. The cache is an
// accelerator, never a dependency: any backend failure is absorbed at
// this boundary and surfaces as an ordinary miss, so callers recompute
// and the system continues at reduced performance.
package cache

import (
	"context"
	"time"
)

// Key prefixes for the recognized cache classes.
const (
	embeddingKeyPrefix       = "embedding:"
	decisionKeyPrefix        = "decision:"
	handlerMetadataKeyPrefix = "handler_meta:"
)

// Cache is the decision cache contract. Implementations must never
// return backend errors: a failed Get is a miss, a failed Set or
// Invalidate is a no-op.
type Cache interface {
	// Get returns the cached value for key and whether it was found.
	Get(ctx context.Context, key string) (string, bool)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration)

	// Invalidate removes key from the cache.
	Invalidate(ctx context.Context, key string)
}

// EmbeddingKey builds the cache key for a query embedding.
func EmbeddingKey(query string) string {
	return embeddingKeyPrefix + query
}

// DecisionKey builds the cache key for a routing decision.
func DecisionKey(query string) string {
	return decisionKeyPrefix + query
}

// HandlerMetadataKey builds the cache key for a handler's metadata.
func HandlerMetadataKey(handler string) string {
	return handlerMetadataKeyPrefix + handler
}
