package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/concierge-dev/concierge/internal/cache"
)

// Embedder produces a vector embedding for a text. Satisfied by the
// Gemini platform client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// semanticScorer scores queries against per-handler example corpora by
// cosine similarity of embeddings. Embeddings are cache-checked before
// recomputing; cache failures degrade to recomputation.
type semanticScorer struct {
	embedder Embedder
	cache    cache.Cache
	ttl      time.Duration
	logger   *slog.Logger
}

func newSemanticScorer(embedder Embedder, c cache.Cache, ttl time.Duration, logger *slog.Logger) *semanticScorer {
	return &semanticScorer{
		embedder: embedder,
		cache:    c,
		ttl:      ttl,
		logger:   logger,
	}
}

// embed returns the embedding for text, consulting the cache first.
func (s *semanticScorer) embed(ctx context.Context, text string) ([]float32, error) {
	key := cache.EmbeddingKey(text)

	if cached, ok := s.cache.Get(ctx, key); ok {
		var vec []float32
		if err := json.Unmarshal([]byte(cached), &vec); err == nil && len(vec) > 0 {
			return vec, nil
		}
		// A corrupt entry is treated as a miss.
		s.cache.Invalidate(ctx, key)
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(vec); err == nil {
		s.cache.Set(ctx, key, string(encoded), s.ttl)
	}

	return vec, nil
}

// score returns the best cosine similarity between the query embedding
// and the handler's example embeddings, clamped to [0, 1]. An embedding
// failure for an individual example skips that example.
func (s *semanticScorer) score(ctx context.Context, queryVec []float32, examples []string) float64 {
	best := 0.0
	for _, example := range examples {
		vec, err := s.embed(ctx, example)
		if err != nil {
			s.logger.Warn("failed to embed example, skipping",
				"example", example,
				"error", err)
			continue
		}
		if sim := cosineSimilarity(queryVec, vec); sim > best {
			best = sim
		}
	}
	if best > 1 {
		best = 1
	}
	return best
}

// cosineSimilarity returns the cosine of the angle between a and b,
// clamped at 0. Mismatched lengths and zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	return sim
}
