package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/concierge-dev/concierge/internal/cache"
	"github.com/concierge-dev/concierge/internal/config"
	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/concierge-dev/concierge/internal/registry"
	"github.com/concierge-dev/concierge/internal/store"
)

// HandlerSource exposes the registered handlers and their routing
// metadata. Satisfied by the registry.
type HandlerSource interface {
	Names() []string
	MetadataFor(name string) (registry.Metadata, bool)
}

// regexRule is one compiled Tier-1 rule. Rules are ordered: handler
// registration order first, then the handler's pattern order.
type regexRule struct {
	handler string
	pattern *regexp.Regexp
}

// corpus holds one handler's Tier-2 scoring material.
type corpus struct {
	handler  string
	examples []string
}

// Router is the tiered decision engine.
type Router struct {
	rules   []regexRule
	corpora []corpus

	lexical  *lexicalScorer
	semantic *semanticScorer

	cache     cache.Cache
	decisions store.DecisionStore
	logger    *slog.Logger
	config    config.RouterConfig

	decisionTTL time.Duration
}

// New builds a Router seeded from the handler source. Tier-1 patterns
// are compiled here; an invalid pattern is a construction error, not a
// routing-time surprise.
func New(
	source HandlerSource,
	embedder Embedder,
	c cache.Cache,
	decisions store.DecisionStore,
	routerCfg config.RouterConfig,
	cacheCfg config.CacheConfig,
	logger *slog.Logger,
) (*Router, error) {
	log := logger.With("component", "router")

	r := &Router{
		lexical:     newLexicalScorer(),
		semantic:    newSemanticScorer(embedder, c, cacheCfg.EmbeddingTTL, log),
		cache:       c,
		decisions:   decisions,
		logger:      log,
		config:      routerCfg,
		decisionTTL: cacheCfg.DecisionTTL,
	}

	for _, name := range source.Names() {
		meta, ok := source.MetadataFor(name)
		if !ok {
			continue
		}

		for _, p := range meta.Patterns {
			compiled, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("handler %q pattern %q: %w", name, p, err)
			}
			r.rules = append(r.rules, regexRule{handler: name, pattern: compiled})
		}

		r.lexical.addCorpus(name, meta.Keywords)
		if len(meta.Examples) > 0 {
			r.corpora = append(r.corpora, corpus{handler: name, examples: meta.Examples})
		}

		// Warm the handler metadata cache class for dashboard reads.
		if encoded, err := json.Marshal(meta); err == nil {
			c.Set(context.Background(), cache.HandlerMetadataKey(name), string(encoded),
				cacheCfg.HandlerMetadataTTL)
		}
	}

	log.Info("router seeded",
		"rules", len(r.rules),
		"corpora", len(r.corpora))

	return r, nil
}

// cachedDecision is the decision cache entry shape.
type cachedDecision struct {
	Tier       domain.RoutingTier `json:"tier"`
	Handler    string             `json:"handler"`
	Confidence float64            `json:"confidence"`
}

// Route decides which handler should serve the query. Every call
// appends one RoutingDecision record, cached decisions included; only
// the latency differs. An empty or whitespace-only query is rejected
// before any tier runs.
func (r *Router) Route(ctx context.Context, query string) (*domain.RoutingDecision, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrQueryEmpty
	}

	start := time.Now()

	if cached, ok := r.cache.Get(ctx, cache.DecisionKey(query)); ok {
		var entry cachedDecision
		if err := json.Unmarshal([]byte(cached), &entry); err == nil && entry.Handler != "" {
			return r.record(ctx, query, entry.Tier, entry.Handler, entry.Confidence, start)
		}
		r.cache.Invalidate(ctx, cache.DecisionKey(query))
	}

	// Tier 1: first matching rule wins with full confidence.
	for _, rule := range r.rules {
		if rule.pattern.MatchString(query) {
			r.cacheDecision(ctx, query, domain.TierRegex, rule.handler, 1.0)
			return r.record(ctx, query, domain.TierRegex, rule.handler, 1.0, start)
		}
	}

	// Tier 2: weighted lexical+semantic scoring.
	top := r.scoreHybrid(ctx, query)
	if top.handler != "" && top.combined >= r.config.ConfidenceThreshold {
		r.cacheDecision(ctx, query, domain.TierHybrid, top.handler, top.combined)
		return r.record(ctx, query, domain.TierHybrid, top.handler, top.combined, start)
	}

	// Tier 3: fall back to full reasoning. The raw top score is kept for
	// threshold tuning.
	r.cacheDecision(ctx, query, domain.TierFallback, registry.FullReasoningHandler, top.combined)
	return r.record(ctx, query, domain.TierFallback, registry.FullReasoningHandler, top.combined, start)
}

// hybridScore is one handler's Tier-2 scoring outcome.
type hybridScore struct {
	handler  string
	lexical  float64
	semantic float64
	combined float64
}

// scoreHybrid scores every handler corpus and returns the winner under
// the deterministic tie-break: within epsilon of the best, prefer
// higher semantic, then higher lexical, then registration order.
func (r *Router) scoreHybrid(ctx context.Context, query string) hybridScore {
	queryVec, err := r.semantic.embed(ctx, query)
	if err != nil {
		// Without an embedding the semantic component contributes zero
		// and low lexical scores drop through to the fallback tier.
		r.logger.Warn("query embedding unavailable, scoring lexically only", "error", err)
		queryVec = nil
	}

	var best hybridScore
	for _, c := range r.corpora {
		s := hybridScore{
			handler: c.handler,
			lexical: r.lexical.score(c.handler, query),
		}
		if queryVec != nil {
			s.semantic = r.semantic.score(ctx, queryVec, c.examples)
		}
		s.combined = r.config.LexicalWeight*s.lexical + r.config.SemanticWeight*s.semantic

		if best.handler == "" || r.beats(s, best) {
			best = s
		}
	}
	return best
}

// beats reports whether challenger displaces the incumbent. Iteration
// runs in registration order, so exact ties keep the incumbent.
func (r *Router) beats(challenger, incumbent hybridScore) bool {
	diff := challenger.combined - incumbent.combined
	if diff > r.config.TieEpsilon {
		return true
	}
	if diff < -r.config.TieEpsilon {
		return false
	}
	if challenger.semantic != incumbent.semantic {
		return challenger.semantic > incumbent.semantic
	}
	return challenger.lexical > incumbent.lexical
}

// record persists and returns the decision. A persistence failure is
// logged but does not fail routing: the decision stands, the audit
// record is lost.
func (r *Router) record(
	ctx context.Context,
	query string,
	tier domain.RoutingTier,
	handler string,
	confidence float64,
	start time.Time,
) (*domain.RoutingDecision, error) {
	decision, err := domain.NewRoutingDecision(query, tier, handler, confidence, time.Since(start))
	if err != nil {
		return nil, err
	}

	if err := r.decisions.CreateDecision(ctx, decision); err != nil {
		r.logger.Error("failed to persist routing decision",
			"decision_id", decision.ID,
			"handler", handler,
			"error", err)
	}

	r.logger.Debug("routed query",
		"tier", tier,
		"handler", handler,
		"confidence", confidence,
		"latency_ms", decision.LatencyMs)

	return decision, nil
}

func (r *Router) cacheDecision(
	ctx context.Context,
	query string,
	tier domain.RoutingTier,
	handler string,
	confidence float64,
) {
	entry := cachedDecision{Tier: tier, Handler: handler, Confidence: confidence}
	if encoded, err := json.Marshal(entry); err == nil {
		r.cache.Set(ctx, cache.DecisionKey(query), string(encoded), r.decisionTTL)
	}
}
