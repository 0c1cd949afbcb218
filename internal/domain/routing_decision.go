package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RoutingTier identifies which stage of the decision engine produced a
// routing decision.
type RoutingTier string

// Routing tiers, in evaluation order.
const (
	// TierRegex is the deterministic pattern tier: first matching rule
	// wins with confidence 1.0.
	TierRegex RoutingTier = "regex"

	// TierHybrid is the combined lexical+semantic scoring tier.
	TierHybrid RoutingTier = "hybrid"

	// TierFallback routes to the full-reasoning handler when no other
	// tier produced a confident answer. It is the intended catch-all,
	// not a failure.
	TierFallback RoutingTier = "fallback"
)

// RoutingDecision-specific validation errors.
var (
	// ErrQueryEmpty is returned when a routing query is empty or
	// whitespace-only.
	ErrQueryEmpty = errors.New("query text cannot be empty")

	// ErrDecisionHandlerEmpty is returned when a decision names no handler.
	ErrDecisionHandlerEmpty = errors.New("routing decision must name a handler")

	// ErrDecisionTierInvalid is returned when a decision carries an
	// unknown tier.
	ErrDecisionTierInvalid = errors.New("routing decision tier is not a recognized value")

	// ErrDecisionConfidenceInvalid is returned when confidence is outside [0,1].
	ErrDecisionConfidenceInvalid = errors.New("routing decision confidence must be between 0 and 1")
)

// RoutingDecision is a write-once audit record of one routing choice.
// It is used for analytics and threshold tuning and never mutated.
type RoutingDecision struct {
	ID              uuid.UUID   `json:"id"`
	QueryText       string      `json:"query_text"`
	TierUsed        RoutingTier `json:"tier_used"`
	SelectedHandler string      `json:"selected_handler"`
	Confidence      float64     `json:"confidence"`
	LatencyMs       int64       `json:"latency_ms"`
	CreatedAt       time.Time   `json:"created_at"`
}

// NewRoutingDecision creates a RoutingDecision for the given query.
// Returns an error if validation fails.
func NewRoutingDecision(
	queryText string,
	tier RoutingTier,
	handler string,
	confidence float64,
	latency time.Duration,
) (*RoutingDecision, error) {
	decision := &RoutingDecision{
		ID:              uuid.New(),
		QueryText:       queryText,
		TierUsed:        tier,
		SelectedHandler: handler,
		Confidence:      confidence,
		LatencyMs:       latency.Milliseconds(),
		CreatedAt:       time.Now().UTC(),
	}

	if err := decision.Validate(); err != nil {
		return nil, err
	}

	return decision, nil
}

// Validate checks if the RoutingDecision has valid data.
func (d *RoutingDecision) Validate() error {
	if strings.TrimSpace(d.QueryText) == "" {
		return ErrQueryEmpty
	}

	switch d.TierUsed {
	case TierRegex, TierHybrid, TierFallback:
	default:
		return ErrDecisionTierInvalid
	}

	if d.SelectedHandler == "" {
		return ErrDecisionHandlerEmpty
	}

	if d.Confidence < 0 || d.Confidence > 1 {
		return ErrDecisionConfidenceInvalid
	}

	return nil
}
