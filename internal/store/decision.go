package store

import (
	"context"

	"github.com/concierge-dev/concierge/internal/domain"
)

// DecisionStore persists routing decision audit records.
// Decisions are write-once; there is no update or delete.
type DecisionStore interface {
	// CreateDecision appends one routing decision record.
	CreateDecision(ctx context.Context, decision *domain.RoutingDecision) error

	// ListRecent returns the most recent decisions, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.RoutingDecision, error)
}
