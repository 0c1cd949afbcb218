package postgres

import (
	"context"
	"fmt"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/concierge-dev/concierge/internal/platform/logger"
	"github.com/concierge-dev/concierge/internal/store"
)

// PostgresDecisionStore implements store.DecisionStore using PostgreSQL.
type PostgresDecisionStore struct {
	db store.DBTX
}

// NewPostgresDecisionStore creates a new PostgresDecisionStore.
func NewPostgresDecisionStore(db store.DBTX) *PostgresDecisionStore {
	return &PostgresDecisionStore{db: db}
}

// CreateDecision appends one routing decision record.
func (s *PostgresDecisionStore) CreateDecision(
	ctx context.Context,
	decision *domain.RoutingDecision,
) error {
	log := logger.FromContext(ctx)

	if err := decision.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO routing_decisions
			(id, query_text, tier_used, selected_handler, confidence, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		decision.ID,
		decision.QueryText,
		decision.TierUsed,
		decision.SelectedHandler,
		decision.Confidence,
		decision.LatencyMs,
		decision.CreatedAt,
	)
	if err != nil {
		log.Error("failed to record routing decision",
			"decision_id", decision.ID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// ListRecent returns the most recent decisions, newest first.
func (s *PostgresDecisionStore) ListRecent(
	ctx context.Context,
	limit int,
) ([]*domain.RoutingDecision, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, query_text, tier_used, selected_handler, confidence, latency_ms, created_at
		FROM routing_decisions
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []*domain.RoutingDecision
	for rows.Next() {
		var d domain.RoutingDecision
		if err := rows.Scan(
			&d.ID,
			&d.QueryText,
			&d.TierUsed,
			&d.SelectedHandler,
			&d.Confidence,
			&d.LatencyMs,
			&d.CreatedAt,
		); err != nil {
			return nil, MapError(err)
		}
		decisions = append(decisions, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return decisions, nil
}
