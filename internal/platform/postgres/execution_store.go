package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/concierge-dev/concierge/internal/platform/logger"
	"github.com/concierge-dev/concierge/internal/store"
	"github.com/google/uuid"
)

// PostgresExecutionStore implements store.ExecutionStore using PostgreSQL.
type PostgresExecutionStore struct {
	db store.DBTX
}

// NewPostgresExecutionStore creates a new PostgresExecutionStore.
func NewPostgresExecutionStore(db store.DBTX) *PostgresExecutionStore {
	return &PostgresExecutionStore{db: db}
}

// CreateExecution persists a new running execution.
func (s *PostgresExecutionStore) CreateExecution(
	ctx context.Context,
	exec *domain.Execution,
) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO executions
			(id, handler_name, task_id, parent_execution_id, status, started_at,
			 tokens_used, cost_millicents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		exec.ID,
		exec.HandlerName,
		nullUUID(exec.TaskID),
		nullUUID(exec.ParentExecutionID),
		exec.Status,
		exec.StartedAt,
		exec.TokensUsed,
		exec.CostMillicents,
	)
	if err != nil {
		log.Error("failed to create execution",
			"execution_id", exec.ID,
			"handler", exec.HandlerName,
			"error", err)
		return MapError(err)
	}

	return nil
}

// SealExecution writes an execution's terminal status, completion time,
// counters, and ordered log.
func (s *PostgresExecutionStore) SealExecution(
	ctx context.Context,
	exec *domain.Execution,
) error {
	log := logger.FromContext(ctx)

	execLog, err := marshalExecutionLog(exec.Log)
	if err != nil {
		return fmt.Errorf("%w: log: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE executions
		SET status = $1, completed_at = $2, tokens_used = $3,
			cost_millicents = $4, log = $5
		WHERE id = $6
	`

	res, err := s.db.ExecContext(ctx, query,
		exec.Status,
		nullTime(exec.CompletedAt),
		exec.TokensUsed,
		exec.CostMillicents,
		execLog,
		exec.ID,
	)
	if err != nil {
		log.Error("failed to seal execution",
			"execution_id", exec.ID,
			"error", err)
		return MapError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rows == 0 {
		return store.ErrExecutionNotFound
	}

	return nil
}

// GetExecution retrieves an execution by ID.
func (s *PostgresExecutionStore) GetExecution(
	ctx context.Context,
	id uuid.UUID,
) (*domain.Execution, error) {
	query := `
		SELECT id, handler_name, task_id, parent_execution_id, status,
			started_at, completed_at, tokens_used, cost_millicents, log
		FROM executions
		WHERE id = $1
	`

	var exec domain.Execution
	var taskID, parentID uuid.NullUUID
	var completedAt sql.NullTime
	var execLog []byte

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&exec.ID,
		&exec.HandlerName,
		&taskID,
		&parentID,
		&exec.Status,
		&exec.StartedAt,
		&completedAt,
		&exec.TokensUsed,
		&exec.CostMillicents,
		&execLog,
	)
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrExecutionNotFound
		}
		return nil, MapError(err)
	}

	if taskID.Valid {
		id := taskID.UUID
		exec.TaskID = &id
	}
	if parentID.Valid {
		id := parentID.UUID
		exec.ParentExecutionID = &id
	}
	if completedAt.Valid {
		t := completedAt.Time
		exec.CompletedAt = &t
	}
	if len(execLog) > 0 {
		if err := json.Unmarshal(execLog, &exec.Log); err != nil {
			return nil, fmt.Errorf("failed to decode execution log: %w", err)
		}
	}

	return &exec, nil
}

// marshalExecutionLog serializes the ordered log for the jsonb column.
// An empty log stores as NULL.
func marshalExecutionLog(entries []domain.ExecutionLogEntry) (interface{}, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	return json.Marshal(entries)
}
