package store

import (
	"context"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/google/uuid"
)

// ExecutionStore persists handler execution records. Rows are created at
// invocation start, usage counters may be rolled up into parents, and
// sealing writes the final status, counters, and log exactly once.
type ExecutionStore interface {
	// CreateExecution persists a new running execution.
	CreateExecution(ctx context.Context, exec *domain.Execution) error

	// SealExecution writes an execution's terminal status, completion
	// time, counters, and ordered log. Child usage counters roll up into
	// the in-memory parent execution before it is sealed, so the parent
	// row receives aggregate totals here.
	SealExecution(ctx context.Context, exec *domain.Execution) error

	// GetExecution retrieves an execution by ID.
	// Returns ErrExecutionNotFound if it does not exist.
	GetExecution(ctx context.Context, id uuid.UUID) (*domain.Execution, error)
}
