package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/concierge-dev/concierge/internal/platform/logger"
	"github.com/concierge-dev/concierge/internal/store"
	"github.com/google/uuid"
)

// taskColumns is the column list shared by every task SELECT.
const taskColumns = `id, title, description, status, assigned_handler, priority,
	scheduled_at, result, error_message, attempt_count, max_attempts,
	parent_task_id, metadata, created_at, updated_at, started_at, completed_at`

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{db: db}
}

// WithTx returns a TaskStore bound to the given transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx}
}

// CreateTask persists a new task.
func (s *PostgresTaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	metadata, err := marshalMetadata(task.Metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (id, title, description, status, assigned_handler, priority,
			scheduled_at, attempt_count, max_attempts, parent_task_id, metadata,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = s.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		nullString(task.AssignedHandler),
		task.Priority,
		nullTime(task.ScheduledAt),
		task.AttemptCount,
		task.MaxAttempts,
		nullUUID(task.ParentTaskID),
		metadata,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create task",
			"task_id", task.ID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetTask retrieves a task by ID.
func (s *PostgresTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}

	return task, nil
}

// UpdateTask updates a task's editable fields.
func (s *PostgresTaskStore) UpdateTask(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	metadata, err := marshalMetadata(task.Metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE tasks
		SET title = $1, description = $2, assigned_handler = $3, priority = $4,
			scheduled_at = $5, metadata = $6, updated_at = $7
		WHERE id = $8
	`

	result, err := s.db.ExecContext(ctx, query,
		task.Title,
		task.Description,
		nullString(task.AssignedHandler),
		task.Priority,
		nullTime(task.ScheduledAt),
		metadata,
		time.Now().UTC(),
		task.ID,
	)
	if err != nil {
		log.Error("failed to update task",
			"task_id", task.ID,
			"error", err)
		return MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rows == 0 {
		return store.ErrTaskNotFound
	}

	return nil
}

// DeleteTask removes a task. The parent_task_id foreign key is declared
// ON DELETE CASCADE, so children go with it.
func (s *PostgresTaskStore) DeleteTask(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rows == 0 {
		return store.ErrTaskNotFound
	}

	return nil
}

// ListTasks returns tasks matching the filter, newest first.
func (s *PostgresTaskStore) ListTasks(
	ctx context.Context,
	filter store.TaskFilter,
) ([]*domain.Task, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.AssignedHandler != "" {
		args = append(args, filter.AssignedHandler)
		conditions = append(conditions, "assigned_handler = $"+strconv.Itoa(len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		conditions = append(conditions, "priority = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += " LIMIT $" + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	return s.queryTasks(ctx, query, args...)
}

// GetReady returns up to limit dispatchable pending tasks, strict
// priority order with FIFO tie-break.
func (s *PostgresTaskStore) GetReady(
	ctx context.Context,
	limit int,
	handlerFilter string,
) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = $1 AND (scheduled_at IS NULL OR scheduled_at <= $2)`
	args := []interface{}{domain.TaskStatusPending, time.Now().UTC()}

	if handlerFilter != "" {
		args = append(args, handlerFilter)
		query += " AND assigned_handler = $" + strconv.Itoa(len(args))
	}

	args = append(args, limit)
	query += " ORDER BY priority ASC, created_at ASC LIMIT $" + strconv.Itoa(len(args))

	return s.queryTasks(ctx, query, args...)
}

// ClaimTask atomically transitions a pending task to in_progress. The
// WHERE status = 'pending' guard is the exclusivity point: of any number
// of concurrent claim attempts, exactly one updates the row.
func (s *PostgresTaskStore) ClaimTask(
	ctx context.Context,
	id uuid.UUID,
	now time.Time,
) (bool, error) {
	query := `
		UPDATE tasks
		SET status = $1,
			attempt_count = attempt_count + 1,
			started_at = COALESCE(started_at, $2),
			updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.TaskStatusInProgress,
		now.UTC(),
		id,
		domain.TaskStatusPending,
	)
	if err != nil {
		return false, MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, MapError(err)
	}

	return rows == 1, nil
}

// TransitionStatus moves a task between statuses atomically, stamping
// completed_at for terminal states in the same write.
func (s *PostgresTaskStore) TransitionStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.TaskStatus,
	result, errorMessage string,
) error {
	log := logger.FromContext(ctx)

	if !domain.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}

	now := time.Now().UTC()
	var completedAt interface{}
	if domain.IsTerminalStatus(to) {
		completedAt = now
	}

	query := `
		UPDATE tasks
		SET status = $1, result = $2, error_message = $3,
			completed_at = $4, updated_at = $5
		WHERE id = $6 AND status = $7
	`

	res, err := s.db.ExecContext(ctx, query,
		to,
		nullString(result),
		nullString(errorMessage),
		completedAt,
		now,
		id,
		from,
	)
	if err != nil {
		log.Error("failed to transition task status",
			"task_id", id,
			"from", from,
			"to", to,
			"error", err)
		return MapError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rows == 0 {
		// Either the task is gone or its status changed underneath us.
		if _, getErr := s.GetTask(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: task %s is no longer %s", store.ErrTransitionConflict, id, from)
	}

	return nil
}

// ReleaseForRetry returns an in_progress task to pending with a deferred
// scheduled time, recording the failure that triggered the retry. The
// WHERE status = 'in_progress' guard keeps a cancellation that landed
// mid-flight intact, and the attempt_count guard enforces the retry cap
// even when the caller's snapshot of the counter is stale.
func (s *PostgresTaskStore) ReleaseForRetry(
	ctx context.Context,
	id uuid.UUID,
	retryAt time.Time,
	errorMessage string,
) error {
	query := `
		UPDATE tasks
		SET status = $1, scheduled_at = $2, error_message = $3, updated_at = $4
		WHERE id = $5 AND status = $6 AND attempt_count < max_attempts
	`

	res, err := s.db.ExecContext(ctx, query,
		domain.TaskStatusPending,
		retryAt.UTC(),
		nullString(errorMessage),
		time.Now().UTC(),
		id,
		domain.TaskStatusInProgress,
	)
	if err != nil {
		return MapError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rows == 0 {
		task, getErr := s.GetTask(ctx, id)
		if getErr != nil {
			return getErr
		}
		if task.Status != domain.TaskStatusInProgress {
			return fmt.Errorf("%w: task %s is no longer %s",
				store.ErrTransitionConflict, id, domain.TaskStatusInProgress)
		}
		return domain.ErrRetryExhausted
	}

	return nil
}

// ResetForRetry moves a failed task back to pending when attempts remain.
func (s *PostgresTaskStore) ResetForRetry(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE tasks
		SET status = $1, error_message = NULL, completed_at = NULL, updated_at = $2
		WHERE id = $3 AND status = $4 AND attempt_count < max_attempts
	`

	res, err := s.db.ExecContext(ctx, query,
		domain.TaskStatusPending,
		time.Now().UTC(),
		id,
		domain.TaskStatusFailed,
	)
	if err != nil {
		return MapError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rows == 0 {
		task, getErr := s.GetTask(ctx, id)
		if getErr != nil {
			return getErr
		}
		if task.Status != domain.TaskStatusFailed {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, task.Status, domain.TaskStatusPending)
		}
		return domain.ErrRetryExhausted
	}

	return nil
}

// ResetStuck returns in_progress tasks older than the given age to
// pending, for crash recovery at startup.
func (s *PostgresTaskStore) ResetStuck(
	ctx context.Context,
	olderThan time.Duration,
) (int, error) {
	query := `
		UPDATE tasks
		SET status = $1, updated_at = $2
		WHERE status = $3 AND updated_at < $4
	`

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, query,
		domain.TaskStatusPending,
		now,
		domain.TaskStatusInProgress,
		now.Add(-olderThan),
	)
	if err != nil {
		return 0, MapError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, MapError(err)
	}

	return int(rows), nil
}

// CountByGroup returns task counts grouped by status, handler, and priority.
func (s *PostgresTaskStore) CountByGroup(ctx context.Context) (*store.TaskStats, error) {
	stats := &store.TaskStats{
		ByStatus:   make(map[domain.TaskStatus]int),
		ByHandler:  make(map[string]int),
		ByPriority: make(map[int]int),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COALESCE(assigned_handler, ''), priority, COUNT(*)
		 FROM tasks
		 GROUP BY status, assigned_handler, priority`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status domain.TaskStatus
		var handler string
		var priority, count int
		if err := rows.Scan(&status, &handler, &priority, &count); err != nil {
			return nil, MapError(err)
		}
		stats.ByStatus[status] += count
		if handler != "" {
			stats.ByHandler[handler] += count
		}
		stats.ByPriority[priority] += count
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return stats, nil
}

// queryTasks runs a task SELECT and scans all rows.
func (s *PostgresTaskStore) queryTasks(
	ctx context.Context,
	query string,
	args ...interface{},
) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return tasks, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanTask scans one task row into a domain.Task.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var assignedHandler, result, errorMessage sql.NullString
	var scheduledAt, startedAt, completedAt sql.NullTime
	var parentTaskID uuid.NullUUID
	var metadata []byte

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&assignedHandler,
		&task.Priority,
		&scheduledAt,
		&result,
		&errorMessage,
		&task.AttemptCount,
		&task.MaxAttempts,
		&parentTaskID,
		&metadata,
		&task.CreatedAt,
		&task.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	task.AssignedHandler = assignedHandler.String
	task.Result = result.String
	task.ErrorMessage = errorMessage.String
	if scheduledAt.Valid {
		t := scheduledAt.Time
		task.ScheduledAt = &t
	}
	if startedAt.Valid {
		t := startedAt.Time
		task.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}
	if parentTaskID.Valid {
		id := parentTaskID.UUID
		task.ParentTaskID = &id
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &task.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode task metadata: %w", err)
		}
	}

	return &task, nil
}

// marshalMetadata serializes the metadata bag for the jsonb column.
// Empty metadata stores as NULL.
func marshalMetadata(metadata map[string]any) (interface{}, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	return json.Marshal(metadata)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
