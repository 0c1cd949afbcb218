package api

import (
	"net/http"
	"time"

	"github.com/concierge-dev/concierge/internal/api/shared"
	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/google/uuid"
)

// Thin aliases so handlers in this package read without the shared prefix.
var (
	DecodeJSON             = shared.DecodeJSON
	RespondWithJSON        = shared.RespondWithJSON
	RespondWithError       = shared.RespondWithError
	RespondWithErrorAndLog = shared.RespondWithErrorAndLog
)

// TokenRequest is the request body for POST /auth/token.
type TokenRequest struct {
	APIKey string `json:"api_key" validate:"required,min=8"`
}

// TokenResponse is the response body for POST /auth/token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateTaskRequest is the request body for POST /tasks.
type CreateTaskRequest struct {
	Title           string         `json:"title" validate:"required,max=500"`
	Description     string         `json:"description,omitempty"`
	AssignedHandler string         `json:"assigned_handler,omitempty"`
	Priority        int            `json:"priority,omitempty" validate:"omitempty,min=1,max=5"`
	MaxAttempts     int            `json:"max_attempts,omitempty" validate:"omitempty,min=1"`
	ScheduledAt     *time.Time     `json:"scheduled_at,omitempty"`
	ParentTaskID    *uuid.UUID     `json:"parent_task_id,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// UpdateTaskRequest is the request body for PATCH /tasks/{id}. Absent
// fields are left unchanged.
type UpdateTaskRequest struct {
	Title           *string        `json:"title,omitempty" validate:"omitempty,max=500"`
	Description     *string        `json:"description,omitempty"`
	AssignedHandler *string        `json:"assigned_handler,omitempty"`
	Priority        *int           `json:"priority,omitempty" validate:"omitempty,min=1,max=5"`
	ScheduledAt     *time.Time     `json:"scheduled_at,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// TaskResponse is the serialized form of a task in API responses.
type TaskResponse struct {
	ID              uuid.UUID         `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	Status          domain.TaskStatus `json:"status"`
	AssignedHandler string            `json:"assigned_handler,omitempty"`
	Priority        int               `json:"priority"`
	ScheduledAt     *time.Time        `json:"scheduled_at,omitempty"`
	Result          string            `json:"result,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	AttemptCount    int               `json:"attempt_count"`
	MaxAttempts     int               `json:"max_attempts"`
	ParentTaskID    *uuid.UUID        `json:"parent_task_id,omitempty"`
	Metadata        map[string]any    `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// NewTaskResponse converts a domain task to its API representation.
func NewTaskResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:              task.ID,
		Title:           task.Title,
		Description:     task.Description,
		Status:          task.Status,
		AssignedHandler: task.AssignedHandler,
		Priority:        task.Priority,
		ScheduledAt:     task.ScheduledAt,
		Result:          task.Result,
		ErrorMessage:    task.ErrorMessage,
		AttemptCount:    task.AttemptCount,
		MaxAttempts:     task.MaxAttempts,
		ParentTaskID:    task.ParentTaskID,
		Metadata:        task.Metadata,
		CreatedAt:       task.CreatedAt,
		UpdatedAt:       task.UpdatedAt,
		StartedAt:       task.StartedAt,
		CompletedAt:     task.CompletedAt,
	}
}

// TaskListResponse wraps a page of tasks.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}

// NewTaskListResponse converts a slice of domain tasks.
func NewTaskListResponse(tasks []*domain.Task) TaskListResponse {
	out := TaskListResponse{Tasks: make([]TaskResponse, 0, len(tasks))}
	for _, task := range tasks {
		out.Tasks = append(out.Tasks, NewTaskResponse(task))
	}
	return out
}

// QueryRequest is the request body for POST /query.
type QueryRequest struct {
	Query string `json:"query" validate:"required"`
}

// QueryResponse is the response body for POST /query.
type QueryResponse struct {
	Reply      string             `json:"reply"`
	Handler    string             `json:"handler"`
	Tier       domain.RoutingTier `json:"tier"`
	Confidence float64            `json:"confidence"`
	OK         bool               `json:"ok"`
	Error      string             `json:"error,omitempty"`
}

// DecisionResponse is the serialized form of a routing decision.
type DecisionResponse struct {
	ID              uuid.UUID          `json:"id"`
	QueryText       string             `json:"query_text"`
	TierUsed        domain.RoutingTier `json:"tier_used"`
	SelectedHandler string             `json:"selected_handler"`
	Confidence      float64            `json:"confidence"`
	LatencyMs       int64              `json:"latency_ms"`
	CreatedAt       time.Time          `json:"created_at"`
}

// DecisionListResponse wraps recent routing decisions.
type DecisionListResponse struct {
	Decisions []DecisionResponse `json:"decisions"`
}

// NewDecisionListResponse converts a slice of domain routing decisions.
func NewDecisionListResponse(decisions []*domain.RoutingDecision) DecisionListResponse {
	out := DecisionListResponse{Decisions: make([]DecisionResponse, 0, len(decisions))}
	for _, d := range decisions {
		out.Decisions = append(out.Decisions, DecisionResponse{
			ID:              d.ID,
			QueryText:       d.QueryText,
			TierUsed:        d.TierUsed,
			SelectedHandler: d.SelectedHandler,
			Confidence:      d.Confidence,
			LatencyMs:       d.LatencyMs,
			CreatedAt:       d.CreatedAt,
		})
	}
	return out
}

// StatsResponse is the response body for GET /tasks/stats.
type StatsResponse struct {
	ByStatus   map[domain.TaskStatus]int `json:"by_status"`
	ByHandler  map[string]int            `json:"by_handler"`
	ByPriority map[int]int               `json:"by_priority"`
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// respondCreated is a small helper for 201 responses.
func respondCreated(w http.ResponseWriter, r *http.Request, data interface{}) {
	RespondWithJSON(w, r, http.StatusCreated, data)
}
