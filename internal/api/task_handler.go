package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/concierge-dev/concierge/internal/service"
	"github.com/concierge-dev/concierge/internal/store"
)

const defaultListLimit = 50

// TaskHandler handles task lifecycle API requests.
type TaskHandler struct {
	taskService *service.TaskService
	validator   *validator.Validate
}

// NewTaskHandler creates a new TaskHandler with the given dependencies.
func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		validator:   validator.New(),
	}
}

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest

	if err := DecodeJSON(r, &req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), service.CreateTaskParams{
		Title:           req.Title,
		Description:     req.Description,
		AssignedHandler: req.AssignedHandler,
		Priority:        req.Priority,
		MaxAttempts:     req.MaxAttempts,
		ScheduledAt:     req.ScheduledAt,
		ParentTaskID:    req.ParentTaskID,
		Metadata:        req.Metadata,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	respondCreated(w, r, NewTaskResponse(task))
}

// Get handles GET /tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := getPathUUID(r, "id")
	if !ok {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	task, err := h.taskService.GetTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	RespondWithJSON(w, r, http.StatusOK, NewTaskResponse(task))
}

// List handles GET /tasks with optional status, handler, priority,
// limit, and offset query parameters.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.TaskFilter{Limit: defaultListLimit}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.TaskStatus(raw)
		if !domain.ValidTaskStatus(status) {
			RespondWithError(w, r, http.StatusBadRequest, "Invalid status filter")
			return
		}
		filter.Status = &status
	}
	filter.AssignedHandler = r.URL.Query().Get("handler")
	if raw := r.URL.Query().Get("priority"); raw != "" {
		priority, err := strconv.Atoi(raw)
		if err != nil || priority < 1 || priority > 5 {
			RespondWithError(w, r, http.StatusBadRequest, "Invalid priority filter")
			return
		}
		filter.Priority = &priority
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			RespondWithError(w, r, http.StatusBadRequest, "Invalid offset")
			return
		}
		filter.Offset = offset
	}

	tasks, err := h.taskService.ListTasks(r.Context(), filter)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	RespondWithJSON(w, r, http.StatusOK, NewTaskListResponse(tasks))
}

// Update handles PATCH /tasks/{id}.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := getPathUUID(r, "id")
	if !ok {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	var req UpdateTaskRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	task, err := h.taskService.UpdateTask(r.Context(), id, service.UpdateTaskParams{
		Title:           req.Title,
		Description:     req.Description,
		AssignedHandler: req.AssignedHandler,
		Priority:        req.Priority,
		ScheduledAt:     req.ScheduledAt,
		Metadata:        req.Metadata,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	RespondWithJSON(w, r, http.StatusOK, NewTaskResponse(task))
}

// Delete handles DELETE /tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := getPathUUID(r, "id")
	if !ok {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	if err := h.taskService.DeleteTask(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Execute handles POST /tasks/{id}/execute: runs the task immediately
// through the shared claim path instead of waiting for the next poll.
func (h *TaskHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id, ok := getPathUUID(r, "id")
	if !ok {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	task, err := h.taskService.ExecuteTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	RespondWithJSON(w, r, http.StatusOK, NewTaskResponse(task))
}

// Cancel handles POST /tasks/{id}/cancel.
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := getPathUUID(r, "id")
	if !ok {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	task, err := h.taskService.CancelTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	RespondWithJSON(w, r, http.StatusOK, NewTaskResponse(task))
}

// Retry handles POST /tasks/{id}/retry: the explicit failed-to-pending
// reset.
func (h *TaskHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, ok := getPathUUID(r, "id")
	if !ok {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	task, err := h.taskService.RetryTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	RespondWithJSON(w, r, http.StatusOK, NewTaskResponse(task))
}

// Stats handles GET /tasks/stats.
func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.taskService.Stats(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	RespondWithJSON(w, r, http.StatusOK, StatsResponse{
		ByStatus:   stats.ByStatus,
		ByHandler:  stats.ByHandler,
		ByPriority: stats.ByPriority,
	})
}
