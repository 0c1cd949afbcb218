package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/concierge-dev/concierge/internal/scheduler"
	"github.com/concierge-dev/concierge/internal/service"
	"github.com/concierge-dev/concierge/internal/service/auth"
	"github.com/concierge-dev/concierge/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidAPIKey):
		return http.StatusUnauthorized

	// Not found errors
	case store.IsNotFoundError(err):
		return http.StatusNotFound

	// Lifecycle conflicts
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrRetryExhausted),
		errors.Is(err, service.ErrTaskNotCancellable),
		errors.Is(err, scheduler.ErrTaskNotClaimable),
		errors.Is(err, store.ErrTransitionConflict):
		return http.StatusConflict

	// Referenced entity missing
	case errors.Is(err, service.ErrParentTaskNotFound):
		return http.StatusUnprocessableEntity

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrQueryEmpty),
		errors.Is(err, domain.ErrTaskTitleEmpty),
		errors.Is(err, domain.ErrTaskPriorityInvalid),
		errors.Is(err, domain.ErrTaskMaxAttemptsInvalid):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, auth.ErrInvalidAPIKey):
		return "Invalid credentials"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, store.ErrExecutionNotFound):
		return "Execution not found"

	case store.IsNotFoundError(err):
		return "Not found"

	case errors.Is(err, service.ErrParentTaskNotFound):
		return "Parent task not found"

	case errors.Is(err, service.ErrTaskNotCancellable):
		return "Task is already in a terminal state"

	case errors.Is(err, scheduler.ErrTaskNotClaimable):
		return "Task is not pending"

	case errors.Is(err, domain.ErrRetryExhausted):
		return "Task has no attempts remaining"

	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, store.ErrTransitionConflict):
		return "Task status does not allow this operation"

	case errors.Is(err, domain.ErrQueryEmpty):
		return "Query text cannot be empty"

	case errors.Is(err, domain.ErrTaskTitleEmpty):
		return "Task title cannot be empty"

	case errors.Is(err, domain.ErrTaskPriorityInvalid):
		return "Task priority must be between 1 and 5"

	case errors.Is(err, domain.ErrTaskMaxAttemptsInvalid):
		return "Task max attempts must be positive"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes a sanitized error response for err, logging the
// full error server-side. userMessage overrides the derived safe message
// when non-empty.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, userMessage string) {
	status := MapErrorToStatusCode(err)
	if userMessage == "" {
		userMessage = GetSafeErrorMessage(err)
	}
	RespondWithErrorAndLog(w, r, status, userMessage, err)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Example format: "Key: 'CreateTaskRequest.Title' Error:Field
	// validation for 'Title' failed on the 'required' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}

				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too small"
	case "max":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
