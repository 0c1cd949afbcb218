package service

import "errors"

// Common service errors - sentinel errors used across service
// implementations. Callers check these with errors.Is(); the API layer
// maps them to HTTP status codes.
var (
	// ErrParentTaskNotFound indicates a task referenced a parent that
	// does not exist. API layer should map this to HTTP 422.
	ErrParentTaskNotFound = errors.New("parent task not found")

	// ErrTaskNotCancellable indicates a cancel was requested for a task
	// already in a terminal state. API layer should map this to HTTP 409.
	ErrTaskNotCancellable = errors.New("task is already in a terminal state")
)
