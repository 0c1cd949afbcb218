package gemini

import "errors"

// Errors returned by the Gemini client wrapper.
var (
	// ErrInvalidConfig is returned when the client is constructed with
	// missing or invalid settings.
	ErrInvalidConfig = errors.New("invalid gemini configuration")

	// ErrEmptyInput is returned when a generation or embedding call is
	// made with empty input text.
	ErrEmptyInput = errors.New("input text cannot be empty")

	// ErrInvalidResponse is returned when the API responds with no
	// usable content.
	ErrInvalidResponse = errors.New("invalid response from gemini API")

	// ErrContentBlocked is returned when the API refuses to generate
	// content for safety reasons. Not retryable.
	ErrContentBlocked = errors.New("content blocked by safety filters")
)
