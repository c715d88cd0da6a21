package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured indicates no API key was provided.
	ErrNotConfigured = errors.New("openai api key not configured")

	// ErrInvalidAPIKey indicates OpenAI rejected the API key.
	ErrInvalidAPIKey = errors.New("openai api key is invalid")

	// ErrRateLimited indicates too many requests were sent.
	ErrRateLimited = errors.New("openai rate limit reached")

	// ErrQuotaExceeded indicates the account ran out of quota.
	ErrQuotaExceeded = errors.New("openai quota exceeded")

	// ErrInvalidOutput indicates the model response did not match the
	// expected structure.
	ErrInvalidOutput = errors.New("invalid model output")
)

// APIError is a non-2xx response that maps to no sentinel.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("openai returned status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("openai returned status %d: %s", e.Status, e.Message)
}

// retryable reports whether the request may succeed if sent again.
func (e *APIError) retryable() bool {
	return e.Status >= 500
}
