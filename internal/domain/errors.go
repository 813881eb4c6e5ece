package domain

import "errors"

// Domain errors
var (
	ErrUsageNotFound = errors.New("usage record not found")
	ErrInvalidPDF    = errors.New("invalid PDF document")
	ErrMissingFields = errors.New("missing required fields")
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}
