package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the store and the session.
var (
	// ErrNotFound is returned when a saved game does not exist.
	ErrNotFound = errors.New("game not found")
	// ErrMalformedRecord is returned when a stored game cannot be decoded.
	ErrMalformedRecord = errors.New("malformed game record")
	// ErrSaveFailed wraps store failures during save. The live match is kept.
	ErrSaveFailed = errors.New("unable to save game")
)

// ValidationError represents a field validation failure.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s' %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError with the given field and message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError checks if the given error is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsValidationError attempts to extract a ValidationError from the given error.
// Returns nil if the error is not a ValidationError.
func AsValidationError(err error) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}
