package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested job, document, question or
	// credential does not exist. The API layer maps it to 404.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when creating a duplicate, e.g. a client
	// credential with a taken client_id. Maps to 409.
	ErrAlreadyExists = errors.New("entity already exists")
)

// ValidationError reports a rejected input field. Maps to 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
