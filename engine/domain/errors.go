package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrUnknownEntityType   = errors.New("unknown entity type")
	ErrUnknownRelationType = errors.New("unknown relationship type")
	ErrEmptyName           = errors.New("empty name")
	ErrNoDocuments         = errors.New("no documents found")
	ErrPluginMissing       = errors.New("graph database plugin missing")
	ErrEmptyQuestion       = errors.New("empty question")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
