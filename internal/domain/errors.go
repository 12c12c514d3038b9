// Package domain provides shared domain-level sentinel errors and the
// relation reference type used across tenant-scoped entities.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested entity does not exist or is outside
// the caller's tenant scope.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a unique or foreign-key constraint rejected a write.
var ErrConflict = errors.New("conflict")

// ErrDuplicate indicates a unique constraint rejected a write. It matches
// ErrConflict as well.
var ErrDuplicate = fmt.Errorf("duplicate: %w", ErrConflict)

// ErrValidation marks input that failed validation.
var ErrValidation = errors.New("validation failed")

// ErrForbidden indicates the access policy denied the operation.
var ErrForbidden = errors.New("forbidden")

// ErrUnauthenticated indicates missing or invalid credentials where they are required.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrLookup indicates a store lookup failed while resolving access context.
var ErrLookup = errors.New("lookup failed")

// ValidationError is a validation failure attributed to a single input field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError returns a field-attributed validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error { return ErrValidation }
