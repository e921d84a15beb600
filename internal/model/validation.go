package model

import (
	"errors"
	"fmt"
)

// ErrInvalid is matched by every ValidationError.
var ErrInvalid = errors.New("invalid record")

// ValidationError reports the first field that failed a schema check.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s %s", e.Entity, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

func invalid(entity, field, reason string) error {
	return &ValidationError{Entity: entity, Field: field, Reason: reason}
}
