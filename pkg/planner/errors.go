package planner

import (
	"errors"
	"fmt"
)

// ErrorKind classifies planner failures.
type ErrorKind string

const (
	// ErrorKindSchemaViolation is a planner model reply that broke the
	// council-plan schema.
	ErrorKindSchemaViolation ErrorKind = "schema_violation"
	// ErrorKindNoModelAvailable means no configured model could seat the
	// council or serve as the planner.
	ErrorKindNoModelAvailable ErrorKind = "no_model_available"
)

// Error is a classified planner failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error returns formatted error message
func (e *Error) Error() string {
	return fmt.Sprintf("planner %s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a planner error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var plErr *Error
	return errors.As(err, &plErr) && plErr.Kind == kind
}
