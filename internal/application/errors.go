package application

import (
	"errors"
	"fmt"

	"github.com/example/conference-scheduler/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the caller could not be authenticated.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
)

// ReasonError carries a scheduler.Reason through APIs that return (value, error).
type ReasonError struct {
	Reason scheduler.Reason
	Err    error
}

func reasonError(reason scheduler.Reason, err error) *ReasonError {
	return &ReasonError{Reason: reason, Err: err}
}

// Error implements the error interface.
func (e *ReasonError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason.String()
}

// Unwrap exposes the underlying cause.
func (e *ReasonError) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the reason carried by err, or ReasonNone.
func ReasonOf(err error) scheduler.Reason {
	var rErr *ReasonError
	if errors.As(err, &rErr) {
		return rErr.Reason
	}
	return scheduler.ReasonNone
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
