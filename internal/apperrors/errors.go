// Package apperrors provides structured application errors with sentinel classification.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrConfig    = errors.New("configuration error")
	ErrConflict  = errors.New("conflict")
	ErrNotFound  = errors.New("not found")
	ErrOperation = errors.New("operation error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For configuration errors (e.g., "model", "resultSchema")
	Resource string // For not found/conflict (e.g., "attachment", "job")
	Op       string // Operation that failed (e.g., "job.uploadAttachment")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Is reports whether target matches the sentinel or the underlying cause.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Sentinel, target) || (e.Cause != nil && errors.Is(e.Cause, target))
}

// Config creates a configuration error for a specific field.
func Config(field, message string) error {
	return &Error{
		Sentinel: ErrConfig,
		Message:  message,
		Field:    field,
	}
}

// Conflict creates a conflict error for a resource. Conflicts are a
// configuration-time condition: they never involve the remote service.
func Conflict(resource, reason string) error {
	return &Error{
		Sentinel: ErrConflict,
		Message:  reason,
		Resource: resource,
	}
}

// NotFound creates a not found error for a resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
	}
}

// Operation creates a transport/operation error wrapping an underlying cause.
func Operation(op string, cause error) error {
	return &Error{
		Sentinel: ErrOperation,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// IsConfig reports whether err is a configuration-time error, i.e. one
// detected before any remote interaction is attempted.
func IsConfig(err error) bool {
	return errors.Is(err, ErrConfig) || errors.Is(err, ErrConflict)
}
