// Package domain defines core types, interfaces, and errors for the lake pipeline.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ConfigurationNotFoundError is returned when the requested environment has no
// entry in the lake configuration. Available lists the environments that do.
type ConfigurationNotFoundError struct {
	Environment string
	Available   []string
}

func (e *ConfigurationNotFoundError) Error() string {
	return fmt.Sprintf("environment %q not found in config. Available: [%s]",
		e.Environment, strings.Join(e.Available, ", "))
}

// ConfigurationUnreadableError is returned when the configuration source is
// missing, malformed, or lacks required keys.
type ConfigurationUnreadableError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigurationUnreadableError) Error() string {
	msg := fmt.Sprintf("configuration %q unreadable", e.Path)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationUnreadableError) Unwrap() error { return e.Err }

// EmptyTableError is returned by post-ingestion validation when a destination
// table has no rows.
type EmptyTableError struct {
	Table string
}

func (e *EmptyTableError) Error() string { return fmt.Sprintf("%s is empty", e.Table) }

// JobTimeoutError is returned when an ingestion job exceeds its time bound.
type JobTimeoutError struct {
	Job     string
	Timeout time.Duration
}

func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("job %q exceeded timeout of %s", e.Job, e.Timeout)
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}
