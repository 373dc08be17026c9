// Package errors provides custom error types for the netsync system.
// These errors enable programmatic error checking and carry enough context
// (target, dataset, record id) to make batch failures diagnosable.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Join is an alias for the standard library errors.Join.
var Join = errors.Join

// Common sentinel errors for the netsync system
var (
	// ErrNotFound indicates that a requested record was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a record already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotLoaded indicates that a target snapshot has not been loaded
	ErrNotLoaded = errors.New("data not loaded")

	// ErrTargetUnavailable indicates that a backing system is unreachable
	ErrTargetUnavailable = errors.New("target unavailable")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// LoadError represents a fatal failure while loading a target's snapshot.
// A load failure aborts the entire sync run; no partial diff or commit is
// attempted against a half-loaded snapshot.
type LoadError struct {
	Target  string
	Dataset string
	Err     error
}

// Error implements the error interface
func (e *LoadError) Error() string {
	if e.Dataset != "" {
		return fmt.Sprintf("loading %s from %s: %v", e.Dataset, e.Target, e.Err)
	}
	return fmt.Sprintf("loading data from %s: %v", e.Target, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError creates a new LoadError
func NewLoadError(target, dataset string, err error) *LoadError {
	return &LoadError{Target: target, Dataset: dataset, Err: err}
}

// RecordError represents a per-record failure during a create, update or
// delete batch. Batches log these and continue; one bad record must not
// abort its siblings.
type RecordError struct {
	Operation string // "create", "update", "delete"
	Dataset   string
	CommonID  string
	Err       error
}

// Error implements the error interface
func (e *RecordError) Error() string {
	return fmt.Sprintf("failed to %s %s record %s: %v", e.Operation, e.Dataset, e.CommonID, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *RecordError) Unwrap() error {
	return e.Err
}

// NewRecordError creates a new RecordError
func NewRecordError(operation, dataset, commonID string, err error) *RecordError {
	return &RecordError{
		Operation: operation,
		Dataset:   dataset,
		CommonID:  commonID,
		Err:       err,
	}
}

// APIError represents an error from a backing system's API
type APIError struct {
	Target     string
	StatusCode int
	Endpoint   string
	Message    string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Target, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Target, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	if e.StatusCode == 404 {
		return target == ErrNotFound
	}
	if e.StatusCode >= 500 {
		return target == ErrTargetUnavailable
	}
	return false
}

// NewAPIError creates a new APIError
func NewAPIError(target string, statusCode int, message string) *APIError {
	return &APIError{
		Target:     target,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "delete", "open"
	Path      string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("IO error during %s: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	return &IOError{Operation: operation, Path: path, Err: err}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsNotLoaded checks if an error is a not loaded error
func IsNotLoaded(err error) bool {
	return errors.Is(err, ErrNotLoaded)
}

// IsTargetUnavailable checks if an error indicates an unreachable system
func IsTargetUnavailable(err error) bool {
	return errors.Is(err, ErrTargetUnavailable)
}

// Helper wrapping functions for common patterns

// WrapLoad wraps an error as a LoadError
func WrapLoad(target, dataset string, err error) error {
	if err == nil {
		return nil
	}
	return NewLoadError(target, dataset, err)
}

// WrapRecord wraps an error as a RecordError
func WrapRecord(operation, dataset, commonID string, err error) error {
	if err == nil {
		return nil
	}
	return NewRecordError(operation, dataset, commonID, err)
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapAPI wraps an error as an APIError
func WrapAPI(target string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{
		Target:     target,
		StatusCode: statusCode,
		Message:    err.Error(),
		Err:        err,
	}
}
