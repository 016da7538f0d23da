package cleanup

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or malformed input. It is returned before
// any state change.
type ValidationError struct {
	Field   string // Offending field ("itemId", "runId", "batchSize", ...)
	Message string // Human-readable description
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConflictError is returned by start when the category already has an active
// run. RunID names that run so the caller can attach to it.
//
// It is also returned by tick when a concurrent tick already applied its
// counters for the same batch.
type ConflictError struct {
	RunID   string
	Message string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return e.Message
}

// NewConflictError creates a new ConflictError.
func NewConflictError(runID, message string) *ConflictError {
	return &ConflictError{RunID: runID, Message: message}
}

// ErrAlreadyActive is the message carried by a start conflict.
const ErrAlreadyActive = "Already has an active run"

// NotFoundError reports an unknown run or category.
type NotFoundError struct {
	Kind string // "run" or "category"
	ID   string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// HandlerMissingError reports a category key with no bound handler. It is
// terminal: the run moves to error-terminal and retrying will not help.
type HandlerMissingError struct {
	Key Key
}

// Error implements the error interface.
func (e *HandlerMissingError) Error() string {
	return fmt.Sprintf("no handler for %s", e.Key)
}

// NewHandlerMissingError creates a new HandlerMissingError.
func NewHandlerMissingError(key Key) *HandlerMissingError {
	return &HandlerMissingError{Key: key}
}

// TransientStorageError wraps a failure inside a handler's select or delete.
// It is recoverable: the run records it and stays running.
type TransientStorageError struct {
	Op    string // "select", "delete", "scan", ...
	Cause error
}

// Error implements the error interface.
func (e *TransientStorageError) Error() string {
	return fmt.Sprintf("transient storage error [op=%s]: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *TransientStorageError) Unwrap() error {
	return e.Cause
}

// NewTransientStorageError creates a new TransientStorageError.
func NewTransientStorageError(op string, cause error) *TransientStorageError {
	return &TransientStorageError{Op: op, Cause: cause}
}

// StorageError represents a failure persisting engine state (categories and
// runs), as opposed to a handler failure against target data.
type StorageError struct {
	Backend   string // Storage backend type ("memory", "sqlite", "postgres")
	Operation string // Operation that failed ("create_run", "apply_tick", ...)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is or wraps a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
