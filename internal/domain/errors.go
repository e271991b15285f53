package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling in the
// handler layer without switch statements over concrete types.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// BusyError indicates an operation was rejected because another one
	// is already in flight for the same session or chapter. The engines
	// enforce single-flight themselves; callers receive this instead of
	// silently queueing.
	BusyError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *BusyError) Error() string         { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *BusyError) StatusCode() int         { return http.StatusConflict }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBusy is returned when a chat turn or suggestion generation is
	// already in flight and a new trigger arrives. Cancellation and exit
	// are always accepted; everything else is rejected with this.
	ErrBusy = errors.New("operation already in flight")

	// ErrStopped marks a turn ended by an explicit stop decision or
	// cooperative cancellation. It is not surfaced as an error message
	// in chat history.
	ErrStopped = errors.New("stopped")
)

// Is methods let errors.Is match the typed errors against their
// sentinels, so callers branch without naming concrete types.

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

func (e *BusyError) Is(target error) bool {
	return target == ErrBusy
}

// ConflictError represents a resource conflict with details about the
// existing resource.
type ConflictError struct {
	Message      string
	ResourceType string // "session", "story", "book", "chapter", "sourcebook_entry"
	ResourceID   string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
