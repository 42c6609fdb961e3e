package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Generation error codes
const (
	ErrConfiguration        ErrorCode = "CONFIGURATION_ERROR"
	ErrTransientStream      ErrorCode = "TRANSIENT_STREAM_ERROR"
	ErrGenerationFailed     ErrorCode = "GENERATION_FAILED"
	ErrAccumulatorInvariant ErrorCode = "ACCUMULATOR_INVARIANT_VIOLATION"
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"
	ErrInternalError        ErrorCode = "INTERNAL_ERROR"
)

// Orchestration error codes
const (
	ErrTaskNotFound ErrorCode = "TASK_NOT_FOUND"
	ErrToolNotFound ErrorCode = "TOOL_NOT_FOUND"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// NewConfigurationError reports missing credentials or configuration. Never retried.
func NewConfigurationError(provider, message string) *Error {
	return NewError(ErrConfiguration, message).WithProvider(provider)
}

// NewTransientStreamError reports a network or protocol failure worth retrying.
func NewTransientStreamError(provider, message string) *Error {
	return NewError(ErrTransientStream, message).WithProvider(provider).WithRetryable(true)
}

// NewGenerationFailedError wraps the last attempt's failure once retries are exhausted.
func NewGenerationFailedError(provider string, attempts int, cause error) *Error {
	return NewError(ErrGenerationFailed, fmt.Sprintf("generation failed after %d attempts", attempts)).
		WithProvider(provider).
		WithCause(cause)
}

// NewInvariantViolation reports a tool-call fragment that cannot be placed.
func NewInvariantViolation(message string) *Error {
	return NewError(ErrAccumulatorInvariant, message)
}

// NewTaskNotFoundError reports an unresolvable task name.
func NewTaskNotFoundError(name string) *Error {
	return NewError(ErrTaskNotFound, fmt.Sprintf("task %q not found", name))
}

// NewToolNotFoundError reports an unregistered tool id.
func NewToolNotFoundError(name string) *Error {
	return NewError(ErrToolNotFound, fmt.Sprintf("tool %q not found", name))
}

// AsError extracts a *Error from the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
