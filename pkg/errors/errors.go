// Package errors provides structured error types for the Impress service.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and HTTP API
//   - Machine-readable error codes for programmatic handling
//   - A stable mapping from error codes to HTTP status codes
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures (HTTP 400)
//   - NOT_FOUND*: Resource not found (HTTP 404)
//   - POOL_*: Render pool saturation (HTTP 503)
//   - RENDER_*: Snapshot rendering failures (HTTP 500)
//   - UPSTREAM_*: Proxied upstream failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidSize, "size %d is not one of 150, 300, 600", size)
//	if errors.Is(err, errors.ErrCodeInvalidSize) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeRenderFailed, origErr, "rasterize %s", url)
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidSize  Code = "INVALID_SIZE"
	ErrCodeUntrustedURL Code = "UNTRUSTED_URL"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Render pool errors
	ErrCodePoolSaturated Code = "POOL_SATURATED"
	ErrCodePoolClosed    Code = "POOL_CLOSED"

	// Rendering errors
	ErrCodeRenderTimeout Code = "RENDER_TIMEOUT"
	ErrCodeRenderFailed  Code = "RENDER_FAILED"

	// Upstream/proxy errors
	ErrCodeUpstream Code = "UPSTREAM_FAILURE"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error to the HTTP status code the API surfaces for it.
//
// The mapping follows the service's failure taxonomy: invalid input is a
// client error, pool saturation signals overload (retryable), and render
// failures are server errors. Unknown errors default to 500.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidSize, ErrCodeUntrustedURL:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodePoolSaturated:
		return http.StatusServiceUnavailable
	case ErrCodeRenderTimeout, ErrCodeRenderFailed, ErrCodePoolClosed, ErrCodeInternal:
		return http.StatusInternalServerError
	case ErrCodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
