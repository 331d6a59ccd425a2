// Package errors provides structured error types for the dbdev website.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the query layer, HTTP handlers and CLI
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The taxonomy mirrors the failure classes of the registry front-end:
//   - VALIDATION_ERROR: a required query parameter or form field is missing or invalid
//   - NOT_FOUND: the requested profile, package or row does not exist
//   - NETWORK_ERROR: the storage, auth or object-storage transport failed
//   - NOT_IMPLEMENTED: the selected backend does not support the operation
//   - UNKNOWN: anything that could not be classified
//
// # Usage
//
//	err := errors.NewValidation("handle", "handle is required")
//	if errors.Is(err, errors.ErrCodeValidation) {
//	    // Bad request, no remote call was made
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "select %s", view)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	ErrCodeValidation     Code = "VALIDATION_ERROR"
	ErrCodeNotFound       Code = "NOT_FOUND"
	ErrCodeNetwork        Code = "NETWORK_ERROR"
	ErrCodeNotImplemented Code = "NOT_IMPLEMENTED"
	ErrCodeUnknown        Code = "UNKNOWN"

	ErrCodeUnauthorized Code = "UNAUTHORIZED"
	ErrCodeForbidden    Code = "FORBIDDEN"
	ErrCodeRateLimited  Code = "RATE_LIMITED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Field   string // Offending parameter for validation errors (optional)
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

// NewValidation creates a VALIDATION_ERROR naming the offending field.
func NewValidation(field, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// NotFound creates a NOT_FOUND error.
func NotFound(format string, args ...any) *Error {
	return New(ErrCodeNotFound, format, args...)
}

// NotImplemented creates a NOT_IMPLEMENTED error.
func NotImplemented(format string, args ...any) *Error {
	return New(ErrCodeNotImplemented, format, args...)
}

// Unknown wraps an unclassified error.
func Unknown(cause error) *Error {
	return Wrap(ErrCodeUnknown, cause, "unexpected error")
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

// FieldOf returns the field named by a validation error, or "".
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
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

// RateLimitedError provides additional information for rate-limited responses.
type RateLimitedError struct {
	RetryAfter int // Seconds to wait before retrying
	Message    string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfter)
	}
	return "rate limited"
}

// Code returns the error code for this error type.
func (e *RateLimitedError) Code() Code {
	return ErrCodeRateLimited
}
