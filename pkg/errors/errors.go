// Package errors provides structured error types for the traverse planner.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures (config, endpoints)
//   - LAYER_MISMATCH / MISSING_LAYER: Cost map construction failures
//   - NOT_FOUND / DUPLICATE_PATH: Record store failures
//   - CANCELLED: Cooperative cancellation of a planning query
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidEndpoint, "start cell (%d,%d) is impassable", r, c)
//	if errors.Is(err, errors.ErrCodeInvalidEndpoint) {
//	    // Handle endpoint error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeMissingLayer, origErr, "load layer %q", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Configuration and construction errors. Fatal to cost map
	// construction; they abort the whole pipeline.
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeLayerMismatch Code = "LAYER_MISMATCH"
	ErrCodeMissingLayer  Code = "MISSING_LAYER"

	// Per-query errors. Scoped to a single planning request.
	ErrCodeInvalidEndpoint Code = "INVALID_ENDPOINT"
	ErrCodeUnreachableGoal Code = "UNREACHABLE_GOAL"
	ErrCodeCancelled       Code = "CANCELLED"

	// Record store errors. Local to a single store operation.
	ErrCodeNotFound      Code = "NOT_FOUND"
	ErrCodeDuplicatePath Code = "DUPLICATE_PATH"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
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
