// Package errors provides the unified error type and factory functions for the
// KeyIP-Analytics workbench. Every layer (domain, application, infrastructure,
// interfaces) carries failures as *AppError so that the MCP envelope, the HTTP
// adapter and the logs agree on a single error kind.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// ─────────────────────────────────────────────────────────────────────────────
// AppError
// ─────────────────────────────────────────────────────────────────────────────

// AppError is the structured error type used throughout KeyIP-Analytics.
// It supports errors.Is / errors.As traversal through Cause.
//
// Usage:
//
//	return errors.New(errors.ErrCodeNotAllowed, "only read statements are permitted")
//	return errors.Wrap(err, errors.ErrCodeBadQuery, "query failed").WithDetail(backend)
type AppError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description.
	Message string

	// Detail carries supplementary context such as the backend name or the
	// offending field list.
	Detail string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
// Format: "[<code>] <message>: <detail>"
func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Kind returns the wire kind name of the error ("NotAllowed", "Timeout", ...).
func (e *AppError) Kind() string {
	return KindForCode(e.Code)
}

// WithDetail returns a copy of the receiver with Detail set.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a copy of the receiver with Cause set.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// ─────────────────────────────────────────────────────────────────────────────
// Factories
// ─────────────────────────────────────────────────────────────────────────────

// New constructs an AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap constructs an AppError wrapping err. Wrap returns nil when err is nil.
// When code is CodeUnknown and err already carries an AppError, the original
// code is kept.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf is Wrap with fmt.Sprintf formatting.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// InvalidArguments constructs an ErrCodeInvalidArguments error.
func InvalidArguments(message string) *AppError {
	return New(ErrCodeInvalidArguments, message)
}

// NotAllowed constructs an ErrCodeNotAllowed error.
func NotAllowed(message string) *AppError {
	return New(ErrCodeNotAllowed, message)
}

// BadQuery constructs an ErrCodeBadQuery error.
func BadQuery(message string) *AppError {
	return New(ErrCodeBadQuery, message)
}

// Unavailable constructs an ErrCodeUnavailable error.
func Unavailable(message string) *AppError {
	return New(ErrCodeUnavailable, message)
}

// Internal constructs an ErrCodeInternal error.
func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

// FromContext converts a context error into Cancelled or Timeout. It returns
// nil when err is not a context error.
func FromContext(err error) *AppError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCancelled, "operation cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "operation deadline exceeded")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Inspection
// ─────────────────────────────────────────────────────────────────────────────

// IsCode reports whether any error in err's chain is an *AppError with code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the code of the first *AppError in err's chain.
// Context errors that were never wrapped map to Cancelled/Timeout.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	if ce := FromContext(err); ce != nil {
		return ce.Code
	}
	return CodeUnknown
}

// KindOf returns the wire kind name for err.
func KindOf(err error) string {
	return KindForCode(GetCode(err))
}

// Is and As re-export the standard library helpers so callers importing this
// package under the name "errors" keep access to them.
func Is(err, target error) bool { return errors.Is(err, target) }

// As is errors.As.
func As(err error, target interface{}) bool { return errors.As(err, target) }
