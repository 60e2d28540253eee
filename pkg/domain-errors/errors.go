// Package dErrors provides coded domain errors shared across services.
//
// Handlers translate codes to HTTP statuses in one place (pkg/platform/httputil);
// services attach codes at the point where the failure is understood and wrap
// upstream causes so the chain stays inspectable with errors.Is/errors.As.
package dErrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure. The string value is the wire-level
// error identifier returned to API clients.
type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeBadRequest         Code = "bad_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/errors.As traversal.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another coded error by code and message, so errors.Is works
// against a freshly constructed target. A target with an empty message
// matches on code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" {
		return e.Code == t.Code
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an upstream cause. A nil cause returns
// nil so call sites can wrap unconditionally.
func Wrap(cause error, code Code, message string) error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: cause}
}

// CodeOf returns the code of the outermost coded error in the chain, or
// CodeInternal when the error carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if de, ok := e.(*Error); ok && de.Code == code {
			return true
		}
	}
	return false
}

// Is is shorthand for HasCode, reading naturally at assertion sites.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// Message returns the outermost coded message, or the raw error text for
// uncoded errors.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
