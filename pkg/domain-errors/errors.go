// Package dErrors defines the domain error taxonomy. Services translate
// store sentinels and upstream failures into coded errors; the transport
// layer maps each code to exactly one HTTP status so no internal detail
// leaks past the code plus a human-readable reason.
package dErrors

import (
	"errors"
	"fmt"
)

// Code identifies a domain error kind. Every failure a caller can observe
// carries one of these.
type Code string

const (
	// Scope, token, or territory absent.
	CodeNotFound Code = "not_found"
	// Exclusivity violated: a live token already exists for the scope.
	CodeAlreadyIssued Code = "already_issued"
	// Token past its expiration.
	CodeExpired Code = "expired"
	// Token malformed or never activated (no expiration set).
	CodeInvalidToken Code = "invalid_token"
	// Claim scope does not cover the requested resource.
	CodeForbidden Code = "forbidden"
	// No open round for the territory.
	CodeRoundNotOpen Code = "round_not_open"
	// No round metadata for the claims' round.
	CodeRoundInfoMissing Code = "round_info_missing"

	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_failed"
	CodeUnauthorized       Code = "unauthorized"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"
)

// Error is a coded domain error. It may wrap an underlying cause, which is
// never shown to callers.
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

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and reason.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and reason to an underlying error, preserving the
// cause for errors.Is/As chains and logs.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return New(code, message)
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is reports whether err is a domain error at all.
func Is(err error) bool {
	var de *Error
	return errors.As(err, &de)
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// non-domain errors so infrastructure failures never leak detail.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the user-visible reason from err.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
