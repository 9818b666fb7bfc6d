// Package domainerrors defines coded domain errors shared by all services.
//
// Stores return sentinel errors (pkg/platform/sentinel); services translate
// them into coded errors here so transports can map codes to status codes
// and clients get a machine-readable reason for rejected writes.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeAmbiguousReference Code = "AMBIGUOUS_REFERENCE"
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"
	CodeCutoverBlocked     Code = "CUTOVER_BLOCKED"
	CodeInternal           Code = "INTERNAL"
)

// Error is a coded domain error. Reason optionally carries a machine-readable
// detail (e.g. NOT_A_GROUP_BUYER) that is stable across message rewording.
type Error struct {
	Code    Code
	Reason  string
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

// New creates a coded domain error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// NewWithReason creates a coded domain error carrying a machine-readable reason.
func NewWithReason(code Code, reason, message string) error {
	return &Error{Code: code, Reason: reason, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Reason returns the machine-readable reason of err, or "" if none.
func Reason(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}
