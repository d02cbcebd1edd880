// Package domainerrors provides coded errors for the import pipeline.
// Services wrap store and validation failures with a code; transport maps
// codes to HTTP statuses. Callers test codes with HasCode rather than
// matching message strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error per the pipeline's error taxonomy.
type Code string

const (
	// CodeInvalidInput covers malformed or missing request data.
	CodeInvalidInput Code = "invalid_input"

	// CodeNotFound covers missing packages, conflicts, and referenced
	// entities.
	CodeNotFound Code = "not_found"

	// CodeStateConflict covers operations attempted against a record that is
	// not in the required state, e.g. resolving a conflict that is no longer
	// pending review.
	CodeStateConflict Code = "state_conflict"

	// CodeUnauthorized covers requests without an authenticated actor.
	CodeUnauthorized Code = "unauthorized"

	// CodeInternal covers everything the caller cannot fix.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. Message is safe to surface to operators;
// the wrapped cause is for logs.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. A nil cause
// returns nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// untyped errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the operator-safe message from err.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeStateConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
