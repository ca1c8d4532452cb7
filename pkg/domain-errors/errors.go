// Package domainerrors defines the coded error type that ledger services return.
//
// Services translate store sentinels and invariant failures into an *Error carrying a
// Code. Transport layers map codes to status codes; callers branch with HasCode.
package domainerrors

import (
	"errors"
)

// Code classifies a domain error.
type Code string

const (
	// CodeForbidden: the caller lacks the role an operation requires.
	CodeForbidden Code = "forbidden"
	// CodeConflict: a uniqueness constraint would be violated (external id, fingerprint).
	CodeConflict Code = "conflict"
	// CodeNotFound: the operation references an id or record that does not exist.
	CodeNotFound Code = "not_found"
	// CodeInvalidState: the record's current state does not allow the operation.
	CodeInvalidState Code = "invalid_state"
	// CodeInvalidInput: an identifier failed parsing at a trust boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeValidation: a request field failed validation.
	CodeValidation Code = "validation_error"
	// CodeBadRequest: the request could not be decoded.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized: no caller identity accompanied the request.
	CodeUnauthorized Code = "unauthorized"
	// CodeInvariantViolation: a model constructor rejected its input.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeTimeout: the operation was abandoned before it was admitted.
	CodeTimeout Code = "timeout"
	CodeInternal Code = "internal_error"
)

// Error is a domain error with a stable code and a human readable message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether the outermost domain error in err's chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost domain error, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the message of the outermost domain error without the wrapped cause.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
