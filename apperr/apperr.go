package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInternal     = "internal"
	CodeNotFound     = "not_found"
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeTooLarge     = "payload_too_large"
	CodeExpired      = "expired"
	CodeInvalidState = "invalid_state"
	CodeDisabled     = "disabled"
)

// Error represents a structured application error.
type Error struct {
	Code    string
	Status  int
	Message string
	Cause   error
}

// New creates a new Error.
func New(code string, status int, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Status:  status,
		Message: message,
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

// Unwrap returns the root cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// As extracts an *Error if present.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// HasCode reports whether err carries an *Error with the given code.
func HasCode(err error, code string) bool {
	appErr := As(err)
	return appErr != nil && appErr.Code == code
}

// IsAuth reports whether err is a client authentication failure.
func IsAuth(err error) bool {
	return HasCode(err, CodeUnauthorized) || HasCode(err, CodeExpired)
}

// Internal reports an unexpected server-side failure.
func Internal(message string, cause error) *Error {
	return New(CodeInternal, http.StatusInternalServerError, message, cause)
}

// BadRequest reports malformed client input.
func BadRequest(message string, cause error) *Error {
	return New(CodeBadRequest, http.StatusBadRequest, message, cause)
}

// PayloadTooLarge reports an oversized request body.
func PayloadTooLarge(message string, cause error) *Error {
	return New(CodeTooLarge, http.StatusRequestEntityTooLarge, message, cause)
}

// NotFound reports a missing resource.
func NotFound(message string, cause error) *Error {
	return New(CodeNotFound, http.StatusNotFound, message, cause)
}

// Forbidden reports a denied request.
func Forbidden(message string, cause error) *Error {
	return New(CodeForbidden, http.StatusForbidden, message, cause)
}

// Unauthorized reports a missing, malformed or mismatched credential.
// The message is a dotted error id such as "principal.missing".
func Unauthorized(message string, cause error) *Error {
	return New(CodeUnauthorized, http.StatusUnauthorized, message, cause)
}

// Expired reports a session used at or after its expiry.
func Expired(cause error) *Error {
	return New(CodeExpired, http.StatusUnauthorized, "session.expired", cause)
}

// InvalidState reports missing per-request scaffolding, a wiring bug.
func InvalidState(detail string) *Error {
	return New(CodeInvalidState, http.StatusInternalServerError, detail, nil)
}

// Disabled reports a dependent service that is not configured.
func Disabled(message string) *Error {
	return New(CodeDisabled, http.StatusServiceUnavailable, message, nil)
}
