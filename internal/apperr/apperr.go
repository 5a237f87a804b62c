package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of request failure. The string form is
// returned to clients in the "code" field of every error body.
type Code string

const (
	Unauthenticated    Code = "unauthenticated"
	PermissionDenied   Code = "permission-denied"
	InvalidArgument    Code = "invalid-argument"
	NotFound           Code = "not-found"
	AlreadyExists      Code = "already-exists"
	ResourceExhausted  Code = "resource-exhausted"
	FailedPrecondition Code = "failed-precondition"
	Internal           Code = "internal"
)

// Error is a coded error carrying a client-visible message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New returns a coded error with the given message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf returns a coded error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap resurfaces an unexpected failure as an internal error while
// keeping the underlying message visible to the caller.
func Wrap(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Code: Internal, Message: err.Error(), cause: err}
}

// CodeOf extracts the code from an error, defaulting to internal.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return Internal
}

// Status maps an error code to its HTTP status. already-exists and
// resource-exhausted share 409; clients branch on the code field.
func Status(err error) int {
	switch CodeOf(err) {
	case Unauthenticated:
		return http.StatusUnauthorized
	case PermissionDenied:
		return http.StatusForbidden
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case AlreadyExists, ResourceExhausted:
		return http.StatusConflict
	case FailedPrecondition:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}
