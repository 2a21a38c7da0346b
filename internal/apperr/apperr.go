// Package apperr defines the error taxonomy shared by every service.
// Each error carries a stable code that the HTTP layer maps to a status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, client-facing error identifier.
type Code string

const (
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeInvalidState Code = "INVALID_STATE"
	CodeFull         Code = "ROOM_FULL"
	CodeRateLimited  Code = "RATE_LIMITED"
	CodeInternal     Code = "INTERNAL"
)

// Error is the error type returned by services. Err holds the underlying cause,
// which is logged but never rendered to the client.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the code to a response status.
func (e *Error) HTTPStatus() int {
	return StatusOf(e.Code)
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func InvalidInput(message string) *Error { return New(CodeInvalidInput, message) }
func Unauthorized(message string) *Error { return New(CodeUnauthorized, message) }
func Forbidden(message string) *Error    { return New(CodeForbidden, message) }
func NotFound(message string) *Error     { return New(CodeNotFound, message) }
func Conflict(message string) *Error     { return New(CodeConflict, message) }
func InvalidState(message string) *Error { return New(CodeInvalidState, message) }
func Full(message string) *Error         { return New(CodeFull, message) }
func RateLimited(message string) *Error  { return New(CodeRateLimited, message) }

// Internal wraps a persistence or transport failure. op names the failed
// operation and becomes the client-facing message.
func Internal(op string, err error) *Error {
	return &Error{Code: CodeInternal, Message: op + " failed", Err: err}
}

// CodeOf extracts the code of err, treating anything that is not an *Error as internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// StatusOf returns the HTTP status for a code.
func StatusOf(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidState, CodeFull:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
