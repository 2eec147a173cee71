// Package errors defines the error values shared by handlers, services and
// upstream clients, and their mapping onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels matched with errors.Is.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrUnprocessable  = errors.New("unprocessable content")
	ErrBadGateway     = errors.New("upstream failure")
	ErrServiceUnavail = errors.New("service unavailable")
)

// statusOf is checked in order by HTTPStatus for errors that carry no
// *AppError.
var statusOf = []struct {
	sentinel error
	status   int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrAlreadyExists, http.StatusConflict},
	{ErrConflict, http.StatusConflict},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, http.StatusForbidden},
	{ErrUnprocessable, http.StatusUnprocessableEntity},
	{ErrBadGateway, http.StatusBadGateway},
	{ErrServiceUnavail, http.StatusServiceUnavailable},
}

// AppError is an error with a stable machine code and the HTTP status it is
// reported with. Message is safe to show to clients; Err is not.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

func newAppError(code string, status int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

// NotFound reports a missing resource by id.
func NotFound(resource, id string) *AppError {
	return newAppError("NOT_FOUND", http.StatusNotFound,
		fmt.Sprintf("%s with id %s not found", resource, id), ErrNotFound)
}

// AlreadyExists reports a uniqueness violation on field.
func AlreadyExists(resource, field, value string) *AppError {
	return newAppError("ALREADY_EXISTS", http.StatusConflict,
		fmt.Sprintf("%s with %s %q already exists", resource, field, value), ErrAlreadyExists)
}

func InvalidInput(message string) *AppError {
	return newAppError("INVALID_INPUT", http.StatusBadRequest, message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return newAppError("UNAUTHORIZED", http.StatusUnauthorized, message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return newAppError("FORBIDDEN", http.StatusForbidden, message, ErrForbidden)
}

// Conflict is a 409 for state conflicts other than duplicates.
func Conflict(message string) *AppError {
	return newAppError("CONFLICT", http.StatusConflict, message, ErrConflict)
}

// Unprocessable is a 422 for well-formed input whose content cannot be used,
// such as bytes that do not decode as an image.
func Unprocessable(message string) *AppError {
	return newAppError("UNPROCESSABLE", http.StatusUnprocessableEntity, message, ErrUnprocessable)
}

// BadGateway wraps a failure reported by an upstream dependency. The result
// matches both ErrBadGateway and cause.
func BadGateway(message string, cause error) *AppError {
	return newAppError("BAD_GATEWAY", http.StatusBadGateway, message, fmt.Errorf("%w: %w", ErrBadGateway, cause))
}

// Internal hides err behind a generic 500 message.
func Internal(err error) *AppError {
	return newAppError("INTERNAL_ERROR", http.StatusInternalServerError, "an internal error occurred", err)
}

// Wrap prefixes err with message.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the status of the first *AppError in err's chain, or
// of the first matching sentinel, or 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	for _, s := range statusOf {
		if errors.Is(err, s.sentinel) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
