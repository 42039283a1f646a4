package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error taxonomy. Every AppError wraps exactly one of these.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUpstreamRejected    = errors.New("upstream rejected request")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrNotFound            = errors.New("resource not found")
	ErrStorage             = errors.New("storage error")
)

const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeUpstreamRejected    = "UPSTREAM_REJECTED"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeNotFound            = "NOT_FOUND"
	CodeStorage             = "STORAGE_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func InvalidInput(message string) error {
	return NewAppError(CodeInvalidInput, message, ErrInvalidInput)
}

func InvalidInputf(format string, args ...any) error {
	return InvalidInput(fmt.Sprintf(format, args...))
}

func UpstreamRejected(message string) error {
	return NewAppError(CodeUpstreamRejected, message, ErrUpstreamRejected)
}

// UpstreamUnavailable keeps the transport error reachable through errors.Is/As.
func UpstreamUnavailable(message string, cause error) error {
	return NewAppError(CodeUpstreamUnavailable, message, joinCause(ErrUpstreamUnavailable, cause))
}

func NotFound(message string) error {
	return NewAppError(CodeNotFound, message, ErrNotFound)
}

func StorageError(message string, cause error) error {
	return NewAppError(CodeStorage, message, joinCause(ErrStorage, cause))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func joinCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return errors.Join(sentinel, cause)
}

// HTTPStatus maps the error taxonomy onto HTTP status codes.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUpstreamRejected):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing part of err: the AppError message when there is one.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

// ErrorCode returns the AppError code carried by err, or "" when there is none.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// SentinelForCode maps an AppError code back to its taxonomy sentinel.
func SentinelForCode(code string) (error, bool) {
	switch code {
	case CodeInvalidInput:
		return ErrInvalidInput, true
	case CodeUpstreamRejected:
		return ErrUpstreamRejected, true
	case CodeUpstreamUnavailable:
		return ErrUpstreamUnavailable, true
	case CodeNotFound:
		return ErrNotFound, true
	case CodeStorage:
		return ErrStorage, true
	}
	return nil, false
}

// IsInvalidInput reports whether err belongs to the InvalidInput class.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
