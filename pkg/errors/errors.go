package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBoundariesUnavailable means the raw boundary payload could not be
	// fetched (network or storage failure). Retryable by the caller; the
	// index never retries internally.
	ErrBoundariesUnavailable = errors.New("boundary payload unavailable")
	// ErrPayloadInvalid means the payload was fetched but is empty or
	// structurally wrong. Not retryable without a new payload.
	ErrPayloadInvalid = errors.New("boundary payload invalid")
	// ErrIndexNotLoaded means a caller asked for index state before a
	// successful load.
	ErrIndexNotLoaded = errors.New("boundary index not loaded")
	// ErrScopeUnsupported means a legacy numeric parent-id scope was
	// supplied without a parent name.
	ErrScopeUnsupported = errors.New("scope filter unsupported")
	// ErrInvalidInput covers malformed caller-supplied parameters such as
	// an out-of-range administrative level.
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps core errors to the status codes the dashboard API
// layer reports to clients.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrBoundariesUnavailable), errors.Is(err, ErrIndexNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrPayloadInvalid):
		return http.StatusBadGateway
	case errors.Is(err, ErrScopeUnsupported), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
