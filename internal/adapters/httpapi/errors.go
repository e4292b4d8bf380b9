package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"tradesim/internal/ports"
)

// AppError is an error with an HTTP status and a stable code.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// BadRequestErrorf creates a 400 error with formatting.
func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return NewAppError("ERR_BAD_REQUEST", fmt.Sprintf(format, a...), http.StatusBadRequest)
}

// toAppError maps port sentinels to HTTP errors.
func toAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, ports.ErrInvalidConfiguration), errors.Is(err, ports.ErrInvalidRequest):
		return NewAppError("ERR_INVALID_CONFIGURATION", err.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, ports.ErrRunNotFound), errors.Is(err, ports.ErrNotFound):
		return NewAppError("ERR_NOT_FOUND", err.Error(), http.StatusNotFound).WithError(err)
	case errors.Is(err, ports.ErrRunActive):
		return NewAppError("ERR_RUN_ACTIVE", err.Error(), http.StatusConflict).WithError(err)
	case errors.Is(err, ports.ErrTimeout):
		return NewAppError("ERR_TIMEOUT", err.Error(), http.StatusGatewayTimeout).WithError(err)
	case ports.IsFeedError(err), errors.Is(err, ports.ErrAuthenticationFailed):
		return NewAppError("ERR_FEED", err.Error(), http.StatusBadGateway).WithError(err)
	default:
		return NewAppError("ERR_INTERNAL", "Something went wrong", http.StatusInternalServerError).WithError(err)
	}
}
