package common

import (
	"errors"
	"fmt"
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

// Pipeline error taxonomy
var (
	ErrHardwareUnavailable = errors.New("camera hardware unavailable")
	ErrPermissionDenied    = errors.New("camera permission denied")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNetworkUnavailable  = errors.New("network unavailable")
	ErrPersistence         = errors.New("persistence error")
	ErrNotFound            = errors.New("resource not found")
	ErrSessionActive       = errors.New("capture session already active")
)

// ProviderError is a non-2xx response from a cloud provider. 4xx-class
// errors are never retried; 5xx-class errors follow retry-then-defer.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: status %d", e.Provider, e.StatusCode)
}

// Retryable reports whether the failure may succeed on a later attempt.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode >= 500
}

// ParseError is a malformed or schema-violating provider response.
// Never retried; the provider's contribution is simply absent.
type ParseError struct {
	Provider string
	Cause    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %s: malformed response: %v", e.Provider, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsRetryable reports whether a provider call error warrants another
// attempt: server-side provider errors and network failures only.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return false
	}
	if errors.Is(err, ErrInvalidInput) {
		return false
	}
	return true
}
