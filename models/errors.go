package models

import (
	"errors"
	"fmt"
)

// Error codes used in tool results, API responses and internal error handling.
const (
	ErrCodeCapacityExceeded = "CAPACITY_EXCEEDED"
	ErrCodeSessionNotFound  = "SESSION_NOT_FOUND"
	ErrCodeSessionNotReady  = "SESSION_NOT_READY"
	ErrCodeEngineInit       = "ENGINE_INIT_FAILED"
	ErrCodeTimeout          = "OPERATION_TIMEOUT"
	ErrCodeEngineFatal      = "ENGINE_FATAL"
	ErrCodeCleanup          = "CLEANUP_FAILED"
	ErrCodeNotInitialized   = "NOT_INITIALIZED"
	ErrCodeOperationFailed  = "OPERATION_FAILED"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the envelope for every non-2xx API response.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// PoolError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
// Every error leaving the pool boundary is a *PoolError with exactly one code,
// so callers branch on Code instead of matching message strings.
type PoolError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *PoolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PoolError) Unwrap() error {
	return e.Err
}

// NewPoolError creates a new PoolError.
func NewPoolError(code, message string, err error) *PoolError {
	return &PoolError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *PoolError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// CodeOf returns the error code carried by err, or ErrCodeInternal when err
// is not a *PoolError. CodeOf(nil) returns "".
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var pe *PoolError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
