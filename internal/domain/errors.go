package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AppError represents a domain-specific error with structured information and context
type AppError struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Details    any       `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
	Operation  string    `json:"operation,omitempty"`
	Cause      error     `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error wrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

type requestIDKey struct{}

// WithRequestID stores the request ID for WithContext to pick up
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// WithContext adds context information to the error
func (e *AppError) WithContext(ctx context.Context, operation string) *AppError {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		e.RequestID = id
	}
	e.Operation = operation
	return e
}

// Error codes for different error categories
const (
	ErrInvalidInput     = "INVALID_INPUT"      // 400 Bad Request
	ErrValidationFailed = "VALIDATION_FAILED"  // 422 Unprocessable Entity
	ErrNotFound         = "NOT_FOUND"          // 404 Not Found
	ErrPersistence      = "PERSISTENCE_FAILED" // 500 durable write failed
	ErrInternal         = "INTERNAL_ERROR"     // 500 Internal Server Error
	ErrTimeout          = "TIMEOUT"            // 408 Request Timeout
	ErrTooLarge         = "PAYLOAD_TOO_LARGE"  // 413 Payload Too Large
	ErrRateLimit        = "RATE_LIMIT"         // 429 Too Many Requests
)

// NewAppError creates a new AppError with the specified parameters
func NewAppError(code, message string, statusCode int, details any) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
		Timestamp:  time.Now(),
	}
}

// NewAppErrorWithCause creates a new AppError with underlying cause
func NewAppErrorWithCause(code, message string, statusCode int, cause error, details any) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
		Timestamp:  time.Now(),
		Cause:      cause,
	}
}

// NewDuplicateMatcherError is returned by non-forced create/update when the matcher is taken
func NewDuplicateMatcherError(matcher, existingID string) *AppError {
	return NewAppError(
		ErrValidationFailed,
		fmt.Sprintf("matcher already exists: %q (existing rule ID: %s)", matcher, existingID),
		422,
		map[string]any{"field": "matcher", "matcher": matcher, "existing_rule_id": existingID},
	)
}

// NewPersistenceError wraps a failed durable write
func NewPersistenceError(path string, cause error) *AppError {
	return NewAppErrorWithCause(
		ErrPersistence,
		"Failed to persist data",
		500,
		cause,
		map[string]any{"path": path},
	)
}

// AsAppError unwraps err to an *AppError if there is one in the chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsTimeout checks if the error is a timeout error
func IsTimeout(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == ErrTimeout
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == ErrNotFound
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == ErrValidationFailed
}

// IsPersistenceError checks if a durable write failed
func IsPersistenceError(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == ErrPersistence
}
