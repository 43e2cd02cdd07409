// Package errors provides the structured error taxonomy shared by the
// protocol handlers, the dispatch registry and the connection delegate.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeInvalidArgument represents missing or malformed caller input
	ErrTypeInvalidArgument ErrorType = "invalid_argument"
	// ErrTypeUnsupported represents a request the receiver cannot serve
	ErrTypeUnsupported ErrorType = "unsupported_operation"
	// ErrTypeInvalidState represents a call made in the wrong lifecycle state
	ErrTypeInvalidState ErrorType = "invalid_state"
	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeCanceled represents work abandoned because the caller canceled it
	ErrTypeCanceled ErrorType = "canceled"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// InvalidArgumentError creates a new invalid argument error
func InvalidArgumentError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeInvalidArgument,
		Message: msg,
	}
}

// UnsupportedError creates a new unsupported operation error
func UnsupportedError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeUnsupported,
		Message: msg,
	}
}

// InvalidStateError creates a new invalid state error
func InvalidStateError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeInvalidState,
		Message: msg,
	}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// CanceledError creates a new canceled error
func CanceledError(operation string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeCanceled,
		Message: fmt.Sprintf("%s canceled", operation),
		Cause:   cause,
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
		Cause:   cause,
	}
}

// FromContext classifies a context cancellation or deadline found in err's
// chain. It returns nil when err carries neither.
func FromContext(operation string, err error) *AppError {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, context.Canceled):
		return CanceledError(operation, err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return TimeoutError(operation, err)
	default:
		return nil
	}
}

// IsType reports whether err, or any error it wraps, is an AppError of errType.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}

	return appErr.Type
}
