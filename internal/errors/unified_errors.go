// Package errors provides the unified error type shared by the store, the
// remote mirror client, the sync reconciler and the command gateway.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ============================================================================
// ERROR TYPES AND CLASSIFICATION
// ============================================================================

// ErrorType defines the category of error for proper handling and response.
type ErrorType string

const (
	// Caller errors
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeAuth       ErrorType = "AUTH"

	// Sync errors
	ErrorTypeDataLossRisk ErrorType = "DATA_LOSS_RISK"

	// Infrastructure errors
	ErrorTypeNotInitialized ErrorType = "NOT_INITIALIZED"
	ErrorTypeNetwork        ErrorType = "NETWORK"
	ErrorTypeTimeout        ErrorType = "TIMEOUT"
	ErrorTypeUnreachable    ErrorType = "UNREACHABLE"
	ErrorTypeInternal       ErrorType = "INTERNAL"
)

// ErrorSeverity defines the severity level for logging.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "LOW"
	SeverityMedium   ErrorSeverity = "MEDIUM"
	SeverityHigh     ErrorSeverity = "HIGH"
	SeverityCritical ErrorSeverity = "CRITICAL"
)

// ============================================================================
// UNIFIED ERROR STRUCTURE
// ============================================================================

// UnifiedError is the single error type returned across layers.
type UnifiedError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`

	Operation string `json:"operation,omitempty"`
	Resource  string `json:"resource,omitempty"`

	Severity  ErrorSeverity `json:"severity"`
	Retryable bool          `json:"retryable"`
	Cause     error         `json:"-"`

	// Metadata carries structured context such as item counts for a rejected sync.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	File string `json:"-"`
	Line int    `json:"-"`
}

// Error implements the error interface.
func (e *UnifiedError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with the underlying cause.
func (e *UnifiedError) Unwrap() error {
	return e.Cause
}

// String provides a detailed string representation for logging.
func (e *UnifiedError) String() string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Error: %s\n", e.Error()))
	if e.Operation != "" {
		builder.WriteString(fmt.Sprintf("Operation: %s\n", e.Operation))
	}
	if e.Resource != "" {
		builder.WriteString(fmt.Sprintf("Resource: %s\n", e.Resource))
	}
	builder.WriteString(fmt.Sprintf("Severity: %s\n", e.Severity))
	builder.WriteString(fmt.Sprintf("Retryable: %t\n", e.Retryable))
	if e.Cause != nil {
		builder.WriteString(fmt.Sprintf("Cause: %v\n", e.Cause))
	}
	if e.File != "" && e.Line > 0 {
		builder.WriteString(fmt.Sprintf("Location: %s:%d\n", e.File, e.Line))
	}
	return builder.String()
}

// HTTPStatus maps the error type to the status code used by the HTTP layer.
func (e *UnifiedError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict, ErrorTypeDataLossRisk:
		return http.StatusConflict
	case ErrorTypeAuth:
		return http.StatusUnauthorized
	case ErrorTypeNetwork, ErrorTypeUnreachable:
		return http.StatusBadGateway
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================================
// ERROR BUILDER FOR FLUENT CONSTRUCTION
// ============================================================================

// ErrorBuilder provides a fluent interface for constructing UnifiedError instances.
type ErrorBuilder struct {
	error *UnifiedError
}

// NewError creates a new error builder with the specified type and message.
func NewError(errType ErrorType, code, message string) *ErrorBuilder {
	_, file, line, _ := runtime.Caller(1)

	return &ErrorBuilder{
		error: &UnifiedError{
			Type:     errType,
			Code:     code,
			Message:  message,
			Severity: SeverityMedium,
			File:     file,
			Line:     line,
		},
	}
}

// WithDetails adds additional details to the error.
func (b *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	b.error.Details = details
	return b
}

// WithOperation specifies the operation that failed.
func (b *ErrorBuilder) WithOperation(operation string) *ErrorBuilder {
	b.error.Operation = operation
	return b
}

// WithResource specifies the resource being operated on.
func (b *ErrorBuilder) WithResource(resource string) *ErrorBuilder {
	b.error.Resource = resource
	return b
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.error.Severity = severity
	return b
}

// WithRetryable marks the error as retryable.
func (b *ErrorBuilder) WithRetryable(retryable bool) *ErrorBuilder {
	b.error.Retryable = retryable
	return b
}

// WithCause adds the underlying cause error.
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.error.Cause = cause
	return b
}

// WithMetadata adds a metadata entry.
func (b *ErrorBuilder) WithMetadata(key string, value interface{}) *ErrorBuilder {
	if b.error.Metadata == nil {
		b.error.Metadata = make(map[string]interface{})
	}
	b.error.Metadata[key] = value
	return b
}

// Build returns the constructed UnifiedError.
func (b *ErrorBuilder) Build() *UnifiedError {
	return b.error
}

// ============================================================================
// CONVENIENCE CONSTRUCTORS
// ============================================================================

// Validation creates a validation error.
func Validation(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeValidation, code, message).
		WithSeverity(SeverityLow)
}

// NotFound creates a not found error.
func NotFound(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeNotFound, code, message).
		WithSeverity(SeverityLow)
}

// Conflict creates a conflict error.
func Conflict(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeConflict, code, message).
		WithRetryable(true)
}

// Auth creates a credential error.
func Auth(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeAuth, code, message)
}

// Network creates a network error.
func Network(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeNetwork, code, message).
		WithSeverity(SeverityHigh).
		WithRetryable(true)
}

// Timeout creates a timeout error.
func Timeout(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeTimeout, code, message).
		WithRetryable(true)
}

// Unreachable creates an error reporting that a peer process did not answer.
func Unreachable(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeUnreachable, code, message).
		WithSeverity(SeverityLow).
		WithRetryable(true)
}

// NotInitialized creates an error for use of a component before it was loaded.
func NotInitialized(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeNotInitialized, code, message).
		WithSeverity(SeverityCritical)
}

// DataLossRisk creates the error returned when a sync would shrink a dataset.
func DataLossRisk(incoming, existing int, message string) *ErrorBuilder {
	return NewError(ErrorTypeDataLossRisk, CodeSyncDataLossRisk, message).
		WithSeverity(SeverityHigh).
		WithMetadata("incomingItems", incoming).
		WithMetadata("existingItems", existing)
}

// Internal creates an internal error.
func Internal(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeInternal, code, message).
		WithSeverity(SeverityHigh)
}

// ============================================================================
// CLASSIFICATION HELPERS
// ============================================================================

// As extracts a UnifiedError from an error chain.
func As(err error) (*UnifiedError, bool) {
	var ue *UnifiedError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// TypeOf returns the error type, INTERNAL for foreign errors.
func TypeOf(err error) ErrorType {
	if ue, ok := As(err); ok {
		return ue.Type
	}
	return ErrorTypeInternal
}

func isType(err error, t ErrorType) bool {
	ue, ok := As(err)
	return ok && ue.Type == t
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool { return isType(err, ErrorTypeValidation) }

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsAuth checks if an error is a credential error.
func IsAuth(err error) bool { return isType(err, ErrorTypeAuth) }

// IsNetwork reports network failures, timeouts included.
func IsNetwork(err error) bool {
	return isType(err, ErrorTypeNetwork) || isType(err, ErrorTypeTimeout)
}

// IsUnreachable checks if an error is an unreachable-peer error.
func IsUnreachable(err error) bool { return isType(err, ErrorTypeUnreachable) }

// IsNotInitialized checks if an error is a not-initialized error.
func IsNotInitialized(err error) bool { return isType(err, ErrorTypeNotInitialized) }

// IsDataLossRisk checks if an error is a data-loss-risk rejection.
func IsDataLossRisk(err error) bool { return isType(err, ErrorTypeDataLossRisk) }

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if ue, ok := As(err); ok {
		return ue.Retryable
	}
	return false
}

// Wrap wraps an error with additional context. UnifiedErrors keep their type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if ue, ok := As(err); ok {
		return &UnifiedError{
			Type:      ue.Type,
			Code:      ue.Code,
			Message:   message,
			Details:   ue.Message,
			Operation: ue.Operation,
			Resource:  ue.Resource,
			Severity:  ue.Severity,
			Retryable: ue.Retryable,
			Metadata:  ue.Metadata,
			Cause:     err,
		}
	}
	return Internal(CodeInternal, message).WithCause(err).WithDetails(err.Error()).Build()
}
