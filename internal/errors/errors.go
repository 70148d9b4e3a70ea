// Package errors provides enhanced error types with helpful context and suggestions
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Pipeline errors
	ErrCodeBackendUnavailable       ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeExecutionFailed          ErrorCode = "EXECUTION_FAILED"
	ErrCodeCompletionService        ErrorCode = "COMPLETION_SERVICE_ERROR"
	ErrCodeUnrecognizedRoutingToken ErrorCode = "UNRECOGNIZED_ROUTING_TOKEN"

	// Storage errors
	ErrCodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseQuery      ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeHistoryRead        ErrorCode = "HISTORY_READ_FAILED"
	ErrCodeHistoryWrite       ErrorCode = "HISTORY_WRITE_FAILED"

	// Authentication errors
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeTokenCreation      ErrorCode = "TOKEN_CREATION_FAILED"
	ErrCodeNotAuthenticated   ErrorCode = "NOT_AUTHENTICATED"
	ErrCodeInsufficientPerms  ErrorCode = "INSUFFICIENT_PERMISSIONS"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"

	// Input validation errors
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED_FIELD"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists   ErrorCode = "ALREADY_EXISTS"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// EnhancedError represents an error with additional context and helpful information
type EnhancedError struct {
	Code          ErrorCode              `json:"code"`
	Message       string                 `json:"message"`
	Details       string                 `json:"details,omitempty"`
	Suggestion    string                 `json:"suggestion,omitempty"`
	Documentation string                 `json:"documentation,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Cause         error                  `json:"-"`
}

// Error implements the error interface
func (e *EnhancedError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))
	if e.Details != "" {
		sb.WriteString(fmt.Sprintf(": %s", e.Details))
	}
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(" (cause: %v)", e.Cause))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error chain unwrapping
func (e *EnhancedError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly error message with suggestions
func (e *EnhancedError) UserMessage() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Details != "" {
		sb.WriteString(fmt.Sprintf("\n\nDetails: %s", e.Details))
	}
	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion))
	}
	if e.Documentation != "" {
		sb.WriteString(fmt.Sprintf("\n\nLearn more: %s", e.Documentation))
	}

	return sb.String()
}

// New creates a new EnhancedError
func New(code ErrorCode, message string) *EnhancedError {
	return &EnhancedError{
		Code:     code,
		Message:  message,
		Metadata: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with enhanced context
func Wrap(err error, code ErrorCode, message string) *EnhancedError {
	return &EnhancedError{
		Code:     code,
		Message:  message,
		Cause:    err,
		Metadata: make(map[string]interface{}),
	}
}

// WithDetails adds detailed information about the error
func (e *EnhancedError) WithDetails(details string) *EnhancedError {
	e.Details = details
	return e
}

// WithSuggestion adds a suggestion on how to fix the error
func (e *EnhancedError) WithSuggestion(suggestion string) *EnhancedError {
	e.Suggestion = suggestion
	return e
}

// WithMetadata adds additional metadata to the error
func (e *EnhancedError) WithMetadata(key string, value interface{}) *EnhancedError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// CodeOf returns the code of the first EnhancedError in err's chain, or ""
func CodeOf(err error) ErrorCode {
	var enhanced *EnhancedError
	if stderrors.As(err, &enhanced) {
		return enhanced.Code
	}
	return ""
}

// Is reports whether err carries the given code anywhere in its chain
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// NewBackendUnavailableError reports a backend whose connection was never established
func NewBackendUnavailableError(backend string) *EnhancedError {
	return New(ErrCodeBackendUnavailable, fmt.Sprintf("The %s store is not available", backend)).
		WithDetails("No connection to this store could be established when the session opened, so the query was not attempted").
		WithSuggestion("Check the store's address and credentials, then open a new session.").
		WithMetadata("backend", backend)
}

// NewExecutionFailedError reports a query that ran but errored or timed out
func NewExecutionFailedError(err error, backend string) *EnhancedError {
	return Wrap(err, ErrCodeExecutionFailed, fmt.Sprintf("The %s query failed", backend)).
		WithDetails("The generated query was submitted but the store returned an error or did not answer in time").
		WithSuggestion("Try rephrasing the question using the exact names of rooms, sensors, or measurements.").
		WithMetadata("backend", backend).
		WithMetadata("retryable", true)
}

// NewCompletionServiceError reports a failed completion call for a pipeline stage
func NewCompletionServiceError(err error, stage string) *EnhancedError {
	return Wrap(err, ErrCodeCompletionService, "The language model service request failed").
		WithDetails(fmt.Sprintf("Completion failed during %s", stage)).
		WithSuggestion("This is typically a temporary issue. Please try your question again in a moment.").
		WithMetadata("stage", stage).
		WithMetadata("retryable", true)
}

// NewUnrecognizedRoutingTokenError reports a classifier response outside the route set
func NewUnrecognizedRoutingTokenError(token string) *EnhancedError {
	return New(ErrCodeUnrecognizedRoutingToken, "The language model returned an unrecognized route").
		WithDetails(fmt.Sprintf("Expected one of graph, timeseries or hybrid but got %q", token)).
		WithSuggestion("The question was sent to the graph store by default. Mention sensors or time ranges explicitly to reach the time-series store.").
		WithMetadata("token", token)
}

// NewInvalidCredentialsError creates an error for authentication failures
func NewInvalidCredentialsError() *EnhancedError {
	return New(ErrCodeInvalidCredentials, "Invalid username or password").
		WithDetails("Authentication failed with the provided credentials").
		WithSuggestion("Please check your username and password and try again.")
}

// NewTokenCreationError creates an error for token creation failures
func NewTokenCreationError(err error) *EnhancedError {
	return Wrap(err, ErrCodeTokenCreation, "Failed to create authentication token").
		WithDetails("The system was unable to generate an authentication token").
		WithSuggestion("This is an internal server error. Please try logging in again.").
		WithMetadata("retryable", true)
}

// NewNotAuthenticatedError creates an error for unauthenticated requests
func NewNotAuthenticatedError() *EnhancedError {
	return New(ErrCodeNotAuthenticated, "Authentication required").
		WithDetails("This endpoint requires authentication").
		WithSuggestion("Log in using /api/v1/auth/login, or include a valid API key in the 'X-API-Key' header.")
}

// NewInsufficientPermissionsError creates an error for missing roles
func NewInsufficientPermissionsError(role string) *EnhancedError {
	return New(ErrCodeInsufficientPerms, "Insufficient permissions").
		WithDetails(fmt.Sprintf("This endpoint requires the %q role", role))
}

// NewRateLimitedError creates an error for clients over their request budget
func NewRateLimitedError(limit int) *EnhancedError {
	return New(ErrCodeRateLimited, "Rate limit exceeded").
		WithDetails(fmt.Sprintf("At most %d requests per minute are allowed", limit)).
		WithSuggestion("Wait a minute before sending more questions.")
}

// NewInvalidInputError creates an error for invalid input
func NewInvalidInputError(field string, reason string) *EnhancedError {
	return New(ErrCodeInvalidInput, "Invalid input").
		WithDetails(fmt.Sprintf("Field '%s' is invalid: %s", field, reason)).
		WithSuggestion("Please check the API documentation for the expected format and try again.")
}

// NewNotFoundError creates an error for a missing resource
func NewNotFoundError(kind, id string) *EnhancedError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", kind)).
		WithDetails(fmt.Sprintf("No %s with identifier %q exists", strings.ToLower(kind), id)).
		WithMetadata("id", id)
}

// NewAlreadyExistsError creates an error for a duplicate resource
func NewAlreadyExistsError(kind, name string) *EnhancedError {
	return New(ErrCodeAlreadyExists, fmt.Sprintf("%s already exists", kind)).
		WithDetails(fmt.Sprintf("A %s named %q already exists", strings.ToLower(kind), name)).
		WithSuggestion("Choose a different name.")
}

// NewDatabaseConnectionError creates an error for database connection failures
func NewDatabaseConnectionError(err error) *EnhancedError {
	return Wrap(err, ErrCodeDatabaseConnection, "Database connection failed").
		WithDetails("Unable to connect to the audit database").
		WithMetadata("retryable", true)
}

// NewDatabaseQueryError creates an error for database query failures
func NewDatabaseQueryError(err error, operation string) *EnhancedError {
	return Wrap(err, ErrCodeDatabaseQuery, "Database query failed").
		WithDetails(fmt.Sprintf("Failed to execute database operation: %s", operation)).
		WithMetadata("retryable", true)
}

// NewHistoryReadError creates an error for history lookups that failed
func NewHistoryReadError(err error) *EnhancedError {
	return Wrap(err, ErrCodeHistoryRead, "Failed to read question history").
		WithMetadata("retryable", true)
}

// NewHistoryWriteError creates an error for history appends that failed
func NewHistoryWriteError(err error) *EnhancedError {
	return Wrap(err, ErrCodeHistoryWrite, "Failed to record question history")
}
