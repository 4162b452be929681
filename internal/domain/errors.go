// Package domain provides the moderation data model and canonical error types.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for pipeline and service failures.
var (
	// ErrPrecondition marks a pipeline stage invoked without its required
	// state. It is a programming error and aborts the run.
	ErrPrecondition = errors.New("pipeline precondition violated")

	// ErrIncompleteResult is returned when a run finishes without a decision
	// or reasoning.
	ErrIncompleteResult = errors.New("invalid moderation result: missing decision or reasoning")

	// ErrProcessing wraps any failure of the moderation pipeline as seen by
	// the service boundary.
	ErrProcessing = errors.New("moderation processing failed")

	// ErrUnsupportedImage is returned for image references that are neither
	// http(s) URLs nor base64 data URIs.
	ErrUnsupportedImage = errors.New("unsupported image reference")

	// ErrProviderUnavailable is returned when a provider is not configured.
	ErrProviderUnavailable = errors.New("provider not configured")
)

// ErrorType represents the category of an error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeAuthentication indicates the provider rejected our credentials.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypeRateLimit indicates rate limiting was triggered.
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeContentPolicy indicates the provider refused the prompt on
	// safety grounds.
	ErrorTypeContentPolicy ErrorType = "content_policy"

	// ErrorTypeInvalidResponse indicates the provider answered with a body
	// that could not be interpreted.
	ErrorTypeInvalidResponse ErrorType = "invalid_response"

	// ErrorTypeUnavailable indicates the provider could not be reached.
	ErrorTypeUnavailable ErrorType = "unavailable"

	// ErrorTypeServer indicates an internal or upstream server error.
	ErrorTypeServer ErrorType = "server"
)

// APIError is a canonical error that HTTP handlers translate into a
// response and providers use to describe upstream failures.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Param is the parameter that caused the error (if applicable)
	Param string `json:"param,omitempty"`

	// Provider is the upstream provider the error came from, if any
	Provider Provider `json:"provider,omitempty"`

	// StatusCode is the upstream or suggested HTTP status code
	StatusCode int `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.cause
}

// HTTPStatusCode returns the HTTP status code a handler should answer with.
func (e *APIError) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest, ErrorTypeContentPolicy:
		return http.StatusBadRequest
	case ErrorTypeAuthentication, ErrorTypeUnavailable, ErrorTypeInvalidResponse:
		return http.StatusBadGateway
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	default:
		if e.StatusCode >= 400 && e.StatusCode < 600 {
			return e.StatusCode
		}
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithParam adds a parameter name to the error.
func (e *APIError) WithParam(param string) *APIError {
	e.Param = param
	return e
}

// WithStatusCode sets the HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// WithProvider records the upstream provider.
func (e *APIError) WithProvider(p Provider) *APIError {
	e.Provider = p
	return e
}

// WithCause attaches the underlying error.
func (e *APIError) WithCause(err error) *APIError {
	e.cause = err
	return e
}

// ErrorTypeForStatus maps an upstream HTTP status to an ErrorType.
func ErrorTypeForStatus(status int) ErrorType {
	switch {
	case status == http.StatusBadRequest || status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		return ErrorTypeInvalidRequest
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorTypeAuthentication
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		return ErrorTypeUnavailable
	default:
		return ErrorTypeServer
	}
}

// Convenience constructors for common errors

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrInvalidResponse creates an invalid provider response error.
func ErrInvalidResponse(p Provider, message string) *APIError {
	return NewAPIError(ErrorTypeInvalidResponse, message).WithProvider(p)
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string) *APIError {
	return NewAPIError(ErrorTypeRateLimit, message)
}

// ErrContentPolicy creates a content policy error.
func ErrContentPolicy(message string) *APIError {
	return NewAPIError(ErrorTypeContentPolicy, message)
}
