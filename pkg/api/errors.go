package api

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeInvalidRequest  ErrorType = "invalid_request_error"
	ErrorTypeAuthentication  ErrorType = "authentication_error"
	ErrorTypeUpstream        ErrorType = "upstream_error"
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeTooManyRequests ErrorType = "rate_limit_error"
)

// Error codes distinguishing the failure kinds within a type.
const (
	CodeModelNotFound       = "model_not_found"
	CodeInvalidInput        = "invalid_input"
	CodeProtocolMismatch    = "protocol_mismatch"
	CodeUpstreamUnavailable = "upstream_unavailable"
)

// APIError represents a structured API error with type, code, param, and message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`

	// Detail carries diagnostic context (e.g. an upstream response body).
	// It is logged, never serialized to clients.
	Detail string `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewUnknownModelError reports a requested model that matches neither a
// canonical id nor an alias.
func NewUnknownModelError(model string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Code:    CodeModelNotFound,
		Param:   "model",
		Message: fmt.Sprintf("model %q is not available", model),
	}
}

// NewInvalidInputError reports a malformed or empty request.
func NewInvalidInputError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Code:    CodeInvalidInput,
		Param:   param,
		Message: message,
	}
}

// NewProtocolMismatchError reports an upstream response whose shape the relay
// cannot interpret.
func NewProtocolMismatchError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeUpstream,
		Code:    CodeProtocolMismatch,
		Message: message,
	}
}

// NewUpstreamUnavailableError reports a failed upstream call. detail is kept
// for logs only.
func NewUpstreamUnavailableError(message, detail string) *APIError {
	return &APIError{
		Type:    ErrorTypeUpstream,
		Code:    CodeUpstreamUnavailable,
		Message: message,
		Detail:  detail,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewAuthenticationError creates an APIError for rejected credentials.
func NewAuthenticationError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeAuthentication,
		Message: message,
	}
}

// NewTooManyRequestsError creates an APIError for rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTooManyRequests,
		Message: message,
	}
}

// AsAPIError returns err as an *APIError, wrapping anything else as a server error.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewServerError(err.Error())
}

// IsUnknownModel reports whether err is an UnknownModel error.
func IsUnknownModel(err error) bool { return hasCode(err, CodeModelNotFound) }

// IsInvalidInput reports whether err is an InvalidInput error.
func IsInvalidInput(err error) bool { return hasCode(err, CodeInvalidInput) }

// IsProtocolMismatch reports whether err is a ProtocolMismatch error.
func IsProtocolMismatch(err error) bool { return hasCode(err, CodeProtocolMismatch) }

// IsUpstreamUnavailable reports whether err is an UpstreamUnavailable error.
func IsUpstreamUnavailable(err error) bool { return hasCode(err, CodeUpstreamUnavailable) }

func hasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
