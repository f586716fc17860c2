package api

import (
	"errors"
	"fmt"
)

// Failure sentinels. Components wrap these so callers classify errors with
// errors.Is regardless of which backend failed.
var (
	// ErrUpstreamUnavailable: network failure, timeout or non-2xx status
	// from a provider or the automation engine.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamProtocol: the upstream answered with a body of the wrong
	// shape.
	ErrUpstreamProtocol = errors.New("upstream protocol error")

	// ErrUpstreamAuth: the upstream rejected our credentials, or none are
	// configured.
	ErrUpstreamAuth = errors.New("upstream authentication failed")

	// ErrUnsupportedProvider: the provider name is outside the known set.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrValidationFailed: a workflow failed structural validation.
	ErrValidationFailed = errors.New("workflow validation failed")

	// ErrRateLimitExceeded: the caller's budget for the window is spent.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrNotFound: the referenced workflow, execution or session is unknown.
	ErrNotFound = errors.New("not found")
)

// ErrorType is the machine-readable class of an APIError.
type ErrorType string

const (
	ErrorTypeServerError         ErrorType = "server_error"
	ErrorTypeInvalidRequest      ErrorType = "invalid_request"
	ErrorTypeUnauthorized        ErrorType = "unauthorized"
	ErrorTypeNotFound            ErrorType = "not_found"
	ErrorTypeTooManyRequests     ErrorType = "too_many_requests"
	ErrorTypeUnsupportedProvider ErrorType = "unsupported_provider"
	ErrorTypeValidationFailed    ErrorType = "validation_failed"
	ErrorTypeUpstreamUnavailable ErrorType = "upstream_unavailable"
	ErrorTypeUpstreamProtocol    ErrorType = "upstream_protocol_error"
	ErrorTypeUpstreamAuth        ErrorType = "upstream_auth_error"
)

// classes maps sentinels to error types. The first match wins, so an
// error wrapping several sentinels takes the earliest class listed.
var classes = []struct {
	sentinel error
	typ      ErrorType
	param    string
}{
	{ErrRateLimitExceeded, ErrorTypeTooManyRequests, ""},
	{ErrUnsupportedProvider, ErrorTypeUnsupportedProvider, "provider"},
	{ErrValidationFailed, ErrorTypeValidationFailed, ""},
	{ErrNotFound, ErrorTypeNotFound, ""},
	{ErrUpstreamAuth, ErrorTypeUpstreamAuth, ""},
	{ErrUpstreamProtocol, ErrorTypeUpstreamProtocol, ""},
	{ErrUpstreamUnavailable, ErrorTypeUpstreamUnavailable, ""},
}

// APIError is the body of every error response.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`

	// Details carries structured context, such as a validation verdict.
	Details any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
}

// ErrorResponse is the error envelope: {"error": {...}}.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError reports a bad request parameter.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidRequest, Param: param, Message: message}
}

// NewNotFoundError reports an unknown resource.
func NewNotFoundError(message string) *APIError {
	return &APIError{Type: ErrorTypeNotFound, Message: message}
}

// NewServerError reports an internal failure.
func NewServerError(message string) *APIError {
	return &APIError{Type: ErrorTypeServerError, Message: message}
}

// FromError converts err into an APIError. An APIError anywhere in the
// chain is returned as is. Sentinels map through the class table and
// anything else is a server error. FromError(nil) is nil.
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, c := range classes {
		if errors.Is(err, c.sentinel) {
			return &APIError{Type: c.typ, Param: c.param, Message: err.Error()}
		}
	}
	return NewServerError(err.Error())
}
