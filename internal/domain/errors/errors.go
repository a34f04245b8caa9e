package errors

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrServiceNotFound = errors.New("payment service not found")
	ErrUnknownAPIType  = errors.New("unknown payment service API type")
	ErrNoBaseURL       = errors.New("no base URL set")

	// Record lookup errors
	ErrProductNotFound      = errors.New("product not found")
	ErrPlanNotFound         = errors.New("subscription plan not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrSubscriberNotFound   = errors.New("subscriber not found")

	// Precondition errors
	ErrPlanInactive       = errors.New("subscription plan is inactive")
	ErrMissingReference   = errors.New("reference number missing")
	ErrMissingCredentials = errors.New("client credentials missing")
	ErrInvalidSubscriber  = errors.New("invalid subscriber type")

	// Provider errors
	ErrUnsupported         = errors.New("operation not supported by payment service")
	ErrProviderUnavailable = errors.New("payment service unavailable")
	ErrNoAccessToken       = errors.New("no access token received")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")
	ErrLockNotHeld           = errors.New("lock not held")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError is a local precondition failure on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// ConfigurationError means the adapter cannot be built or cannot talk to
// its service at all. It is never retried.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(reason string, err error) *ConfigurationError {
	return &ConfigurationError{Reason: reason, Err: err}
}

// TransportError is a network-level failure: no HTTP status was received.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "Unknown network error"
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProviderError is a non-2xx response from the payment service.
type ProviderError struct {
	StatusCode int
	Body       string
}

// Error renders "<status> <body>", the form recorded as action log reason.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, e.Body)
}

// DecodeError is a malformed body on an otherwise successful response.
type DecodeError struct {
	StatusCode int
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response (status %d): %v", e.StatusCode, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0 if there is none.
func StatusCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return de.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the payment service.
func IsNotFound(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.StatusCode == 404
}
