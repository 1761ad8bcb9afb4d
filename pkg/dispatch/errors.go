package dispatch

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrUnavailable is returned when no transport is configured for the
	// requested channel.
	ErrUnavailable = errors.New("dispatch: transport unavailable")

	// ErrCooldownActive is returned when an emergency call is suppressed
	// because another one was placed within the cooldown window.
	ErrCooldownActive = errors.New("dispatch: call cooldown active")

	// ErrNoRecipients is returned when an email send has nobody to go to.
	ErrNoRecipients = errors.New("dispatch: no recipients configured")
)

// APIError represents an error response from a telephony or email API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the API.
	Message string

	// Code is the provider error code (if provided).
	Code string

	// Provider identifies which provider returned the error.
	Provider string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("dispatch [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("dispatch [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsUnauthorized returns true if this is an authentication error (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("dispatch [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
