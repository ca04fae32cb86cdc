// Package util provides shared error types and helpers for the
// authorization core.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrNotFound.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., GrantValidationError). Each type
//     implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
//
// All custom error types must implement:
//
//	Error() string           – human-readable message
//	Unwrap() error           – if the type wraps another error
//	Is(target error) bool    – for errors.Is() compatibility
package util

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common sentinel errors. These map one-to-one onto the authorization
// error taxonomy: NotFound is also used for failed self-ownership
// checks so that existence of a resource is never disclosed.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrInvalidInput     = errors.New("invalid input")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// GrantValidationError reports invalid domain and role references
// submitted to a grant write. Both lists are fully populated before
// the error is returned; nothing is persisted when it is non-empty.
type GrantValidationError struct {
	// Domains is the list of domain ids that did not resolve within
	// the target organization.
	Domains []string `json:"domains"`

	// Roles is the list of role ids that did not resolve within the
	// target organization or globally for the tenant.
	Roles []string `json:"roles"`
}

// Error implements the error interface.
func (e *GrantValidationError) Error() string {
	var parts []string
	if len(e.Domains) > 0 {
		parts = append(parts, fmt.Sprintf("invalid domains: %s", strings.Join(e.Domains, ", ")))
	}
	if len(e.Roles) > 0 {
		parts = append(parts, fmt.Sprintf("invalid roles: %s", strings.Join(e.Roles, ", ")))
	}
	if len(parts) == 0 {
		return "grant validation error"
	}
	return "grant validation error: " + strings.Join(parts, "; ")
}

// Is checks if the error matches the target.
func (e *GrantValidationError) Is(target error) bool {
	if target == ErrInvalidInput {
		return true
	}
	_, ok := target.(*GrantValidationError)
	return ok
}

// HasFailures returns true if any domain or role id failed validation.
func (e *GrantValidationError) HasFailures() bool {
	return len(e.Domains) > 0 || len(e.Roles) > 0
}

// NewGrantValidationError creates a new GrantValidationError.
func NewGrantValidationError(domains, roles []string) *GrantValidationError {
	return &GrantValidationError{Domains: domains, Roles: roles}
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus maps a taxonomy error to an HTTP status code. Unknown
// errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
