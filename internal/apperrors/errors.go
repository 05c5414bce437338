// Package apperrors defines the sentinel error kinds shared across the
// retrieval core and the HTTP surface, and the status-code translation
// used at the boundary.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuth indicates a missing or invalid credential.
	ErrAuth = errors.New("authentication required")

	// ErrPermission indicates a role or ownership check failed.
	ErrPermission = errors.New("permission denied")

	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("invalid input")

	// ErrUpstream indicates an external provider call failed after
	// retries/fallback were exhausted.
	ErrUpstream = errors.New("upstream service failed")

	// ErrInternal is the catch-all for unclassified failures.
	ErrInternal = errors.New("internal error")

	// ErrContextWindowExceeded is raised by the LLM adapter when a prompt
	// cannot fit the provider's declared context window.
	ErrContextWindowExceeded = errors.New("context window exceeded")
)

// Wrap attaches context to an error without losing errors.Is/As matching.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func IsAuth(err error) bool       { return errors.Is(err, ErrAuth) }
func IsPermission(err error) bool { return errors.Is(err, ErrPermission) }
func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsUpstream(err error) bool   { return errors.Is(err, ErrUpstream) }

// StatusCode maps an error kind to the HTTP status the handler layer
// should return. Unrecognized errors fall through to 500.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUpstream):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
