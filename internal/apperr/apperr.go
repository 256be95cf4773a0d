// Package apperr defines the error taxonomy surfaced by the chat core.
//
// Cache and rate-limit store failures never appear here: those layers absorb
// their own errors (fail-open, fail-absent). Everything that does reach a
// caller carries a stable machine-readable kind and a safe human message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a caller-visible failure.
type Kind string

const (
	KindInput              Kind = "input"
	KindRateLimited        Kind = "rate_limited"
	KindBackendTimeout     Kind = "backend_timeout"
	KindBackendAuth        Kind = "backend_auth"
	KindBackendQuota       Kind = "backend_quota"
	KindBackendRateLimited Kind = "backend_rate_limited"
	KindBackend            Kind = "backend"
	KindPersistence        Kind = "persistence"
)

// Error is a classified failure with a message safe to forward to clients.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a classified error without an underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a classified error around an underlying cause. The cause is
// never forwarded to clients, only logged.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the kind from an error chain. Unclassified errors report
// KindBackend so nothing internal leaks by default.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBackend
}

// MessageOf extracts the client-safe message from an error chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "An unexpected error occurred with the AI service."
}

// HTTPStatus maps a kind to the transport status used by the HTTP layer.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInput:
		return http.StatusBadRequest
	case KindRateLimited, KindBackendRateLimited:
		return http.StatusTooManyRequests
	case KindBackendTimeout:
		return http.StatusGatewayTimeout
	case KindBackendAuth:
		return http.StatusUnauthorized
	case KindBackendQuota:
		return http.StatusServiceUnavailable
	case KindPersistence:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
