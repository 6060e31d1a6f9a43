package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies an error for retry and circuit-breaker decisions.
type Kind int

const (
	// KindUnknown is the conservative default: not retryable.
	KindUnknown Kind = iota
	// KindTransient covers timeouts, connection failures, 5xx responses,
	// and rate-limit responses. Retryable; counts against circuit health.
	KindTransient
	// KindClient covers validation failures, bad credentials, and
	// malformed requests. Never retryable; never counts against circuit health.
	KindClient
	// KindServiceUnavailable is synthetic, produced only by an open circuit
	// breaker. It never reaches the transport.
	KindServiceUnavailable
	// KindStream is surfaced mid-stream and never silently retried;
	// re-issuing the stream is the caller's decision.
	KindStream
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindClient:
		return "client"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Error is the typed error carried across the client core. It keeps the
// classification visible through arbitrary wrapping so retry and breaker
// logic can act on the original failure.
type Error struct {
	// Kind is the error classification.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Status is the HTTP status code, if the error came from a response.
	Status int

	// RetryAfter is a backend-supplied hint, zero when absent.
	RetryAfter time.Duration

	// Detail holds optional structured data from the backend error body.
	Detail map[string]any

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Transient creates a retryable error.
func Transient(msg string, cause error) *Error {
	return &Error{Kind: KindTransient, Message: msg, Err: cause}
}

// Client creates a non-retryable client error.
func Client(msg string, cause error) *Error {
	return &Error{Kind: KindClient, Message: msg, Err: cause}
}

// Unavailable creates the synthetic open-breaker error carrying the
// remaining cooldown as a retry hint.
func Unavailable(msg string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindServiceUnavailable, Message: msg, RetryAfter: retryAfter}
}

// RateLimited creates a transient rate-limit error with a retry hint.
func RateLimited(msg string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindTransient, Message: msg, Status: http.StatusTooManyRequests, RetryAfter: retryAfter}
}

// Stream creates a mid-stream error.
func Stream(msg string, cause error) *Error {
	return &Error{Kind: KindStream, Message: msg, Err: cause}
}

// KindOf extracts the classification from err, walking the wrap chain.
// Errors that carry no classification are KindUnknown.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err should be retried. Only transient
// errors are; everything else (client, stream, unknown, synthetic) fails fast.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// RetryAfterHint returns the backend-supplied retry-after value carried by
// err, or zero when none is present.
func RetryAfterHint(err error) time.Duration {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.RetryAfter
	}
	return 0
}

// KindForStatus maps an HTTP status code to an error kind. 429 and all
// 5xx are transient; the rest of 4xx is a client error.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindTransient
	case status >= 500:
		return KindTransient
	case status >= 400:
		return KindClient
	default:
		return KindUnknown
	}
}
