package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimitExceeded is returned when the concurrency ceiling is hit.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")
)
