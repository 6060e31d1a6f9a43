package resilience

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the backend recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures within one window before
	// the circuit opens.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the circuit.
	// Default: 2
	SuccessThreshold int

	// ResetTimeout is how long an open circuit waits before admitting a probe.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// FailureWindow bounds the counting period for failures in the closed
	// state. Failures older than one window do not keep the circuit primed.
	// Default: 1 minute
	FailureWindow time.Duration

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)
}

// CircuitBreaker gates calls to a failing backend. One instance is shared
// by all concurrent calls against the same logical backend; every read and
// mutation is serialized behind a single mutex.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	windowStart time.Time
	openedAt    time.Time

	totalRequests  int64
	totalFailures  int64
	totalSuccesses int64
	lastFailure    time.Time
}

// NewCircuitBreaker creates a new circuit breaker in the closed state.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.FailureWindow <= 0 {
		config.FailureWindow = time.Minute
	}

	return &CircuitBreaker{
		config:      config,
		state:       StateClosed,
		windowStart: time.Now(),
	}
}

// IsOpen reports whether calls must be rejected right now.
//
// In the closed state it returns false. In the open state it returns true
// until ResetTimeout has elapsed, at which point the circuit moves to
// half-open and the call is admitted as a probe. In the half-open state it
// returns false; bounding the number of concurrent probes is the caller's
// responsibility. The check and the admission decision happen under one
// lock so two callers cannot both trigger the open-to-half-open transition.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.config.ResetTimeout {
			cb.setStateLocked(StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

// RecordSuccess records a successful call against the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++
	cb.totalSuccesses++

	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.setStateLocked(StateClosed)
		}
	case StateClosed:
		cb.rollWindowLocked()
	}
}

// RecordFailure records a failed call against the breaker.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++
	cb.totalFailures++
	cb.lastFailure = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.rollWindowLocked() {
			cb.failures = 1
		} else {
			cb.failures++
		}
		if cb.failures >= cb.config.FailureThreshold {
			cb.setStateLocked(StateOpen)
		}
	case StateHalfOpen:
		// Any failure during probing reopens immediately.
		cb.setStateLocked(StateOpen)
	}
}

// TimeUntilHalfOpen returns the remaining cooldown while the circuit is
// open. The second return value is false when the circuit is not open.
func (cb *CircuitBreaker) TimeUntilHalfOpen() (time.Duration, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return 0, false
	}

	remaining := cb.config.ResetTimeout - time.Since(cb.openedAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// State returns the current circuit state without side effects.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the circuit back to closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setStateLocked(StateClosed)
	cb.failures = 0
	cb.successes = 0
}

// rollWindowLocked starts a fresh failure window if the current one has
// expired. Returns true when the window rolled over.
func (cb *CircuitBreaker) rollWindowLocked() bool {
	if time.Since(cb.windowStart) < cb.config.FailureWindow {
		return false
	}
	cb.windowStart = time.Now()
	cb.failures = 0
	return true
}

func (cb *CircuitBreaker) setStateLocked(state State) {
	if cb.state == state {
		return
	}
	from := cb.state
	cb.state = state

	switch state {
	case StateOpen:
		cb.openedAt = time.Now()
		cb.successes = 0
	case StateHalfOpen:
		cb.successes = 0
	case StateClosed:
		cb.failures = 0
		cb.successes = 0
		cb.windowStart = time.Now()
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, state)
	}
}

// Stats returns the accumulated circuit breaker statistics.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		State:         cb.state,
		Successes:     cb.totalSuccesses,
		Failures:      cb.totalFailures,
		TotalRequests: cb.totalRequests,
		LastFailure:   cb.lastFailure,
	}
}

// CircuitBreakerStats contains circuit breaker statistics.
type CircuitBreakerStats struct {
	State         State
	Successes     int64
	Failures      int64
	TotalRequests int64
	LastFailure   time.Time
}
