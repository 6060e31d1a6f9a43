package resilience

import (
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerWindow is the local request budget per window.
	// Default: 60
	RequestsPerWindow int

	// TokensPerWindow is the consumed-unit budget per window for backends
	// billed by usage (for example language-model tokens). Zero means the
	// backend is purely request-metered and token accounting is disabled.
	TokensPerWindow int64

	// Window is the budget period.
	// Default: 1 minute
	Window time.Duration

	// MaxConcurrent is the hard in-flight ceiling. Exceeding it rejects
	// rather than delays.
	// Default: 16
	MaxConcurrent int64
}

// Decision is the outcome of a single Acquire call.
type Decision int

const (
	// DecisionAcquired means the caller proceeds immediately.
	DecisionAcquired Decision = iota
	// DecisionDelayed means the caller must sleep for Wait, after which the
	// call is granted. No second Acquire is required or permitted for the
	// same logical request.
	DecisionDelayed
	// DecisionRejected means the concurrency ceiling was hit; the caller
	// fails immediately and must not retry within this layer.
	DecisionRejected
)

// String returns the string representation of the decision.
func (d Decision) String() string {
	switch d {
	case DecisionAcquired:
		return "acquired"
	case DecisionDelayed:
		return "delayed"
	case DecisionRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// RateLimitDecision is the one-shot value returned by Acquire. Wait is
// meaningful only when Decision is DecisionDelayed.
type RateLimitDecision struct {
	Decision Decision
	Wait     time.Duration
}

// ServerQuota carries backend-reported quota from response headers.
// Negative fields mean the backend did not report that dimension.
type ServerQuota struct {
	RemainingRequests int
	RemainingTokens   int64
	// ResetAfter is the backend-reported time until the quota resets,
	// zero when not reported.
	ResetAfter time.Duration
}

// RateLimiter throttles request and token volume toward one logical
// backend and reconciles its local budget with backend-reported quota.
// One instance is shared by all concurrent calls and is safe for
// concurrent use.
type RateLimiter struct {
	config   RateLimiterConfig
	requests *rate.Limiter
	sem      *semaphore.Weighted

	mu               sync.Mutex
	tokenBudget      int64
	serverRemaining  int // -1 when the backend has not reported
	windowStart      time.Time
	serverResetAfter time.Duration
	inFlight         int64
}

// NewRateLimiter creates a new rate limiter with a full budget.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	// Apply defaults
	if config.RequestsPerWindow <= 0 {
		config.RequestsPerWindow = 60
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 16
	}

	return &RateLimiter{
		config:          config,
		requests:        rate.NewLimiter(rate.Every(config.Window/time.Duration(config.RequestsPerWindow)), config.RequestsPerWindow),
		sem:             semaphore.NewWeighted(config.MaxConcurrent),
		tokenBudget:     config.TokensPerWindow,
		serverRemaining: -1,
		windowStart:     time.Now(),
	}
}

// Acquire claims one request slot. On DecisionDelayed the pacing
// reservation is already consumed; the caller sleeps Wait and proceeds.
// Every Acquired or Delayed grant must be paired with a Release.
func (rl *RateLimiter) Acquire() RateLimitDecision {
	if !rl.sem.TryAcquire(1) {
		return RateLimitDecision{Decision: DecisionRejected}
	}

	res := rl.requests.Reserve()
	if !res.OK() {
		rl.sem.Release(1)
		return RateLimitDecision{Decision: DecisionRejected}
	}
	wait := res.Delay()

	rl.mu.Lock()
	rl.rollWindowLocked()

	if rl.config.TokensPerWindow > 0 && rl.tokenBudget <= 0 {
		if d := rl.untilResetLocked(); d > wait {
			wait = d
		}
	}

	switch {
	case rl.serverRemaining == 0:
		// Backend says the window is exhausted; hold until it resets.
		if d := rl.untilResetLocked(); d > wait {
			wait = d
		}
	case rl.serverRemaining > 0:
		rl.serverRemaining--
	}

	rl.inFlight++
	rl.mu.Unlock()

	if wait > 0 {
		return RateLimitDecision{Decision: DecisionDelayed, Wait: wait}
	}
	return RateLimitDecision{Decision: DecisionAcquired}
}

// Release returns the concurrency slot claimed by a granted Acquire.
func (rl *RateLimiter) Release() {
	rl.sem.Release(1)

	rl.mu.Lock()
	if rl.inFlight > 0 {
		rl.inFlight--
	}
	rl.mu.Unlock()
}

// UpdateFromHeaders reconciles the local budget against backend-reported
// quota, preferring the server's number when it is the tighter constraint.
func (rl *RateLimiter) UpdateFromHeaders(quota ServerQuota) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.rollWindowLocked()

	if quota.RemainingRequests >= 0 {
		if rl.serverRemaining < 0 || quota.RemainingRequests < rl.serverRemaining {
			rl.serverRemaining = quota.RemainingRequests
		}
	}
	if quota.RemainingTokens >= 0 && rl.config.TokensPerWindow > 0 {
		if quota.RemainingTokens < rl.tokenBudget {
			rl.tokenBudget = quota.RemainingTokens
		}
	}
	if quota.ResetAfter > 0 {
		rl.serverResetAfter = quota.ResetAfter
		rl.windowStart = time.Now()
	}
}

// RecordTokens decrements the token-metered budget by n consumed units.
// It is a no-op for purely request-metered backends.
func (rl *RateLimiter) RecordTokens(n int64) {
	if rl.config.TokensPerWindow <= 0 || n <= 0 {
		return
	}

	rl.mu.Lock()
	rl.rollWindowLocked()
	rl.tokenBudget -= n
	rl.mu.Unlock()
}

// Status reports the current budget. RemainingRequests is -1 until the
// backend reports a quota.
func (rl *RateLimiter) Status() RateLimitStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.rollWindowLocked()

	return RateLimitStatus{
		RemainingRequests: rl.serverRemaining,
		RemainingTokens:   rl.tokenBudget,
		TokensPerWindow:   rl.config.TokensPerWindow,
		InFlight:          rl.inFlight,
		MaxConcurrent:     rl.config.MaxConcurrent,
	}
}

// rollWindowLocked resets the window-scoped budgets once the current
// window has elapsed. Server-reported quota goes back to unknown.
func (rl *RateLimiter) rollWindowLocked() {
	window := rl.config.Window
	if rl.serverResetAfter > 0 {
		window = rl.serverResetAfter
	}
	if time.Since(rl.windowStart) < window {
		return
	}
	rl.windowStart = time.Now()
	rl.tokenBudget = rl.config.TokensPerWindow
	rl.serverRemaining = -1
	rl.serverResetAfter = 0
}

func (rl *RateLimiter) untilResetLocked() time.Duration {
	window := rl.config.Window
	if rl.serverResetAfter > 0 {
		window = rl.serverResetAfter
	}
	d := window - time.Since(rl.windowStart)
	if d < 0 {
		d = 0
	}
	return d
}

// RateLimitStatus contains rate limiter statistics.
type RateLimitStatus struct {
	RemainingRequests int
	RemainingTokens   int64
	TokensPerWindow   int64
	InFlight          int64
	MaxConcurrent     int64
}
