package health

import (
	"context"
	"fmt"

	"github.com/clientops/clientops/resilience"
)

// BreakerChecker reports the circuit breaker state for one backend as a
// health check. A closed circuit is healthy, half-open is degraded, and
// open is unhealthy.
type BreakerChecker struct {
	name    string
	breaker *resilience.CircuitBreaker
}

// NewBreakerChecker creates a checker over a shared circuit breaker.
func NewBreakerChecker(name string, breaker *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{name: name, breaker: breaker}
}

// Name returns the name of this checker.
func (b *BreakerChecker) Name() string {
	return b.name
}

// Check performs the circuit health check.
func (b *BreakerChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	stats := b.breaker.Stats()
	details := map[string]any{
		"state":          stats.State.String(),
		"total_requests": stats.TotalRequests,
		"failures":       stats.Failures,
		"successes":      stats.Successes,
	}
	if !stats.LastFailure.IsZero() {
		details["last_failure"] = stats.LastFailure.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	switch stats.State {
	case resilience.StateOpen:
		msg := "circuit open"
		if remaining, ok := b.breaker.TimeUntilHalfOpen(); ok {
			msg = fmt.Sprintf("circuit open, probe in %s", remaining.Round(0))
			details["time_until_half_open"] = remaining.String()
		}
		return Unhealthy(msg, resilience.ErrCircuitOpen).WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("circuit half-open, probing backend").WithDetails(details)
	default:
		return Healthy("circuit closed").WithDetails(details)
	}
}

// QuotaChecker reports the rate limiter budget for one backend as a
// health check. Exhausted quota is degraded, not unhealthy, because the
// condition clears on its own when the window resets.
type QuotaChecker struct {
	name    string
	limiter *resilience.RateLimiter
}

// NewQuotaChecker creates a checker over a shared rate limiter.
func NewQuotaChecker(name string, limiter *resilience.RateLimiter) *QuotaChecker {
	return &QuotaChecker{name: name, limiter: limiter}
}

// Name returns the name of this checker.
func (q *QuotaChecker) Name() string {
	return q.name
}

// Check performs the quota health check.
func (q *QuotaChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	status := q.limiter.Status()
	details := map[string]any{
		"remaining_requests": status.RemainingRequests,
		"in_flight":          status.InFlight,
		"max_concurrent":     status.MaxConcurrent,
	}
	if status.TokensPerWindow > 0 {
		details["remaining_tokens"] = status.RemainingTokens
		details["tokens_per_window"] = status.TokensPerWindow
	}

	if status.InFlight >= status.MaxConcurrent {
		return Degraded("concurrency ceiling reached").WithDetails(details)
	}
	if status.RemainingRequests == 0 {
		return Degraded("backend request quota exhausted").WithDetails(details)
	}
	if status.TokensPerWindow > 0 && status.RemainingTokens <= 0 {
		return Degraded("token budget exhausted").WithDetails(details)
	}

	return Healthy("quota available").WithDetails(details)
}
