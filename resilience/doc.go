// Package resilience provides the gating primitives for calls against a
// remote backend.
//
// The package implements three patterns that require no background tasks;
// all behavior is driven purely by calls made into them:
//
//   - Circuit Breaker: stops issuing calls to a failing backend for a
//     cooldown period, then admits limited probes to test recovery.
//
//   - Retry: retries a supplied operation with bounded attempts and
//     exponential backoff with jitter, honoring backend retry-after hints.
//
//   - Rate Limiter: throttles request and token volume, reconciles the
//     local budget against backend-reported quota, and enforces a hard
//     concurrency ceiling.
//
// One CircuitBreaker and one RateLimiter instance are shared across all
// concurrent calls against the same logical backend; both are safe for
// concurrent use. Retry state is scoped to a single Execute call.
//
// # Usage
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    ResetTimeout:     time.Minute,
//	})
//
//	retry := resilience.NewRetry(resilience.RetryPolicy{
//	    MaxRetries:     3,
//	    InitialBackoff: time.Second,
//	    MaxBackoff:     30 * time.Second,
//	    Multiplier:     2.0,
//	    JitterFraction: 0.1,
//	})
//
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
//	    RequestsPerWindow: 60,
//	    MaxConcurrent:     16,
//	})
//
// The client package composes all three behind one call entry point.
package resilience
