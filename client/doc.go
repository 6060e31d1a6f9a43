// Package client composes the resilience primitives into one call path.
//
// An Orchestrator owns a shared circuit breaker, rate limiter, and retry
// executor for a single logical backend and threads every unary call and
// streaming session through them in a fixed order: breaker gate, limiter
// acquire, retry loop. Telemetry is recorded once per logical call, not
// once per attempt.
//
// Example:
//
//	orch := client.New(client.Options{
//		Backend: "api",
//		Breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{}),
//	})
//
//	err := orch.Execute(ctx, "create_message", func(ctx context.Context, attempt int) error {
//		return doRequest(ctx)
//	}, nil)
package client
