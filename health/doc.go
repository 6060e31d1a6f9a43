// Package health exposes the resilience state of backend clients as
// health checks.
//
// A Checker is any component that can report its health status. The Status
// type represents the health state: Healthy, Degraded, or Unhealthy. The
// package ships checkers over the shared circuit breaker and rate limiter,
// so an open circuit or an exhausted quota shows up on readiness probes
// before callers start seeing synthetic failures.
//
// # Basic Usage
//
//	check := health.NewBreakerChecker("api", breaker)
//
//	result := check.Check(ctx)
//	if result.Status == health.StatusUnhealthy {
//	    log.Printf("backend gated: %s", result.Message)
//	}
//
// # Aggregating Health Checks
//
// Use Aggregator to combine multiple health checks into a single composite check:
//
//	agg := health.NewAggregator()
//	agg.Register("api_circuit", health.NewBreakerChecker("api_circuit", breaker))
//	agg.Register("api_quota", health.NewQuotaChecker("api_quota", limiter))
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// # HTTP Endpoints
//
// The package provides HTTP handlers for common health check patterns:
//
//	// Liveness probe (for Kubernetes)
//	http.Handle("/healthz", health.LivenessHandler())
//
//	// Readiness probe with component checks
//	http.Handle("/readyz", health.ReadinessHandler(aggregator))
//
//	// Detailed health status
//	http.Handle("/health", health.DetailedHandler(aggregator))
package health
