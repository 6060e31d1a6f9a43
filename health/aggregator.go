package health

import (
	"context"
	"errors"
	"sync"
	"time"
)

// AggregatorConfig configures one aggregator.
type AggregatorConfig struct {
	// Timeout bounds one CheckAll pass end to end.
	// Default: 5 seconds
	Timeout time.Duration
}

type namedChecker struct {
	name    string
	checker Checker
}

// Aggregator folds the checkers guarding one backend client into a single
// readiness signal. The checkers here read in-process resilience state
// (circuit breaker, rate-limit budget), so checks are cheap and run
// sequentially in registration order.
type Aggregator struct {
	timeout time.Duration
	mu      sync.RWMutex
	checks  []namedChecker
}

// NewAggregator creates an aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	timeout := 5 * time.Second
	if len(config) > 0 && config[0].Timeout > 0 {
		timeout = config[0].Timeout
	}
	return &Aggregator{timeout: timeout}
}

// Register adds a checker under the given name. Registering a name twice
// replaces the earlier checker in place.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, c := range a.checks {
		if c.name == name {
			a.checks[i].checker = checker
			return
		}
	}
	a.checks = append(a.checks, namedChecker{name: name, checker: checker})
}

// CheckAll runs every registered checker and returns the results by name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	checks := make([]namedChecker, len(a.checks))
	copy(checks, a.checks)
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make(map[string]Result, len(checks))
	for _, c := range checks {
		results[c.name] = a.run(ctx, c.checker)
	}
	return results
}

// OverallStatus folds per-component results into the readiness signal a
// probe reports: any unhealthy component wins, then any degraded one.
func (a *Aggregator) OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

func (a *Aggregator) run(ctx context.Context, checker Checker) Result {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		result := Unhealthy("check not run", checkErr(err))
		result.Duration = time.Since(start)
		return result
	}

	result := checker.Check(ctx)
	result.Duration = time.Since(start)
	if result.Timestamp.IsZero() {
		result.Timestamp = start
	}
	return result
}

func checkErr(ctxErr error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return ErrCheckTimeout
	}
	return ctxErr
}
