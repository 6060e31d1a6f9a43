package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/clientops/clientops/apierror"
)

// backoffFloor is the minimum delay between attempts regardless of policy.
const backoffFloor = 100 * time.Millisecond

// RetryPolicy is the immutable backoff configuration read on every attempt.
type RetryPolicy struct {
	// MaxRetries is the maximum number of attempts (including the first).
	// Default: 3
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	// Default: 1 second
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between retries.
	// Default: 30 seconds
	MaxBackoff time.Duration

	// Multiplier grows the delay exponentially with the attempt number.
	// Default: 2.0
	Multiplier float64

	// JitterFraction perturbs each delay by uniform(-jitter, +jitter) to
	// avoid synchronized retry storms. Zero disables jitter.
	// Default: 0.1
	JitterFraction float64
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = time.Second
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	return p
}

// Backoff computes the delay before the retry that follows the given
// attempt. The result always lies within [100ms, MaxBackoff].
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt-1))

	if p.JitterFraction > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		base *= 1 + (rand.Float64()*2-1)*p.JitterFraction
	}

	delay := time.Duration(base)
	if delay < backoffFloor {
		delay = backoffFloor
	}
	if delay > p.MaxBackoff {
		delay = p.MaxBackoff
	}
	return delay
}

// HookDecision directs the retry loop before it sleeps.
type HookDecision int

const (
	// HookDefault keeps the computed delay.
	HookDefault HookDecision = iota
	// HookAbort fails fast with the current error.
	HookAbort
	// HookOverride sleeps HookResult.Delay instead of the computed delay.
	HookOverride
)

// HookResult is the outcome of a retry hook consultation.
type HookResult struct {
	Decision HookDecision
	Delay    time.Duration
}

// RetryHook is consulted before each sleep between attempts. It may abort
// the loop or override the delay; returning HookDefault keeps the
// computed value.
type RetryHook func(attempt int, err error, delay time.Duration) HookResult

// RetryOption configures a Retry at construction time.
type RetryOption func(*Retry)

// WithRetryHook installs a hook consulted before each retry sleep.
func WithRetryHook(hook RetryHook) RetryOption {
	return func(r *Retry) {
		r.hook = hook
	}
}

// Retry runs an operation with bounded attempts and computed backoff.
// State is scoped to a single Execute call, so one Retry value may be
// shared across goroutines.
type Retry struct {
	policy RetryPolicy
	hook   RetryHook
}

// NewRetry creates a new retry executor.
func NewRetry(policy RetryPolicy, opts ...RetryOption) *Retry {
	r := &Retry{policy: policy.withDefaults()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the effective retry policy.
func (r *Retry) Policy() RetryPolicy {
	return r.policy
}

// Execute invokes op with attempt numbers starting at 1 until it succeeds,
// returns a non-retryable error, or exhausts the policy. The final
// underlying error is returned exactly as received, never wrapped.
//
// When an error carries a backend-supplied retry-after hint larger than the
// computed backoff, the hint wins.
func (r *Retry) Execute(ctx context.Context, op func(ctx context.Context, attempt int) error, retryable func(error) bool) error {
	return r.execute(ctx, op, retryable, nil)
}

// ExecuteObserved behaves like Execute and additionally calls observe with
// the attempt number, failing error, and final delay just before each sleep
// between attempts. Any hook installed at construction still applies, and
// its decision is reflected in the delay observe sees.
func (r *Retry) ExecuteObserved(ctx context.Context, op func(ctx context.Context, attempt int) error, retryable func(error) bool, observe func(attempt int, err error, delay time.Duration)) error {
	return r.execute(ctx, op, retryable, observe)
}

func (r *Retry) execute(ctx context.Context, op func(ctx context.Context, attempt int) error, retryable func(error) bool, observe func(attempt int, err error, delay time.Duration)) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}

		if retryable == nil || !retryable(err) {
			return err
		}
		if attempt >= r.policy.MaxRetries {
			return err
		}

		delay := r.policy.Backoff(attempt)
		if hint := apierror.RetryAfterHint(err); hint > delay {
			delay = hint
		}

		if r.hook != nil {
			switch res := r.hook(attempt, err, delay); res.Decision {
			case HookAbort:
				return err
			case HookOverride:
				delay = res.Delay
			}
		}

		if observe != nil {
			observe(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			// Continue to next attempt
		}
	}
}
