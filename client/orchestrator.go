package client

import (
	"context"
	"io"
	"time"

	"github.com/clientops/clientops/apierror"
	"github.com/clientops/clientops/observe"
	"github.com/clientops/clientops/resilience"
	"github.com/clientops/clientops/stream"
)

// AttemptFunc performs one unary attempt. Attempt numbers start at 1.
type AttemptFunc func(ctx context.Context, attempt int) error

// StreamAttemptFunc opens one underlying streaming connection and returns
// its raw byte source.
type StreamAttemptFunc func(ctx context.Context, attempt int) (io.ReadCloser, error)

// RetryableFunc classifies an error as retryable or not.
type RetryableFunc func(err error) bool

// Options configures an Orchestrator. Nil components get defaults; the
// breaker and limiter are injected by reference so one instance can be
// shared across everything that talks to the same logical backend.
type Options struct {
	// Backend is the logical backend name used in telemetry.
	Backend string

	// Breaker gates calls. Default: NewCircuitBreaker with defaults.
	Breaker *resilience.CircuitBreaker

	// Limiter throttles calls. Default: NewRateLimiter with defaults.
	Limiter *resilience.RateLimiter

	// Retry drives the attempt loop. Default: NewRetry with defaults.
	Retry *resilience.Retry

	// Recorder receives one span, counter set, and log line per call.
	// Default: a recorder that records nothing.
	Recorder *observe.Recorder
}

// Orchestrator composes the circuit breaker, rate limiter, and retry
// executor behind one call entry point. It is safe for concurrent use;
// unary calls run entirely on the calling goroutine and suspend only at
// the rate-limiter wait and the underlying network operations.
type Orchestrator struct {
	backend  string
	breaker  *resilience.CircuitBreaker
	limiter  *resilience.RateLimiter
	retry    *resilience.Retry
	recorder *observe.Recorder
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
	}
	if opts.Limiter == nil {
		opts.Limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{})
	}
	if opts.Retry == nil {
		opts.Retry = resilience.NewRetry(resilience.RetryPolicy{})
	}
	if opts.Recorder == nil {
		opts.Recorder = observe.NewNoopRecorder()
	}

	return &Orchestrator{
		backend:  opts.Backend,
		breaker:  opts.Breaker,
		limiter:  opts.Limiter,
		retry:    opts.Retry,
		recorder: opts.Recorder,
	}
}

// Execute runs one unary operation through the breaker, limiter, and
// retry loop. retryable classifies errors; nil means the shared taxonomy
// (apierror.IsRetryable) decides.
//
// Errors produced by the orchestrator itself are the synthetic
// service-unavailable error for an open breaker and the rate-limit error
// for a rejected acquire; every other error is whatever the attempt
// produced, unmodified, after the retry policy is exhausted.
func (o *Orchestrator) Execute(ctx context.Context, operation string, attempt AttemptFunc, retryable RetryableFunc) error {
	if retryable == nil {
		retryable = apierror.IsRetryable
	}

	meta := observe.CallMeta{Operation: operation, Backend: o.backend}
	ctx, call := o.recorder.Begin(ctx, meta)
	stats := observe.CallStats{CircuitState: o.breaker.State().String()}

	release, gateErr := o.gate(ctx, &stats)
	if gateErr != nil {
		call.End(ctx, stats, gateErr)
		return gateErr
	}
	defer release()

	attempts := 0
	err := o.retry.ExecuteObserved(ctx, func(ctx context.Context, n int) error {
		attempts = n
		attemptErr := attempt(ctx, n)
		o.record(attemptErr, retryable)
		return attemptErr
	}, retryable, o.logRetry(ctx, operation))

	stats.Attempts = attempts
	stats.Outcome = outcomeFor(err)
	call.End(ctx, stats, err)
	return err
}

// OpenStream opens one streaming call and returns a session the caller
// pulls events from. Connection establishment goes through the same
// breaker, limiter, and retry gates as a unary call; the session then
// keeps breaker and limiter bookkeeping current for the rest of the
// call's lifetime. The telemetry span stays open until the session
// completes, fails, or is abandoned.
func (o *Orchestrator) OpenStream(ctx context.Context, operation string, attempt StreamAttemptFunc) (*stream.Session, error) {
	meta := observe.CallMeta{Operation: operation, Backend: o.backend, Streaming: true}
	ctx, call := o.recorder.Begin(ctx, meta)
	stats := observe.CallStats{CircuitState: o.breaker.State().String()}

	release, gateErr := o.gate(ctx, &stats)
	if gateErr != nil {
		call.End(ctx, stats, gateErr)
		return nil, gateErr
	}

	var source io.ReadCloser
	attempts := 0
	err := o.retry.ExecuteObserved(ctx, func(ctx context.Context, n int) error {
		attempts = n
		src, attemptErr := attempt(ctx, n)
		o.record(attemptErr, apierror.IsRetryable)
		if attemptErr != nil {
			return attemptErr
		}
		source = src
		return nil
	}, apierror.IsRetryable, o.logRetry(ctx, operation))

	stats.Attempts = attempts
	if err != nil {
		release()
		stats.Outcome = outcomeFor(err)
		call.End(ctx, stats, err)
		return nil, err
	}

	monitor := &sessionMonitor{
		orch:    o,
		call:    call,
		ctx:     ctx,
		stats:   stats,
		release: release,
	}
	session := stream.NewSession(stream.SessionConfig{
		Source:  source,
		Logger:  o.recorder.Logger(),
		Monitor: monitor,
	})
	monitor.session = session
	return session, nil
}

// CircuitState returns the breaker state for the shared backend.
func (o *Orchestrator) CircuitState() resilience.State {
	return o.breaker.State()
}

// RateLimitStatus returns the limiter's current budget.
func (o *Orchestrator) RateLimitStatus() resilience.RateLimitStatus {
	return o.limiter.Status()
}

// gate runs the breaker and limiter checks that precede every call. On
// success it returns a release function for the limiter slot.
func (o *Orchestrator) gate(ctx context.Context, stats *observe.CallStats) (func(), error) {
	if o.breaker.IsOpen() {
		retryAfter, _ := o.breaker.TimeUntilHalfOpen()
		stats.Outcome = "unavailable"
		err := apierror.Unavailable("circuit breaker is open", retryAfter)
		err.Err = resilience.ErrCircuitOpen
		return nil, err
	}

	decision := o.limiter.Acquire()
	switch decision.Decision {
	case resilience.DecisionRejected:
		stats.Outcome = "rate_limited"
		err := apierror.RateLimited("concurrency ceiling reached", 0)
		err.Err = resilience.ErrRateLimitExceeded
		return nil, err

	case resilience.DecisionDelayed:
		stats.RateLimitWait = decision.Wait
		select {
		case <-ctx.Done():
			o.limiter.Release()
			stats.Outcome = "abandoned"
			return nil, ctx.Err()
		case <-time.After(decision.Wait):
			// Granted after the wait; no second acquire.
		}
	}

	return o.limiter.Release, nil
}

// logRetry returns the per-sleep observer for the retry loop.
func (o *Orchestrator) logRetry(ctx context.Context, operation string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		o.recorder.Logger().Warn(ctx, "retrying call",
			observe.Field{Key: "operation", Value: operation},
			observe.Field{Key: "attempt", Value: attempt},
			observe.Field{Key: "delay_ms", Value: delay.Milliseconds()},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
}

// record applies one attempt result to the breaker. Non-retryable errors
// never count against circuit health.
func (o *Orchestrator) record(err error, retryable RetryableFunc) {
	if err == nil {
		o.breaker.RecordSuccess()
		return
	}
	if retryable(err) {
		o.breaker.RecordFailure()
	}
}

func outcomeFor(err error) string {
	if err == nil {
		return "success"
	}
	return "error"
}

// sessionMonitor ties one stream session's lifecycle back into the shared
// breaker, limiter, and the call's open telemetry span.
type sessionMonitor struct {
	orch    *Orchestrator
	call    *observe.Call
	ctx     context.Context
	stats   observe.CallStats
	release func()
	session *stream.Session
}

func (m *sessionMonitor) Completed(usage stream.Usage) {
	// Usage is billed only on confirmed success.
	m.orch.limiter.RecordTokens(usage.Total())
	m.orch.breaker.RecordSuccess()
	m.finish("success", nil)
}

func (m *sessionMonitor) HardFailure(err error) {
	m.orch.breaker.RecordFailure()
	m.finish("error", err)
}

func (m *sessionMonitor) Interrupted(err error) {
	// Soft failure: the breaker is left untouched.
	m.finish("interrupted", err)
}

func (m *sessionMonitor) Abandoned() {
	m.finish("abandoned", nil)
}

func (m *sessionMonitor) finish(outcome string, err error) {
	m.release()
	m.stats.Outcome = outcome
	if m.session != nil {
		m.stats.BytesStreamed = m.session.Bytes()
	}
	m.call.End(m.ctx, m.stats, err)
}
