package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Recorder bundles tracing, metrics, and logging for backend calls. The
// orchestrator opens one recording per call and closes it with the final
// stats, so every call produces exactly one span, one counter increment,
// and one log line.
//
// Contract:
//   - Concurrency: Begin/End pairs may run on any goroutine.
//   - Errors: the recorded error is propagated to the span unchanged.
type Recorder struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewRecorder creates a Recorder with the given components.
func NewRecorder(tracer Tracer, metrics Metrics, logger Logger) *Recorder {
	return &Recorder{tracer: tracer, metrics: metrics, logger: logger}
}

// RecorderFromObserver creates a Recorder from an Observer.
func RecorderFromObserver(obs Observer) (*Recorder, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return &Recorder{
		tracer:  NewTracer(obs.Tracer()),
		metrics: metrics,
		logger:  obs.Logger(),
	}, nil
}

// NewNoopRecorder creates a Recorder that records nothing.
func NewNoopRecorder() *Recorder {
	return &Recorder{
		tracer:  NewNoopTracer(),
		metrics: NewNoopMetrics(),
		logger:  NewDiscardLogger(),
	}
}

// Logger returns the recorder's logger.
func (r *Recorder) Logger() Logger {
	return r.logger
}

// Call is one in-flight recording opened by Begin.
type Call struct {
	rec   *Recorder
	meta  CallMeta
	span  trace.Span
	start time.Time
}

// Begin opens the telemetry span for one call.
func (r *Recorder) Begin(ctx context.Context, meta CallMeta) (context.Context, *Call) {
	ctx, span := r.tracer.StartSpan(ctx, meta)
	return ctx, &Call{rec: r, meta: meta, span: span, start: time.Now()}
}

// End closes the recording with the call's final stats and outcome.
func (c *Call) End(ctx context.Context, stats CallStats, err error) {
	duration := time.Since(c.start)

	c.span.SetAttributes(
		attribute.String("call.circuit_state", stats.CircuitState),
		attribute.Int64("call.rate_limit_wait_ms", stats.RateLimitWait.Milliseconds()),
		attribute.Int("call.attempts", stats.Attempts),
		attribute.String("call.outcome", stats.Outcome),
	)
	if stats.BytesStreamed > 0 {
		c.span.SetAttributes(attribute.Int64("call.stream_bytes", stats.BytesStreamed))
	}
	c.rec.tracer.EndSpan(c.span, err)

	c.rec.metrics.RecordCall(ctx, c.meta, duration, stats, err)

	logger := c.rec.logger.WithCall(c.meta)
	fields := []Field{
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		{Key: "outcome", Value: stats.Outcome},
		{Key: "attempts", Value: stats.Attempts},
	}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		logger.Error(ctx, "backend call failed", fields...)
	} else {
		logger.Info(ctx, "backend call completed", fields...)
	}
}
