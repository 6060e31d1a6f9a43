package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CallStats carries the per-call values the orchestrator reports when a
// call finishes.
type CallStats struct {
	// CircuitState is the breaker state observed at call entry.
	CircuitState string

	// RateLimitWait is the delay incurred at the rate-limiter gate.
	RateLimitWait time.Duration

	// Attempts is the final attempt count.
	Attempts int

	// Outcome labels the result: success, error, unavailable, rate_limited,
	// or interrupted.
	Outcome string

	// BytesStreamed counts raw bytes read on a streaming call.
	BytesStreamed int64
}

// Metrics records execution metrics for backend calls.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCall records one finished call with duration and outcome.
	RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, stats CallStats, err error)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	attemptsHist metric.Int64Histogram
	streamBytes  metric.Int64Counter
}

// NewMetrics creates a Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"client.calls.total",
		metric.WithDescription("Total number of backend calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"client.calls.errors",
		metric.WithDescription("Total number of failed backend calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"client.call.duration_ms",
		metric.WithDescription("Backend call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	attemptsHist, err := meter.Int64Histogram(
		"client.retry.attempts",
		metric.WithDescription("Attempts used per backend call"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	streamBytes, err := meter.Int64Counter(
		"client.stream.bytes",
		metric.WithDescription("Raw bytes read from streaming calls"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		attemptsHist: attemptsHist,
		streamBytes:  streamBytes,
	}, nil
}

// RecordCall records metrics for one finished call, keyed by operation
// and outcome.
func (m *metricsImpl) RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, stats CallStats, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("call.operation", meta.Operation),
		attribute.String("call.outcome", stats.Outcome),
	}
	if meta.Backend != "" {
		attrs = append(attrs, attribute.String("call.backend", meta.Backend))
	}

	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}

	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
	if stats.Attempts > 0 {
		m.attemptsHist.Record(ctx, int64(stats.Attempts), opt)
	}
	if stats.BytesStreamed > 0 {
		m.streamBytes.Add(ctx, stats.BytesStreamed, opt)
	}
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

// NewNoopMetrics creates a no-op Metrics.
func NewNoopMetrics() Metrics {
	return &noopMetrics{}
}

func (m *noopMetrics) RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, stats CallStats, err error) {
}
