package observe

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "missing service name",
			config:  Config{},
			wantErr: ErrMissingServiceName,
		},
		{
			name: "valid minimal",
			config: Config{
				ServiceName: "clientops",
			},
		},
		{
			name: "invalid tracing exporter",
			config: Config{
				ServiceName: "clientops",
				Tracing:     TracingConfig{Enabled: true, Exporter: "jaeger"},
			},
			wantErr: ErrInvalidTracingExporter,
		},
		{
			name: "invalid sample pct",
			config: Config{
				ServiceName: "clientops",
				Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1.5},
			},
			wantErr: ErrInvalidSamplePct,
		},
		{
			name: "invalid metrics exporter",
			config: Config{
				ServiceName: "clientops",
				Metrics:     MetricsConfig{Enabled: true, Exporter: "statsd"},
			},
			wantErr: ErrInvalidMetricsExporter,
		},
		{
			name: "invalid log level",
			config: Config{
				ServiceName: "clientops",
				Logging:     LoggingConfig{Enabled: true, Level: "verbose"},
			},
			wantErr: ErrInvalidLogLevel,
		},
		{
			name: "valid full",
			config: Config{
				ServiceName: "clientops",
				Version:     "1.0.0",
				Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 0.5},
				Metrics:     MetricsConfig{Enabled: true, Exporter: "prometheus"},
				Logging:     LoggingConfig{Enabled: true, Level: "info"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewObserver_DisabledIsNoop(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "clientops"})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	defer obs.Shutdown(context.Background())

	if obs.Tracer() == nil {
		t.Errorf("Tracer() = nil")
	}
	if obs.Meter() == nil {
		t.Errorf("Meter() = nil")
	}
	if obs.Logger() == nil {
		t.Errorf("Logger() = nil")
	}
}

func TestCallMeta_SpanName(t *testing.T) {
	unary := CallMeta{Operation: "create_message"}
	if got := unary.SpanName(); got != "client.call.create_message" {
		t.Errorf("SpanName() = %q", got)
	}

	streaming := CallMeta{Operation: "create_message", Streaming: true}
	if got := streaming.SpanName(); got != "client.stream.create_message" {
		t.Errorf("SpanName() = %q", got)
	}
}

func TestRecorder_NoopBeginEnd(t *testing.T) {
	rec := NewNoopRecorder()

	ctx, call := rec.Begin(context.Background(), CallMeta{Operation: "op"})
	if ctx == nil || call == nil {
		t.Fatalf("Begin() returned nil")
	}

	// End with every stats shape; the noop path must not panic.
	call.End(ctx, CallStats{
		CircuitState:  "closed",
		RateLimitWait: time.Millisecond,
		Attempts:      2,
		Outcome:       "error",
		BytesStreamed: 100,
	}, errors.New("boom"))
}

func TestRecorderFromObserver_NilObserver(t *testing.T) {
	if _, err := RecorderFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Errorf("RecorderFromObserver(nil) = %v, want ErrNilObserver", err)
	}
}

func TestRecorderFromObserver(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "clientops"})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	defer obs.Shutdown(context.Background())

	rec, err := RecorderFromObserver(obs)
	if err != nil {
		t.Fatalf("RecorderFromObserver() error = %v", err)
	}

	ctx, call := rec.Begin(context.Background(), CallMeta{Operation: "op", Backend: "api"})
	call.End(ctx, CallStats{CircuitState: "closed", Attempts: 1, Outcome: "success"}, nil)
}
