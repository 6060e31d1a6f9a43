// Package config provides YAML configuration loading with validation and
// environment variable substitution for the client core.
package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clientops/clientops/observe"
	"github.com/clientops/clientops/resilience"
	"github.com/clientops/clientops/secret"
)

// Config is the top-level client configuration.
type Config struct {
	Backend        BackendConfig        `yaml:"backend" json:"backend"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
	Retry          RetryConfig          `yaml:"retry" json:"retry"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit" json:"rate_limit"`
	Observability  ObservabilityConfig  `yaml:"observability" json:"observability"`
}

// BackendConfig holds the HTTP backend settings.
type BackendConfig struct {
	BaseURL string            `yaml:"base_url" json:"base_url"`
	Headers map[string]string `yaml:"headers" json:"headers,omitempty"`

	// RequestTimeout bounds non-streaming calls; default: 30s.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// CircuitBreakerConfig holds circuit breaker settings for the backend.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold" json:"success_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout" json:"reset_timeout"`
	FailureWindow    time.Duration `yaml:"failure_window" json:"failure_window"`
}

// RetryConfig holds retry policy settings.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
	JitterFraction float64       `yaml:"jitter_fraction" json:"jitter_fraction"`
}

// RateLimitConfig holds the local rate limiter budget.
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requests_per_window" json:"requests_per_window"`
	TokensPerWindow   int64         `yaml:"tokens_per_window" json:"tokens_per_window"`
	Window            time.Duration `yaml:"window" json:"window"`
	MaxConcurrent     int64         `yaml:"max_concurrent" json:"max_concurrent"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Version     string        `yaml:"version" json:"version"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
	Metrics     MetricsConfig `yaml:"metrics" json:"metrics"`
	Logging     LoggingConfig `yaml:"logging" json:"logging"`
}

// TracingConfig configures the tracing subsystem.
type TracingConfig struct {
	Enabled   bool    `yaml:"enabled" json:"enabled"`
	Exporter  string  `yaml:"exporter" json:"exporter"`     // otlp|stdout|none
	SamplePct float64 `yaml:"sample_pct" json:"sample_pct"` // 0.0-1.0
}

// MetricsConfig configures the metrics subsystem.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Exporter string `yaml:"exporter" json:"exporter"` // otlp|prometheus|stdout|none
}

// LoggingConfig configures the logging subsystem.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Level   string `yaml:"level" json:"level"` // debug|info|warn|error
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns in s with the corresponding
// environment variable value.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		key := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return match
	})
}

// Load reads and parses a YAML configuration file, applies environment
// variable substitution, sets defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Backend.RequestTimeout == 0 {
		cfg.Backend.RequestTimeout = 30 * time.Second
	}

	cb := &cfg.CircuitBreaker
	if cb.FailureThreshold == 0 {
		cb.FailureThreshold = 5
	}
	if cb.SuccessThreshold == 0 {
		cb.SuccessThreshold = 2
	}
	if cb.ResetTimeout == 0 {
		cb.ResetTimeout = 30 * time.Second
	}
	if cb.FailureWindow == 0 {
		cb.FailureWindow = time.Minute
	}

	r := &cfg.Retry
	if r.MaxRetries == 0 {
		r.MaxRetries = 3
	}
	if r.InitialBackoff == 0 {
		r.InitialBackoff = time.Second
	}
	if r.MaxBackoff == 0 {
		r.MaxBackoff = 30 * time.Second
	}
	if r.Multiplier == 0 {
		r.Multiplier = 2.0
	}

	rl := &cfg.RateLimit
	if rl.RequestsPerWindow == 0 {
		rl.RequestsPerWindow = 60
	}
	if rl.Window == 0 {
		rl.Window = time.Minute
	}
	if rl.MaxConcurrent == 0 {
		rl.MaxConcurrent = 16
	}
}

func validate(cfg *Config) error {
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("backend.base_url: invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.base_url: scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("backend.base_url: host is required")
	}
	if cfg.Backend.RequestTimeout < 0 {
		return fmt.Errorf("backend.request_timeout must be non-negative")
	}

	cb := cfg.CircuitBreaker
	if cb.FailureThreshold < 1 {
		return fmt.Errorf("circuit_breaker.failure_threshold must be positive")
	}
	if cb.SuccessThreshold < 1 {
		return fmt.Errorf("circuit_breaker.success_threshold must be positive")
	}
	if cb.ResetTimeout <= 0 {
		return fmt.Errorf("circuit_breaker.reset_timeout must be positive")
	}
	if cb.FailureWindow <= 0 {
		return fmt.Errorf("circuit_breaker.failure_window must be positive")
	}

	r := cfg.Retry
	if r.MaxRetries < 1 {
		return fmt.Errorf("retry.max_retries must be positive")
	}
	if r.InitialBackoff <= 0 {
		return fmt.Errorf("retry.initial_backoff must be positive")
	}
	if r.MaxBackoff < r.InitialBackoff {
		return fmt.Errorf("retry.max_backoff must be at least initial_backoff")
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1")
	}
	if r.JitterFraction < 0 || r.JitterFraction >= 1 {
		return fmt.Errorf("retry.jitter_fraction must be in [0, 1)")
	}

	rl := cfg.RateLimit
	if rl.RequestsPerWindow < 1 {
		return fmt.Errorf("rate_limit.requests_per_window must be positive")
	}
	if rl.TokensPerWindow < 0 {
		return fmt.Errorf("rate_limit.tokens_per_window must be non-negative")
	}
	if rl.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive")
	}
	if rl.MaxConcurrent < 1 {
		return fmt.Errorf("rate_limit.max_concurrent must be positive")
	}

	if cfg.Observability.ServiceName == "" &&
		(cfg.Observability.Tracing.Enabled || cfg.Observability.Metrics.Enabled) {
		return fmt.Errorf("observability.service_name is required when tracing or metrics are enabled")
	}
	if cfg.Observability.Logging.Enabled {
		switch strings.ToLower(cfg.Observability.Logging.Level) {
		case "", "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("observability.logging.level must be one of debug, info, warn, error; got %q",
				cfg.Observability.Logging.Level)
		}
	}

	return nil
}

// ResolveSecrets resolves secret references in the backend headers in
// place. Header values commonly carry API keys or bearer tokens, so they
// take the secretref syntax in addition to plain ${VAR} expansion.
func (c *Config) ResolveSecrets(ctx context.Context, resolver *secret.Resolver) error {
	resolved, err := resolver.ResolveMap(ctx, c.Backend.Headers)
	if err != nil {
		return fmt.Errorf("resolving backend headers: %w", err)
	}
	c.Backend.Headers = resolved
	return nil
}

// BreakerConfig maps the loaded settings onto the circuit breaker.
func (c *Config) BreakerConfig() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		FailureThreshold: c.CircuitBreaker.FailureThreshold,
		SuccessThreshold: c.CircuitBreaker.SuccessThreshold,
		ResetTimeout:     c.CircuitBreaker.ResetTimeout,
		FailureWindow:    c.CircuitBreaker.FailureWindow,
	}
}

// RetryPolicy maps the loaded settings onto the retry executor.
func (c *Config) RetryPolicy() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxRetries:     c.Retry.MaxRetries,
		InitialBackoff: c.Retry.InitialBackoff,
		MaxBackoff:     c.Retry.MaxBackoff,
		Multiplier:     c.Retry.Multiplier,
		JitterFraction: c.Retry.JitterFraction,
	}
}

// LimiterConfig maps the loaded settings onto the rate limiter.
func (c *Config) LimiterConfig() resilience.RateLimiterConfig {
	return resilience.RateLimiterConfig{
		RequestsPerWindow: c.RateLimit.RequestsPerWindow,
		TokensPerWindow:   c.RateLimit.TokensPerWindow,
		Window:            c.RateLimit.Window,
		MaxConcurrent:     c.RateLimit.MaxConcurrent,
	}
}

// ObserveConfig maps the loaded settings onto the telemetry stack.
func (c *Config) ObserveConfig() observe.Config {
	return observe.Config{
		ServiceName: c.Observability.ServiceName,
		Version:     c.Observability.Version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observability.Tracing.Enabled,
			Exporter:  c.Observability.Tracing.Exporter,
			SamplePct: c.Observability.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observability.Metrics.Enabled,
			Exporter: c.Observability.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: c.Observability.Logging.Enabled,
			Level:   c.Observability.Logging.Level,
		},
	}
}
