package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clientops/clientops/resilience"
)

func probeAggregator(cb *resilience.CircuitBreaker, rl *resilience.RateLimiter) *Aggregator {
	agg := NewAggregator()
	agg.Register("circuit", NewBreakerChecker("circuit", cb))
	agg.Register("quota", NewQuotaChecker("quota", rl))
	return agg
}

func TestLivenessHandler_AlwaysOK(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}
}

func TestReadinessHandler_HealthyBackend(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		RequestsPerWindow: 100,
		Window:            time.Minute,
	})

	rec := httptest.NewRecorder()
	ReadinessHandler(probeAggregator(cb, rl))(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}
}

func TestReadinessHandler_OpenCircuitTurnsTrafficAway(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
	})
	cb.RecordFailure()
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		RequestsPerWindow: 100,
		Window:            time.Minute,
	})

	rec := httptest.NewRecorder()
	ReadinessHandler(probeAggregator(cb, rl))(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if rec.Body.String() != "UNHEALTHY" {
		t.Errorf("body = %q, want UNHEALTHY", rec.Body.String())
	}
}

func TestReadinessHandler_ExhaustedQuotaStaysServing(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		RequestsPerWindow: 100,
		Window:            time.Minute,
	})
	rl.UpdateFromHeaders(resilience.ServerQuota{RemainingRequests: 0, RemainingTokens: -1})

	rec := httptest.NewRecorder()
	ReadinessHandler(probeAggregator(cb, rl))(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "DEGRADED" {
		t.Errorf("body = %q, want DEGRADED", rec.Body.String())
	}
}

func TestDetailedHandler_ReportsComponentState(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
	})
	cb.RecordFailure()
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		RequestsPerWindow: 100,
		Window:            time.Minute,
	})

	rec := httptest.NewRecorder()
	DetailedHandler(probeAggregator(cb, rl))(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}

	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if report.Status != "unhealthy" {
		t.Errorf("report status = %q, want unhealthy", report.Status)
	}

	circuit, ok := report.Components["circuit"]
	if !ok {
		t.Fatalf("report missing circuit component: %+v", report.Components)
	}
	if circuit.Status != "unhealthy" {
		t.Errorf("circuit status = %q, want unhealthy", circuit.Status)
	}
	if circuit.Details["state"] != "open" {
		t.Errorf("circuit state detail = %v, want open", circuit.Details["state"])
	}
	if circuit.Error == "" {
		t.Error("circuit error missing from report")
	}

	quota, ok := report.Components["quota"]
	if !ok {
		t.Fatalf("report missing quota component: %+v", report.Components)
	}
	if quota.Status != "healthy" {
		t.Errorf("quota status = %q, want healthy", quota.Status)
	}
}

func TestRegisterHandlers_MountsProbeEndpoints(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		RequestsPerWindow: 100,
		Window:            time.Minute,
	})

	mux := http.NewServeMux()
	RegisterHandlers(mux, probeAggregator(cb, rl))

	for _, path := range []string{"/healthz", "/readyz", "/health"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}
