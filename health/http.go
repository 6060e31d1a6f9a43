package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds one probe request end to end.
const probeTimeout = 5 * time.Second

// LivenessHandler reports that the process is up. It never consults the
// aggregator; an open circuit must not get the process restarted.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler reports whether the client is fit to take traffic. An
// open circuit turns the probe away with 503; exhausted quota degrades
// the report but keeps it serving.
func ReadinessHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		results := agg.CheckAll(ctx)
		status := agg.OverallStatus(results)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(probeStatusCode(status))
		_, _ = w.Write([]byte(probeBody(status)))
	}
}

// Report is the JSON document served by the detailed endpoint.
type Report struct {
	Status     string                     `json:"status"`
	CheckedAt  string                     `json:"checked_at"`
	Components map[string]ComponentReport `json:"components,omitempty"`
}

// ComponentReport is one component's entry in a Report.
type ComponentReport struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// DetailedHandler serves the full per-component report: breaker state,
// remaining quota, and whatever details each checker attached.
func DetailedHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		results := agg.CheckAll(ctx)
		status := agg.OverallStatus(results)

		report := Report{
			Status:     status.String(),
			CheckedAt:  time.Now().UTC().Format(time.RFC3339),
			Components: make(map[string]ComponentReport, len(results)),
		}
		for name, result := range results {
			component := ComponentReport{
				Status:  result.Status.String(),
				Message: result.Message,
				Details: result.Details,
			}
			if result.Error != nil {
				component.Error = result.Error.Error()
			}
			report.Components[name] = component
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(probeStatusCode(status))
		_ = json.NewEncoder(w).Encode(report)
	}
}

// RegisterHandlers mounts the probe endpoints on mux.
func RegisterHandlers(mux *http.ServeMux, agg *Aggregator) {
	mux.HandleFunc("/healthz", LivenessHandler())
	mux.HandleFunc("/readyz", ReadinessHandler(agg))
	mux.HandleFunc("/health", DetailedHandler(agg))
}

// probeStatusCode maps the aggregate status onto the probe contract:
// degraded still serves, only unhealthy turns traffic away.
func probeStatusCode(s Status) int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func probeBody(s Status) string {
	switch s {
	case StatusHealthy:
		return "OK"
	case StatusDegraded:
		return "DEGRADED"
	default:
		return "UNHEALTHY"
	}
}
