package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck pings one dependency. A nil error means healthy.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthHandler struct {
	checks []HealthCheck
}

func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status, overall := http.StatusOK, "ok"
	results := make(map[string]string, len(h.checks))
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			slog.Warn("health check failed", "component", "api", "check", check.Name, "error", err)
			results[check.Name] = "error"
			status, overall = http.StatusServiceUnavailable, "degraded"
			continue
		}
		results[check.Name] = "ok"
	}

	writeJSON(w, status, map[string]any{
		"status": overall,
		"checks": results,
	})
}
