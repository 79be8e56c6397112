package api

import (
	"context"
	"net/http"
	"time"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// HealthHandler pings every dependency and reports 503 when one is down.
func HealthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := HealthResponse{
			Status:     "healthy",
			Version:    Version,
			Components: make(map[string]string, len(checks)),
		}
		status := http.StatusOK
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				resp.Components[name] = "down"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Components[name] = "up"
		}

		respondJSON(w, status, resp)
	}
}
