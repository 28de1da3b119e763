package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)
		r.Post("/commands", s.handleCommand)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// healthCheckTimeout bounds each backend check made by /health.
const healthCheckTimeout = 2 * time.Second

// Backend states reported by /health.
const (
	backendOK          = "ok"
	backendUnavailable = "unavailable"
)

// HealthResponse is the body of GET /health. Database and InfluxDB are
// omitted when that backend is disabled.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	MQTT          string `json:"mqtt"`
	Database      string `json:"database,omitempty"`
	InfluxDB      string `json:"influxdb,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	WSClients     int    `json:"ws_clients"`
}

// handleHealth reports the MQTT session and every configured backend.
// Status is "degraded" when a configured backend fails its check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	mqttState := "disconnected"
	if p := s.publisher(); p != nil && p.IsConnected() {
		mqttState = "connected"
	}

	resp := HealthResponse{
		Status:        "ok",
		Version:       s.version,
		MQTT:          mqttState,
		Database:      s.checkBackend(r.Context(), "database", s.database),
		InfluxDB:      s.checkBackend(r.Context(), "influxdb", s.influxdb),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		WSClients:     s.hub.ClientCount(),
	}
	if resp.Database == backendUnavailable || resp.InfluxDB == backendUnavailable {
		resp.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, resp)
}

// checkBackend returns "" for a nil checker.
func (s *Server) checkBackend(ctx context.Context, name string, hc HealthChecker) string {
	if hc == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := hc.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", "backend", name, "error", err)
		return backendUnavailable
	}
	return backendOK
}
