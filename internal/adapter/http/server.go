package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gcdb-labs/disaster-etl/internal/taxonomy"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes health, readiness, metrics, and taxonomy inspection
// endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /taxonomy routes. The taxonomy endpoint dumps the active hazard profile
// table so operators can verify which dataset version a deployment runs.
func NewServer(addr string, ready ReadinessChecker, table *taxonomy.Table, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.HandleFunc("GET /taxonomy", handleTaxonomy(table))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

type taxonomyRow struct {
	UNDRR2025    string `json:"undrr_2025_key,omitempty"`
	UNDRR2020    string `json:"undrr_key,omitempty"`
	Glide        string `json:"glide_code,omitempty"`
	EMDAT        string `json:"emdat_key,omitempty"`
	Label        string `json:"label"`
	ClusterLabel string `json:"cluster_label"`
	FamilyLabel  string `json:"family_label"`
}

func handleTaxonomy(table *taxonomy.Table) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		rows, err := table.Rows()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": err.Error(),
			})
			return
		}

		out := make([]taxonomyRow, len(rows))
		for i, r := range rows {
			out[i] = taxonomyRow{
				UNDRR2025:    r.UNDRR2025,
				UNDRR2020:    r.UNDRR2020,
				Glide:        r.Glide,
				EMDAT:        r.EMDAT,
				Label:        r.Label,
				ClusterLabel: r.ClusterLabel,
				FamilyLabel:  r.FamilyLabel,
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"rows":  out,
			"count": len(out),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
