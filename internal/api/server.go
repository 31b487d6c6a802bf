// Package api provides the HTTP server of the roadside unit: session
// control, the latest peer snapshot in JSON and GeoJSON, health checks,
// a live WebSocket feed and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roadside-lab/rsu/internal/app/ingest"
	"github.com/roadside-lab/rsu/internal/domain"
	"github.com/roadside-lab/rsu/internal/health"
	"github.com/roadside-lab/rsu/internal/infra/sqlite"
)

// SessionController is the part of the ingestion controller the API drives.
type SessionController interface {
	Start(ctx context.Context) error
	Stop() error
	Info() ingest.Info
}

// SessionLister lists recorded sessions (SQLite sink only).
type SessionLister interface {
	ListSessions(limit int) ([]sqlite.SessionRow, error)
}

// Server is the roadside unit HTTP API server.
type Server struct {
	ctrl           SessionController
	hub            *Hub
	checker        *health.Checker
	sessions       SessionLister
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(ctrl SessionController, hub *Hub) *Server {
	return &Server{ctrl: ctrl, hub: hub}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetChecker sets the health checker behind /api/checks.
func (s *Server) SetChecker(c *health.Checker) { s.checker = c }

// SetSessions sets the session history behind /api/sessions.
func (s *Server) SetSessions(l SessionLister) { s.sessions = l }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// Long-lived stream, outside the request timeout
	r.Get("/api/live", s.hub.HandleLive)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{
				"status": "ok",
			})
		})

		r.Route("/api", func(r chi.Router) {
			r.Get("/status", s.handleStatus)
			r.Post("/session/start", s.handleStart)
			r.Post("/session/stop", s.handleStop)
			r.Get("/peers", s.handlePeers)
			r.Get("/peers.geojson", s.handlePeersGeoJSON)
			r.Get("/summary", s.handleSummary)
			r.Get("/checks", s.handleChecks)
			r.Get("/sessions", s.handleSessions)
		})

		if s.metricsEnabled {
			r.Handle("/metrics", promhttp.Handler())
		}
	})

	return r
}

// ─── Session control ────────────────────────────────────────────────────────

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Info())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	// The session outlives the request; the daemon stops it on shutdown.
	if err := s.ctrl.Start(context.Background()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrBindFailed) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Info())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrNotListening) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Info())
}

// ─── Snapshot views ─────────────────────────────────────────────────────────

// snapshot returns the latest presented snapshot, or an empty one built
// from the controller status before anything has been presented.
func (s *Server) snapshot() domain.Snapshot {
	if snap, ok := s.hub.Latest(); ok {
		return snap
	}
	info := s.ctrl.Info()
	return domain.Snapshot{
		Status: domain.Status{
			State:     info.State,
			SessionID: info.SessionID,
			Terminal:  info.Terminal,
		},
		Peers:     []domain.PeerView{},
		Aggregate: domain.Aggregate{SummaryText: domain.NoSummaryText, PDR: 1},
		At:        time.Now(),
	}
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot().Aggregate)
}

func (s *Server) handlePeersGeoJSON(w http.ResponseWriter, r *http.Request) {
	body, err := PeersGeoJSON(s.snapshot())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// ─── Operations ─────────────────────────────────────────────────────────────

func (s *Server) handleChecks(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, []health.Status{})
		return
	}
	if r.URL.Query().Get("refresh") != "" {
		s.checker.RunOnce(r.Context())
	}
	status := http.StatusOK
	if !s.checker.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, s.checker.Statuses())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusNotFound, "session history requires the sqlite log sink")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	rows, err := s.sessions.ListSessions(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []sqlite.SessionRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for local dashboards.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
