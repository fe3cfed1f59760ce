// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guarzo/wanderer-notifier-sub002/internal/cache"
	"github.com/guarzo/wanderer-notifier-sub002/internal/logging"
)

// ServerConfig holds HTTP surface configuration.
type ServerConfig struct {
	Addr              string
	RequestsPerMinute int
}

// Server exposes the read-only health-check surface: liveness, readiness,
// the full status snapshot, and Prometheus metrics.
type Server struct {
	cfg     ServerConfig
	monitor *Monitor
	store   *cache.Store
	history *cache.History
	httpSrv *http.Server
}

// NewServer creates the health server. store and history may be nil in tests.
func NewServer(cfg ServerConfig, monitor *Monitor, store *cache.Store, history *cache.History) *Server {
	s := &Server{
		cfg:     cfg,
		monitor: monitor,
		store:   store,
		history: history,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))
	if cfg.RequestsPerMinute > 0 {
		r.Use(httprate.LimitByIP(cfg.RequestsPerMinute, time.Minute))
	}

	r.Get("/healthz", s.handleLiveness)
	r.Get("/readyz", s.handleReadiness)
	r.Get("/api/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router, for httptest use.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Serve runs the HTTP server until the context is canceled. Implements
// suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()

	logging.Info().Str("addr", s.cfg.Addr).Msg("health server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"live": true})
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	snap := s.monitor.Snapshot()
	status := http.StatusOK
	if !snap.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]bool{"ready": snap.Ready})
}

// statusResponse is the full status payload.
type statusResponse struct {
	Snapshot
	CacheRegions []cache.RegionStats `json:"cache_regions,omitempty"`
	History      []cache.Sample      `json:"recent_operations,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{Snapshot: s.monitor.Snapshot()}
	if s.store != nil {
		resp.CacheRegions = s.store.Stats()
	}
	if s.history != nil {
		resp.History = s.history.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Err(err).Msg("encode status response")
	}
}
