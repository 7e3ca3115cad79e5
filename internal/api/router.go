// Package api provides the HTTP surface: snapshot reads, bar ingestion,
// manual refresh, health, and the WebSocket stream.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"stockpulse/internal/gateway"
	"stockpulse/internal/metrics"
	"stockpulse/internal/store/redis"
	"stockpulse/internal/store/sqlite"
)

// Refresher recomputes and republishes the snapshot for one symbol.
// Implemented by the service orchestrator.
type Refresher interface {
	RefreshSymbol(ctx context.Context, symbol string) error
}

// Server bundles the REST + WS endpoints on one listener.
type Server struct {
	store     *sqlite.Store
	cache     *redis.Cache
	hub       *gateway.Hub
	met       *metrics.Metrics
	health    *metrics.HealthStatus
	refresher Refresher

	mux  *http.ServeMux
	http *http.Server
}

// New constructs the API server. cache, hub, met, health, and refresher may
// each be nil; the corresponding endpoints degrade or return 503.
func New(addr string, store *sqlite.Store, cache *redis.Cache, hub *gateway.Hub,
	met *metrics.Metrics, health *metrics.HealthStatus, refresher Refresher) *Server {

	s := &Server{
		store:     store,
		cache:     cache,
		hub:       hub,
		met:       met,
		health:    health,
		refresher: refresher,
		mux:       http.NewServeMux(),
	}
	s.routes()
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/technicals/", s.handleTechnicals)
	s.mux.HandleFunc("/api/v1/bars/", s.handleBars)
	s.mux.HandleFunc("/api/v1/refresh/", s.handleRefresh)
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	if s.hub != nil {
		s.mux.HandleFunc("/ws", s.hub.HandleWS)
	}
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start begins serving in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[api] listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) {
	if err := s.http.Shutdown(ctx); err != nil {
		log.Printf("[api] shutdown error: %v", err)
	}
}
