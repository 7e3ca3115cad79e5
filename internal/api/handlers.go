package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"stockpulse/internal/model"
)

// setCORS sets CORS headers for REST endpoints.
func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// symbolFromPath extracts the trailing symbol from e.g.
// /api/v1/technicals/SBIN. Returns "" if missing.
func symbolFromPath(path, prefix string) string {
	sym := strings.TrimPrefix(path, prefix)
	sym = strings.Trim(sym, "/")
	if sym == "" || strings.ContainsRune(sym, '/') {
		return ""
	}
	return strings.ToUpper(sym)
}

// handleTechnicals serves GET /api/v1/technicals/{symbol}.
// Reads the cached snapshot first and falls back to SQLite when the cache
// misses or the breaker is open.
func (s *Server) handleTechnicals(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	symbol := symbolFromPath(r.URL.Path, "/api/v1/technicals/")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}

	if s.cache != nil {
		snap, err := s.cache.GetLatest(r.Context(), symbol)
		if err != nil {
			log.Printf("[api] cache read failed for %s: %v", symbol, err)
		} else if snap != nil {
			writeJSON(w, http.StatusOK, snap)
			return
		}
	}

	snap, err := s.store.LatestSnapshot(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "snapshot lookup failed")
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "no snapshot for "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleBars serves GET and POST /api/v1/bars/{symbol}.
// POST accepts a JSON array of daily bars and upserts them; it is an
// administrative write path, not a market data feed.
func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	symbol := symbolFromPath(r.URL.Path, "/api/v1/bars/")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		series, err := s.store.ReadBars(r.Context(), symbol)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "bar lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, series)

	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, 8<<20)
		var bars model.PriceSeries
		if err := json.NewDecoder(r.Body).Decode(&bars); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
		if len(bars) == 0 {
			writeError(w, http.StatusBadRequest, "empty bar list")
			return
		}
		if err := bars.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.store.WriteBars(r.Context(), symbol, bars); err != nil {
			writeError(w, http.StatusInternalServerError, "bar write failed")
			return
		}
		if s.met != nil {
			s.met.BarsIngested.Add(float64(len(bars)))
		}
		log.Printf("[api] ingested %d bars for %s", len(bars), symbol)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"symbol": symbol,
			"bars":   len(bars),
		})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleRefresh serves POST /api/v1/refresh/{symbol}: recompute the snapshot
// from stored bars immediately instead of waiting for the schedule.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	symbol := symbolFromPath(r.URL.Path, "/api/v1/refresh/")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh unavailable")
		return
	}

	start := time.Now()
	if err := s.refresher.RefreshSymbol(r.Context(), symbol); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"symbol":      symbol,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// handleHealth serves GET /api/v1/health, delegating to the shared health
// status when wired.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if s.health != nil {
		s.health.ServeHTTP(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
