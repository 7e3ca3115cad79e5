package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"stockpulse/internal/model"
	"stockpulse/internal/store/sqlite"
)

func newTestServer(t *testing.T, refresher Refresher) (*Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "api_test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(":0", store, nil, nil, nil, nil, refresher), store
}

func barsJSON(t *testing.T, n int) []byte {
	t.Helper()
	bars := make(model.PriceSeries, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		px := 100.0 + float64(i)
		bars[i] = model.PriceBar{
			Date: base.AddDate(0, 0, i),
			Open: px, High: px + 1, Low: px - 1, Close: px,
			Volume: 1000,
		}
	}
	out, err := json.Marshal(bars)
	if err != nil {
		t.Fatalf("marshal bars: %v", err)
	}
	return out
}

func TestBarsIngestAndReadBack(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest("POST", "/api/v1/bars/sbin", bytes.NewReader(barsJSON(t, 5)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Symbol is uppercased on the way in.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/bars/SBIN", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("read status = %d", rec.Code)
	}
	var got model.PriceSeries
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d bars, want 5", len(got))
	}
	if got[4].Close != 104 {
		t.Errorf("last close = %v, want 104", got[4].Close)
	}
}

func TestBarsIngestRejectsDuplicateDates(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	d := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bars := model.PriceSeries{
		{Date: d, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Date: d, Open: 2, High: 2, Low: 2, Close: 2, Volume: 1},
	}
	body, _ := json.Marshal(bars)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/bars/TCS", bytes.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTechnicalsNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/technicals/INFY", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestTechnicalsFallsBackToSQLite(t *testing.T) {
	srv, store := newTestServer(t, nil)

	snap := &model.Snapshot{
		Symbol: "INFY",
		AsOf:   time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
		Entries: []model.IndicatorEntry{
			{Name: model.IndicatorRSI, Value: "28.45 (Bullish)", Signal: model.SignalBullish},
		},
	}
	if err := store.SaveSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/technicals/INFY", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got model.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v, ok := got.Get(model.IndicatorRSI); !ok || v != "28.45 (Bullish)" {
		t.Errorf("RSI entry = %q, %v", v, ok)
	}
}

type stubRefresher struct {
	calls []string
	err   error
}

func (s *stubRefresher) RefreshSymbol(_ context.Context, symbol string) error {
	s.calls = append(s.calls, symbol)
	return s.err
}

func TestRefreshEndpoint(t *testing.T) {
	stub := &stubRefresher{}
	srv, _ := newTestServer(t, stub)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/refresh/reliance", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(stub.calls) != 1 || stub.calls[0] != "RELIANCE" {
		t.Fatalf("refresher calls = %v", stub.calls)
	}

	stub.err = errors.New("no bars")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/refresh/RELIANCE", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestRefreshUnavailableWithoutRefresher(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/refresh/SBIN", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, tc := range []struct{ method, path string }{
		{"DELETE", "/api/v1/bars/SBIN"},
		{"POST", "/api/v1/technicals/SBIN"},
		{"GET", "/api/v1/refresh/SBIN"},
	} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: status = %d, want 405", tc.method, tc.path, rec.Code)
		}
	}
}

func TestSymbolRequired(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, path := range []string{
		"/api/v1/technicals/",
		"/api/v1/bars/",
	} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestHealthWithoutStatus(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
}
