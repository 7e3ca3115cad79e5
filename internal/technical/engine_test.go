package technical

import (
	"bytes"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"stockpulse/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func mkSeries(closes []float64, volumes []int64) model.PriceSeries {
	start := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	series := make(model.PriceSeries, len(closes))
	for i, c := range closes {
		var vol int64 = 1_000_000
		if volumes != nil {
			vol = volumes[i]
		}
		series[i] = model.PriceBar{
			Date:  start.AddDate(0, 0, i),
			Open:  c, High: c + 1, Low: c - 1, Close: c,
			Volume: vol,
		}
	}
	return series
}

func constSeries(n int, close float64) model.PriceSeries {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = close
	}
	return mkSeries(closes, nil)
}

func risingSeries(n int) model.PriceSeries {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return mkSeries(closes, nil)
}

func fallingSeries(n int) model.PriceSeries {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	return mkSeries(closes, nil)
}

func entrySignal(t *testing.T, snap model.Snapshot, name string) model.Signal {
	t.Helper()
	for _, e := range snap.Entries {
		if e.Name == name {
			return e.Signal
		}
	}
	t.Fatalf("indicator %q missing from snapshot", name)
	return ""
}

// ────────────────────────────────────────────────────────────
// Gate + determinism
// ────────────────────────────────────────────────────────────

func TestCompute_InsufficientDataIsEmpty(t *testing.T) {
	engine := NewEngine(nil)

	for _, n := range []int{0, 1, 10, 19} {
		snap := engine.Compute("SBIN", risingSeries(n))
		if !snap.IsEmpty() {
			t.Errorf("%d bars: expected empty snapshot, got %d entries", n, len(snap.Entries))
		}
	}

	// 20 bars is the minimum that produces anything.
	snap := engine.Compute("SBIN", risingSeries(20))
	if snap.IsEmpty() {
		t.Error("20 bars: expected a non-empty snapshot")
	}
}

func TestCompute_Deterministic(t *testing.T) {
	engine := NewEngine(nil)
	series := mkSeries(
		[]float64{100, 98, 103, 99, 105, 101, 107, 102, 110, 104, 111, 106, 113, 108, 114, 109, 116, 111, 118, 113, 120, 115, 122, 117},
		nil,
	)

	a := engine.Compute("TCS", series)
	b := engine.Compute("TCS", series)
	if !bytes.Equal(a.JSON(), b.JSON()) {
		t.Errorf("same input produced different output:\n%s\n%s", a.JSON(), b.JSON())
	}
}

// ────────────────────────────────────────────────────────────
// Entry ordering + omission
// ────────────────────────────────────────────────────────────

func TestCompute_EntryOrder(t *testing.T) {
	engine := NewEngine(nil)
	snap := engine.Compute("INFY", risingSeries(60))

	want := []string{
		model.IndicatorRSI,
		model.IndicatorMACD,
		model.IndicatorMA20VsMA50,
		model.IndicatorPriceVsMA50,
		model.IndicatorVolumeTrend,
	}
	if len(snap.Entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(snap.Entries))
	}
	for i, name := range want {
		if snap.Entries[i].Name != name {
			t.Errorf("entry %d: expected %q, got %q", i, name, snap.Entries[i].Name)
		}
	}
}

func TestCompute_49BarsOmitsMovingAverages(t *testing.T) {
	// 49 bars: RSI, MACD and Volume Trend are computable, but both MA
	// indicators need the 50-bar window and must be absent together.
	engine := NewEngine(nil)
	snap := engine.Compute("SBIN", risingSeries(49))

	for _, name := range []string{model.IndicatorRSI, model.IndicatorMACD, model.IndicatorVolumeTrend} {
		if _, ok := snap.Get(name); !ok {
			t.Errorf("expected %q to be present at 49 bars", name)
		}
	}
	for _, name := range []string{model.IndicatorMA20VsMA50, model.IndicatorPriceVsMA50} {
		if _, ok := snap.Get(name); ok {
			t.Errorf("expected %q to be omitted at 49 bars", name)
		}
	}
}

func TestCompute_ZeroVolumeOmitsVolumeTrend(t *testing.T) {
	closes := make([]float64, 25)
	volumes := make([]int64, 25)
	for i := range closes {
		closes[i] = 100 + float64(i%3)
	}
	engine := NewEngine(nil)
	snap := engine.Compute("IDEA", mkSeries(closes, volumes))

	if _, ok := snap.Get(model.IndicatorVolumeTrend); ok {
		t.Error("zero average volume must omit the Volume Trend indicator")
	}
	if _, ok := snap.Get(model.IndicatorRSI); !ok {
		t.Error("RSI should still be present")
	}
}

// ────────────────────────────────────────────────────────────
// Classification behavior
// ────────────────────────────────────────────────────────────

func TestCompute_MonotonicExtremes(t *testing.T) {
	engine := NewEngine(nil)

	up := engine.Compute("UP", risingSeries(40))
	if sig := entrySignal(t, up, model.IndicatorRSI); sig != model.SignalBearish {
		t.Errorf("strictly rising series: RSI should be overbought/Bearish, got %s", sig)
	}

	down := engine.Compute("DOWN", fallingSeries(40))
	if sig := entrySignal(t, down, model.IndicatorRSI); sig != model.SignalBullish {
		t.Errorf("strictly falling series: RSI should be oversold/Bullish, got %s", sig)
	}
}

func TestCompute_FlatSeriesScenario(t *testing.T) {
	// 60 bars, close pinned at 100.0, volume pinned at 1,000,000:
	//   RSI sits at the 50 midpoint → Neutral
	//   MACD lines are both 0 → equal is NOT ">", so Bearish
	//   MA20 == MA50 == 100 → Bearish
	//   price == MA50 → Bearish
	//   volume deviation 0% → Neutral
	engine := NewEngine(nil)
	snap := engine.Compute("FLAT", constSeries(60, 100.0))

	cases := []struct {
		name  string
		value string
	}{
		{model.IndicatorRSI, "50.00 (Neutral)"},
		{model.IndicatorMACD, "0.00 / 0.00 (Bearish)"},
		{model.IndicatorMA20VsMA50, "100.00 / 100.00 (Bearish)"},
		{model.IndicatorPriceVsMA50, "100.00 vs 100.00 (Bearish)"},
		{model.IndicatorVolumeTrend, "0.00% (Neutral)"},
	}
	for _, c := range cases {
		got, ok := snap.Get(c.name)
		if !ok {
			t.Errorf("%s: missing", c.name)
			continue
		}
		if got != c.value {
			t.Errorf("%s: got %q, want %q", c.name, got, c.value)
		}
	}
}

func TestCompute_RSIBounds(t *testing.T) {
	engine := NewEngine(nil)
	seriesSet := []model.PriceSeries{
		risingSeries(25),
		fallingSeries(25),
		mkSeries([]float64{100, 90, 110, 95, 120, 85, 130, 100, 105, 98, 102, 99, 101, 97, 115, 92, 108, 96, 112, 94, 118, 91}, nil),
	}
	for i, series := range seriesSet {
		snap := engine.Compute("X", series)
		raw, ok := snap.Get(model.IndicatorRSI)
		if !ok {
			t.Fatalf("series %d: RSI missing", i)
		}
		v, err := leadingValue(raw)
		if err != nil {
			t.Fatalf("series %d: cannot parse RSI value from %q: %v", i, raw, err)
		}
		if math.IsNaN(v) || v < 0 || v > 100 {
			t.Errorf("series %d: RSI out of [0,100]: %v", i, v)
		}
	}
}

func TestCompute_RecoversFromPipelineFailure(t *testing.T) {
	var buf bytes.Buffer
	engine := NewEngine(slog.New(slog.NewJSONHandler(&buf, nil)))
	// A broken pipeline setup panics mid-computation; Compute must degrade
	// to an empty snapshot instead of unwinding into the caller.
	engine.setup = func() *pipelines { return nil }

	snap := engine.Compute("SBIN", risingSeries(60))
	if !snap.IsEmpty() {
		t.Fatalf("expected empty snapshot after internal failure, got %d entries", len(snap.Entries))
	}
	if snap.Symbol != "SBIN" {
		t.Errorf("symbol = %q, want SBIN", snap.Symbol)
	}
	if !snap.AsOf.IsZero() {
		t.Errorf("as_of should be zeroed on failure, got %v", snap.AsOf)
	}
	if !strings.Contains(buf.String(), "technical computation failed") {
		t.Errorf("failure not logged: %s", buf.String())
	}
}

// leadingValue parses the numeric head of a formatted indicator string,
// e.g. "28.45 (Bullish)" → 28.45, "15.30% (Bullish)" → 15.30.
func leadingValue(s string) (float64, error) {
	head := strings.Fields(s)[0]
	head = strings.TrimSuffix(head, "%")
	return strconv.ParseFloat(head, 64)
}
