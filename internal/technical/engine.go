// Package technical implements the technical indicator engine: given a
// chronologically ordered daily price series it computes RSI, MACD, moving
// average and volume-trend indicators and classifies each into a discrete
// Bullish/Bearish/Neutral signal.
//
// The engine is a pure function of its input series — no clock, no I/O, no
// state shared across calls — so concurrent callers may use one Engine on
// distinct series without coordination. Insufficient data is never an
// error: the result simply omits whatever could not be computed, down to an
// empty snapshot.
package technical

import (
	"fmt"
	"log/slog"

	"stockpulse/internal/indicator"
	"stockpulse/internal/model"
)

// Lookback windows and spans. minBars is the shortest rolling window any
// indicator needs; series below it short-circuit to an empty snapshot.
const (
	minBars = 20

	rsiPeriod = 14

	macdShortSpan  = 12
	macdLongSpan   = 26
	macdSignalSpan = 9

	maShortPeriod = 20
	maLongPeriod  = 50

	volumePeriod = 20
)

// Engine computes technical snapshots from daily bar history.
type Engine struct {
	log   *slog.Logger
	setup func() *pipelines // pipeline constructor, swappable in tests
}

// NewEngine creates an engine. A nil logger falls back to slog's default.
func NewEngine(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{log: log, setup: newPipelines}
}

// pipelines is the indicator set one Compute call feeds and drains.
type pipelines struct {
	rsi     *indicator.RSI
	macd    *indicator.MACD
	maShort *indicator.SMA
	maLong  *indicator.SMA
	volume  *indicator.VolumeTrend
}

func newPipelines() *pipelines {
	return &pipelines{
		rsi:     indicator.NewRSI(rsiPeriod),
		macd:    indicator.NewMACD(macdShortSpan, macdLongSpan, macdSignalSpan),
		maShort: indicator.NewSMA(maShortPeriod),
		maLong:  indicator.NewSMA(maLongPeriod),
		volume:  indicator.NewVolumeTrend(volumePeriod),
	}
}

// all returns the set in update order.
func (p *pipelines) all() []indicator.Pipeline {
	return []indicator.Pipeline{p.rsi, p.macd, p.maShort, p.maLong, p.volume}
}

// Compute derives the full indicator snapshot for one symbol's series.
//
// The returned snapshot holds up to five entries in display order: RSI,
// MACD, MA20 vs MA50, Price vs MA50, Volume Trend. An indicator whose
// lookback window is unmet, or whose inputs are degenerate (zero average
// volume), is absent — never present with a placeholder. Any unexpected
// computation failure is logged and degrades to an empty snapshot rather
// than propagating to the caller.
func (e *Engine) Compute(symbol string, series model.PriceSeries) (snap model.Snapshot) {
	snap = model.Snapshot{Symbol: symbol}

	// Names the pipeline that was mid-update if a panic unwinds, "" during
	// assembly or setup.
	var updating string
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("technical computation failed, returning empty snapshot",
				slog.String("symbol", symbol),
				slog.Int("bars", len(series)),
				slog.String("pipeline", updating),
				slog.String("panic", fmt.Sprint(r)),
			)
			snap = model.Snapshot{Symbol: symbol}
		}
	}()

	if len(series) < minBars {
		return snap
	}
	snap.AsOf = series.Last().Date

	ps := e.setup()
	for _, bar := range series {
		for _, p := range ps.all() {
			updating = p.Name()
			p.Update(bar)
		}
	}
	updating = ""

	rsi, macd, maShort, maLong, volume := ps.rsi, ps.macd, ps.maShort, ps.maLong, ps.volume

	if rsi.Ready() {
		v := rsi.Value()
		sig := classifyRSI(v)
		snap.Entries = append(snap.Entries, model.IndicatorEntry{
			Name:   model.IndicatorRSI,
			Value:  fmt.Sprintf("%.2f (%s)", v, sig),
			Signal: sig,
		})
	}

	if macd.Ready() {
		line, signalLine := macd.Line(), macd.SignalLine()
		sig := classifyAbove(line, signalLine)
		snap.Entries = append(snap.Entries, model.IndicatorEntry{
			Name:   model.IndicatorMACD,
			Value:  fmt.Sprintf("%.2f / %.2f (%s)", line, signalLine, sig),
			Signal: sig,
		})
	}

	// Both MA indicators hinge on the long window: with fewer than 50 bars
	// neither is emitted, even though MA20 alone would be computable.
	if maShort.Ready() && maLong.Ready() {
		ma20, ma50 := maShort.Value(), maLong.Value()

		sig := classifyAbove(ma20, ma50)
		snap.Entries = append(snap.Entries, model.IndicatorEntry{
			Name:   model.IndicatorMA20VsMA50,
			Value:  fmt.Sprintf("%.2f / %.2f (%s)", ma20, ma50, sig),
			Signal: sig,
		})

		price := series.Last().Close
		sig = classifyAbove(price, ma50)
		snap.Entries = append(snap.Entries, model.IndicatorEntry{
			Name:   model.IndicatorPriceVsMA50,
			Value:  fmt.Sprintf("%.2f vs %.2f (%s)", price, ma50, sig),
			Signal: sig,
		})
	}

	if volume.Defined() {
		pct := volume.Value()
		sig := classifyVolume(pct)
		snap.Entries = append(snap.Entries, model.IndicatorEntry{
			Name:   model.IndicatorVolumeTrend,
			Value:  fmt.Sprintf("%.2f%% (%s)", pct, sig),
			Signal: sig,
		})
	}

	return snap
}
