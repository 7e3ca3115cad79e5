package indicator

import (
	"strconv"

	"stockpulse/internal/model"
)

// MACD calculates Moving Average Convergence-Divergence: the difference
// between a short and a long EMA of close, plus a signal line that is an
// EMA of that difference. All three EMAs seed from their first input, so
// both lines are defined from the first bar onward.
type MACD struct {
	short  *EMA
	long   *EMA
	signal *EMA
}

// NewMACD creates a MACD pipeline with the given spans (typically 12,26,9).
func NewMACD(shortSpan, longSpan, signalSpan int) *MACD {
	return &MACD{
		short:  NewEMA(shortSpan),
		long:   NewEMA(longSpan),
		signal: NewEMA(signalSpan),
	}
}

func (m *MACD) Name() string {
	return "MACD_" + strconv.Itoa(m.short.span) + "_" + strconv.Itoa(m.long.span) + "_" + strconv.Itoa(m.signal.span)
}

func (m *MACD) Update(bar model.PriceBar) {
	m.short.Update(bar)
	m.long.Update(bar)
	m.signal.Feed(m.short.Value() - m.long.Value())
}

// Value returns the MACD line. Undefined until Ready.
func (m *MACD) Value() float64 { return m.Line() }

// Line returns the MACD line (short EMA − long EMA).
func (m *MACD) Line() float64 { return m.short.Value() - m.long.Value() }

// SignalLine returns the smoothed signal line.
func (m *MACD) SignalLine() float64 { return m.signal.Value() }

func (m *MACD) Ready() bool { return m.signal.Ready() }
