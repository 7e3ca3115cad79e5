package indicator

import (
	"strconv"

	"stockpulse/internal/model"
)

// EMA calculates an exponential moving average of close with the smoothing
// factor derived from a span: alpha = 2/(span+1). The first observation
// seeds the average directly (no bias adjustment), so the value is defined
// from the first bar onward — there is no warm-up gap in this scheme.
type EMA struct {
	span    int
	alpha   float64
	current float64
	seeded  bool
}

// NewEMA creates an EMA pipeline with the given span.
func NewEMA(span int) *EMA {
	return &EMA{
		span:  span,
		alpha: 2.0 / float64(span+1),
	}
}

func (e *EMA) Name() string { return "EMA_" + strconv.Itoa(e.span) }

func (e *EMA) Update(bar model.PriceBar) {
	e.Feed(bar.Close)
}

// Feed advances the average with a raw value. Exposed so MACD can run an
// EMA over its own line rather than over bar closes.
func (e *EMA) Feed(v float64) {
	if !e.seeded {
		e.current = v
		e.seeded = true
		return
	}
	e.current = e.alpha*v + (1-e.alpha)*e.current
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.seeded }
