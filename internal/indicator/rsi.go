package indicator

import (
	"strconv"

	"stockpulse/internal/model"
)

// lossEpsilon replaces a zero average loss in the RS denominator so a
// one-sided series yields an RSI that approaches but never reaches 100,
// instead of dividing by zero.
const lossEpsilon = 1e-9

// RSI calculates the Relative Strength Index from simple rolling means of
// gains and losses over the period (not Wilder smoothing): each close-to-
// close delta is split into gain = max(delta,0) and loss = max(-delta,0),
// and RS is the ratio of their trailing-window averages.
type RSI struct {
	period    int
	count     int
	prevClose float64
	gains     *window
	losses    *window
}

// NewRSI creates an RSI pipeline with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{
		period: period,
		gains:  newWindow(period),
		losses: newWindow(period),
	}
}

func (r *RSI) Name() string { return "RSI_" + strconv.Itoa(r.period) }

func (r *RSI) Update(bar model.PriceBar) {
	r.count++
	if r.count == 1 {
		// First bar — no delta yet
		r.prevClose = bar.Close
		return
	}

	delta := bar.Close - r.prevClose
	r.prevClose = bar.Close

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}
	r.gains.push(gain)
	r.losses.push(loss)
}

// Value returns the current RSI on [0,100). Undefined until Ready.
func (r *RSI) Value() float64 {
	avgGain := r.gains.mean()
	avgLoss := r.losses.mean()
	if avgGain == 0 && avgLoss == 0 {
		return 50 // completely flat window
	}
	if avgLoss == 0 {
		avgLoss = lossEpsilon
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Ready reports whether a full window of deltas has accumulated
// (period+1 bars).
func (r *RSI) Ready() bool { return r.gains.full() }
