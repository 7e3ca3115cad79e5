package indicator

import (
	"strconv"

	"stockpulse/internal/model"
)

// SMA calculates the simple moving average of close over a rolling window.
type SMA struct {
	period int
	win    *window
}

// NewSMA creates an SMA pipeline with the given period.
func NewSMA(period int) *SMA {
	return &SMA{period: period, win: newWindow(period)}
}

func (s *SMA) Name() string { return "SMA_" + strconv.Itoa(s.period) }

func (s *SMA) Update(bar model.PriceBar) {
	s.win.push(bar.Close)
}

func (s *SMA) Value() float64 { return s.win.mean() }
func (s *SMA) Ready() bool    { return s.win.full() }
