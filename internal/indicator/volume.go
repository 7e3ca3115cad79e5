package indicator

import (
	"strconv"

	"stockpulse/internal/model"
)

// VolumeTrend compares the latest volume against its trailing rolling
// average, as a percentage deviation. A zero (or negative) average volume
// makes the percentage undefined — callers must check Defined, not Ready
// alone, before reading Value.
type VolumeTrend struct {
	period  int
	win     *window
	lastVol float64
}

// NewVolumeTrend creates a volume trend pipeline with the given period.
func NewVolumeTrend(period int) *VolumeTrend {
	return &VolumeTrend{period: period, win: newWindow(period)}
}

func (v *VolumeTrend) Name() string { return "VOL_" + strconv.Itoa(v.period) }

func (v *VolumeTrend) Update(bar model.PriceBar) {
	vol := float64(bar.Volume)
	v.win.push(vol)
	v.lastVol = vol
}

// Value returns the percentage deviation of the last volume from the
// rolling average: (last − avg) / avg × 100. Undefined unless Defined.
func (v *VolumeTrend) Value() float64 {
	avg := v.win.mean()
	return (v.lastVol - avg) / avg * 100
}

// Ready reports whether a full window of volumes has accumulated.
func (v *VolumeTrend) Ready() bool { return v.win.full() }

// Defined reports whether the percentage is computable: window full AND a
// strictly positive average volume to divide by.
func (v *VolumeTrend) Defined() bool {
	return v.win.full() && v.win.mean() > 0
}
