// Package indicator provides the rolling and exponential computations that
// feed the technical snapshot engine.
//
// Each pipeline consumes daily bars one at a time via Update and exposes its
// current value. Update is O(1) per bar — windowed pipelines use a
// preallocated circular buffer, exponential ones keep a single accumulator.
// Pipelines report Ready only once their lookback window is fully populated;
// values read before that are undefined and must not be used.
package indicator

import "stockpulse/internal/model"

// Pipeline is the interface shared by all indicator computations.
type Pipeline interface {
	// Name returns the pipeline name (e.g., "SMA_20", "RSI_14").
	Name() string

	// Update feeds the next daily bar and recalculates.
	Update(bar model.PriceBar)

	// Value returns the current value. Undefined until Ready.
	Value() float64

	// Ready reports whether enough bars have been fed for Value to be defined.
	Ready() bool
}

// window is a fixed-size rolling window with an incrementally maintained sum.
// Shared by the SMA and volume pipelines.
type window struct {
	buf   []float64
	idx   int
	count int
	sum   float64
}

func newWindow(size int) *window {
	return &window{buf: make([]float64, size)}
}

// push adds a value, evicting the oldest once the window is full.
func (w *window) push(v float64) {
	if w.count >= len(w.buf) {
		w.sum -= w.buf[w.idx]
	}
	w.buf[w.idx] = v
	w.sum += v
	w.idx = (w.idx + 1) % len(w.buf)
	w.count++
}

// full reports whether the window holds size values.
func (w *window) full() bool {
	return w.count >= len(w.buf)
}

// mean returns the average of the values currently in the window.
// Undefined until full.
func (w *window) mean() float64 {
	return w.sum / float64(len(w.buf))
}
