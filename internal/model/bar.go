package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// PriceBar represents one daily OHLCV bar for a single instrument.
type PriceBar struct {
	Date   time.Time `json:"date"`   // calendar day (UTC, midnight-aligned)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *PriceBar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// PriceSeries is a chronologically ordered sequence of daily bars,
// ascending by date. Calendar gaps (weekends, holidays) are fine;
// duplicate dates are not.
type PriceSeries []PriceBar

// Validate checks ordering and duplicate-date constraints. It does NOT
// enforce a minimum length — short history is an expected condition handled
// downstream, not a malformed series.
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s); i++ {
		prev := dateKey(s[i-1].Date)
		cur := dateKey(s[i].Date)
		if cur == prev {
			return fmt.Errorf("duplicate bar date %s at index %d", cur, i)
		}
		if s[i].Date.Before(s[i-1].Date) {
			return fmt.Errorf("bars out of order at index %d (%s after %s)", i, cur, prev)
		}
	}
	return nil
}

// Last returns the most recent bar. Callers must check IsEmpty first.
func (s PriceSeries) Last() PriceBar {
	return s[len(s)-1]
}

// IsEmpty reports whether the series has no bars.
func (s PriceSeries) IsEmpty() bool {
	return len(s) == 0
}

func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
