package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Signal is the discrete directional classification assigned to an indicator.
type Signal string

const (
	SignalBullish Signal = "Bullish"
	SignalBearish Signal = "Bearish"
	SignalNeutral Signal = "Neutral"
)

// Indicator display names, in the order they appear in a snapshot.
const (
	IndicatorRSI         = "RSI"
	IndicatorMACD        = "MACD"
	IndicatorMA20VsMA50  = "MA20 vs MA50"
	IndicatorPriceVsMA50 = "Price vs MA50"
	IndicatorVolumeTrend = "Volume Trend"
)

// IndicatorEntry is one computed indicator: a display name, the formatted
// value string (numeric value(s) plus signal tag, e.g. "28.45 (Bullish)"),
// and the bare signal for programmatic use.
type IndicatorEntry struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Signal Signal `json:"signal"`
}

// Snapshot is the ordered result of a technical indicator computation for
// one symbol. Entry order is significant for display: RSI, MACD,
// MA20 vs MA50, Price vs MA50, Volume Trend. Indicators whose inputs were
// undefined are simply absent.
type Snapshot struct {
	Symbol  string           `json:"symbol"`
	AsOf    time.Time        `json:"as_of"`   // date of the last bar used
	Entries []IndicatorEntry `json:"entries"` // insertion order preserved
}

// IsEmpty reports whether no indicator could be computed.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Entries) == 0
}

// Get returns the formatted value for an indicator name, if present.
func (s *Snapshot) Get(name string) (string, bool) {
	for _, e := range s.Entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

// Indicators renders the entries as an ordered JSON object
// (name → formatted value), the shape the presentation layer consumes.
// encoding/json maps cannot preserve order, so the object is built by hand.
func (s *Snapshot) Indicators() json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s.Entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(e.Name)
		v, _ := json.Marshal(e.Value)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// Bias reduces the snapshot to one overall signal by majority vote across
// entries, ties resolved to Neutral. Used for flip alerting, not display.
func (s *Snapshot) Bias() Signal {
	var bull, bear int
	for _, e := range s.Entries {
		switch e.Signal {
		case SignalBullish:
			bull++
		case SignalBearish:
			bear++
		}
	}
	switch {
	case bull > bear:
		return SignalBullish
	case bear > bull:
		return SignalBearish
	default:
		return SignalNeutral
	}
}

// JSON returns the JSON-encoded snapshot.
func (s *Snapshot) JSON() []byte {
	out, _ := json.Marshal(s)
	return out
}

// PubSubChannel returns the Redis PubSub channel for this symbol's
// snapshot updates: "pub:technicals:{symbol}".
func (s *Snapshot) PubSubChannel() string {
	return "pub:technicals:" + s.Symbol
}
