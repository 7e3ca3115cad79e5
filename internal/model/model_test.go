package model

import (
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestPriceSeries_Validate(t *testing.T) {
	ok := PriceSeries{
		{Date: day(2), Close: 100},
		{Date: day(3), Close: 101},
		{Date: day(6), Close: 102}, // weekend gap is fine
	}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid series rejected: %v", err)
	}

	dup := PriceSeries{
		{Date: day(2), Close: 100},
		{Date: day(2), Close: 101},
	}
	if err := dup.Validate(); err == nil {
		t.Error("duplicate dates must be rejected")
	}

	unordered := PriceSeries{
		{Date: day(3), Close: 100},
		{Date: day(2), Close: 101},
	}
	if err := unordered.Validate(); err == nil {
		t.Error("descending dates must be rejected")
	}

	if err := (PriceSeries{}).Validate(); err != nil {
		t.Errorf("empty series should validate: %v", err)
	}
}

func TestSnapshot_IndicatorsPreservesOrder(t *testing.T) {
	snap := Snapshot{
		Symbol: "SBIN",
		Entries: []IndicatorEntry{
			{Name: IndicatorRSI, Value: "28.45 (Bullish)", Signal: SignalBullish},
			{Name: IndicatorMACD, Value: "3.21 / 2.87 (Bullish)", Signal: SignalBullish},
			{Name: IndicatorVolumeTrend, Value: "15.30% (Bullish)", Signal: SignalBullish},
		},
	}

	got := string(snap.Indicators())
	want := `{"RSI":"28.45 (Bullish)","MACD":"3.21 / 2.87 (Bullish)","Volume Trend":"15.30% (Bullish)"}`
	if got != want {
		t.Errorf("ordered JSON mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestSnapshot_Bias(t *testing.T) {
	cases := []struct {
		signals []Signal
		want    Signal
	}{
		{[]Signal{SignalBullish, SignalBullish, SignalBearish}, SignalBullish},
		{[]Signal{SignalBearish, SignalBearish, SignalBullish}, SignalBearish},
		{[]Signal{SignalBullish, SignalBearish}, SignalNeutral},
		{[]Signal{SignalNeutral, SignalNeutral}, SignalNeutral},
		{nil, SignalNeutral},
	}
	for i, c := range cases {
		snap := Snapshot{}
		for _, s := range c.signals {
			snap.Entries = append(snap.Entries, IndicatorEntry{Signal: s})
		}
		if got := snap.Bias(); got != c.want {
			t.Errorf("case %d: Bias() = %s, want %s", i, got, c.want)
		}
	}
}
