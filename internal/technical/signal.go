package technical

import "stockpulse/internal/model"

// Fixed classification thresholds.
const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0
	volBandPct    = 10.0
)

// classifyRSI maps an RSI value to a signal: oversold is a reversal setup
// (Bullish), overbought is Bearish, the middle band is Neutral.
func classifyRSI(v float64) model.Signal {
	switch {
	case v < rsiOversold:
		return model.SignalBullish
	case v > rsiOverbought:
		return model.SignalBearish
	default:
		return model.SignalNeutral
	}
}

// classifyAbove is the strict two-way comparison used by MACD and the
// moving-average indicators: a > b is Bullish, anything else (including
// exact equality) is Bearish. There is no Neutral state.
func classifyAbove(a, b float64) model.Signal {
	if a > b {
		return model.SignalBullish
	}
	return model.SignalBearish
}

// classifyVolume maps a volume deviation percentage to a signal. Bullish is
// checked first, then the symmetric band: both +10 and −10 land in Neutral,
// so exactly one branch applies for every real value.
func classifyVolume(pct float64) model.Signal {
	switch {
	case pct > volBandPct:
		return model.SignalBullish
	case pct >= -volBandPct:
		return model.SignalNeutral
	default:
		return model.SignalBearish
	}
}
