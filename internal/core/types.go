package core

import (
	"fmt"
	"math"
	"time"
)

// Bar represents one OHLCV candle
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// IsBullish reports whether the candle closed above its open
func (b Bar) IsBullish() bool {
	return b.Close > b.Open
}

// IsBearish reports whether the candle closed below its open
func (b Bar) IsBearish() bool {
	return b.Close < b.Open
}

// Range returns high minus low
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Body returns the absolute open-to-close distance
func (b Bar) Body() float64 {
	return math.Abs(b.Close - b.Open)
}

// TypicalPrice returns (high+low+close)/3
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Bias is the directional classification of an analysis
type Bias string

const (
	BiasLong    Bias = "LONG"
	BiasShort   Bias = "SHORT"
	BiasNeutral Bias = "NEUTRAL"
)

// Opposite returns the reverse direction; NEUTRAL stays NEUTRAL
func (b Bias) Opposite() Bias {
	switch b {
	case BiasLong:
		return BiasShort
	case BiasShort:
		return BiasLong
	default:
		return BiasNeutral
	}
}

// ParseBias converts a string into a Bias. Unknown values map to NEUTRAL.
func ParseBias(s string) Bias {
	switch Bias(s) {
	case BiasLong, BiasShort:
		return Bias(s)
	default:
		return BiasNeutral
	}
}

// SignalType tags an individual scoring signal
type SignalType string

const (
	Bullish SignalType = "bullish"
	Bearish SignalType = "bearish"
	Neutral SignalType = "neutral"
)

// Closes extracts close prices
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts high prices
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts low prices
func Lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// Volumes extracts volumes
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// ValidateBars checks the ordering and sanity preconditions of a bar series.
// Zero timestamps are accepted (synthetic series) and skip the ordering check.
func ValidateBars(bars []Bar) error {
	if len(bars) == 0 {
		return ErrNoData
	}

	for i, b := range bars {
		for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return WrapError(ErrInvalidBars, fmt.Errorf("bar %d has a non-finite value", i))
			}
		}
		if b.High < b.Low {
			return WrapError(ErrInvalidBars, fmt.Errorf("bar %d has high %.8f below low %.8f", i, b.High, b.Low))
		}
		if b.Volume < 0 {
			return WrapError(ErrInvalidBars, fmt.Errorf("bar %d has negative volume", i))
		}
		if i > 0 && !b.Time.IsZero() && !bars[i-1].Time.IsZero() && !b.Time.After(bars[i-1].Time) {
			return WrapError(ErrInvalidBars, fmt.Errorf("bar %d at %s is not after %s",
				i, b.Time.Format(time.RFC3339), bars[i-1].Time.Format(time.RFC3339)))
		}
	}

	return nil
}
