package indicator

import (
	"math"

	"github.com/newthinker/confluence/internal/core"
)

// Pattern is a classified candlestick formation on the latest bars
type Pattern struct {
	Name      string          `json:"name"`
	Direction core.SignalType `json:"direction"`
	Strength  int             `json:"strength"`
}

const (
	momentumBodyPct   = 0.7
	momentumRangeMult = 1.5
	momentumLookback  = 10
)

type candleParts struct {
	body, upper, lower float64
}

func split(b core.Bar) candleParts {
	return candleParts{
		body:  b.Body(),
		upper: b.High - math.Max(b.Open, b.Close),
		lower: math.Min(b.Open, b.Close) - b.Low,
	}
}

// DetectPattern classifies the latest 1-3 bars. The first match in priority order wins.
func DetectPattern(bars []core.Bar) (Pattern, bool) {
	n := len(bars)
	if n == 0 {
		return Pattern{}, false
	}
	cur := bars[n-1]
	cp := split(cur)

	if n >= 2 {
		prev := bars[n-2]
		if prev.IsBearish() && cur.IsBullish() &&
			cur.Open <= prev.Close && cur.Close >= prev.Open && cur.Body() > prev.Body() {
			return Pattern{Name: "Bullish engulfing", Direction: core.Bullish, Strength: 3}, true
		}
		if prev.IsBullish() && cur.IsBearish() &&
			cur.Open >= prev.Close && cur.Close <= prev.Open && cur.Body() > prev.Body() {
			return Pattern{Name: "Bearish engulfing", Direction: core.Bearish, Strength: 3}, true
		}
	}

	if cp.body > 0 && cp.lower > cp.body*2 && cp.upper < cp.body*0.5 && cur.IsBullish() {
		return Pattern{Name: "Hammer", Direction: core.Bullish, Strength: 3}, true
	}
	if cp.body > 0 && cp.upper > cp.body*2 && cp.lower < cp.body*0.5 && cur.IsBearish() {
		return Pattern{Name: "Shooting star", Direction: core.Bearish, Strength: 3}, true
	}

	if n > momentumLookback && cur.Range() > 0 {
		var sum float64
		for _, b := range bars[n-1-momentumLookback : n-1] {
			sum += b.Range()
		}
		avg := sum / momentumLookback
		if cp.body >= cur.Range()*momentumBodyPct && cur.Range() >= avg*momentumRangeMult {
			if cur.IsBullish() {
				return Pattern{Name: "Strong bullish candle", Direction: core.Bullish, Strength: 2}, true
			}
			if cur.IsBearish() {
				return Pattern{Name: "Strong bearish candle", Direction: core.Bearish, Strength: 2}, true
			}
		}
	}

	if n >= 3 {
		a, b, c := bars[n-3], bars[n-2], bars[n-1]
		if a.IsBullish() && b.IsBullish() && c.IsBullish() && c.Close > b.Close && b.Close > a.Close {
			return Pattern{Name: "Three white soldiers", Direction: core.Bullish, Strength: 2}, true
		}
		if a.IsBearish() && b.IsBearish() && c.IsBearish() && c.Close < b.Close && b.Close < a.Close {
			return Pattern{Name: "Three black crows", Direction: core.Bearish, Strength: 2}, true
		}
	}

	return Pattern{}, false
}
