package indicator

import "github.com/newthinker/confluence/internal/core"

// Trend classifies swing structure
type Trend string

const (
	Uptrend   Trend = "uptrend"
	Downtrend Trend = "downtrend"
	Ranging   Trend = "ranging"
)

// Swing is a confirmed local extremum
type Swing struct {
	Index int     `json:"index"`
	Price float64 `json:"price"`
}

// Structure is the swing-based market structure of the recent window
type Structure struct {
	Trend      Trend   `json:"trend"`
	SwingHighs []Swing `json:"swing_highs"`
	SwingLows  []Swing `json:"swing_lows"`
	Resistance float64 `json:"resistance"`
	Support    float64 `json:"support"`
}

// LastSwingHigh returns the most recent swing high
func (s Structure) LastSwingHigh() (Swing, bool) {
	if len(s.SwingHighs) == 0 {
		return Swing{}, false
	}
	return s.SwingHighs[len(s.SwingHighs)-1], true
}

// LastSwingLow returns the most recent swing low
func (s Structure) LastSwingLow() (Swing, bool) {
	if len(s.SwingLows) == 0 {
		return Swing{}, false
	}
	return s.SwingLows[len(s.SwingLows)-1], true
}

// MarketStructure detects swing highs/lows over the last lookback bars.
// A swing needs strength strictly lower (or higher) neighbours on both sides,
// so the newest strength bars can never be swings.
func MarketStructure(bars []core.Bar, lookback, strength int) Structure {
	s := Structure{Trend: Ranging}
	n := len(bars)
	if n == 0 || lookback <= 0 {
		return s
	}

	start := n - lookback
	if start < 0 {
		start = 0
	}

	for j := start; j < n-strength; j++ {
		if j-strength < 0 {
			continue
		}
		if isSwingHigh(bars, j, strength) {
			s.SwingHighs = append(s.SwingHighs, Swing{Index: j, Price: bars[j].High})
		}
		if isSwingLow(bars, j, strength) {
			s.SwingLows = append(s.SwingLows, Swing{Index: j, Price: bars[j].Low})
		}
	}

	if h, l := len(s.SwingHighs), len(s.SwingLows); h >= 2 && l >= 2 {
		lastH, prevH := s.SwingHighs[h-1].Price, s.SwingHighs[h-2].Price
		lastL, prevL := s.SwingLows[l-1].Price, s.SwingLows[l-2].Price
		switch {
		case lastH > prevH && lastL > prevL:
			s.Trend = Uptrend
		case lastH < prevH && lastL < prevL:
			s.Trend = Downtrend
		}
	}

	window := bars[start:]
	s.Resistance = window[0].High
	s.Support = window[0].Low
	if len(s.SwingHighs) > 0 {
		s.Resistance = s.SwingHighs[0].Price
		for _, sw := range s.SwingHighs {
			s.Resistance = max(s.Resistance, sw.Price)
		}
	} else {
		for _, b := range window {
			s.Resistance = max(s.Resistance, b.High)
		}
	}
	if len(s.SwingLows) > 0 {
		s.Support = s.SwingLows[0].Price
		for _, sw := range s.SwingLows {
			s.Support = min(s.Support, sw.Price)
		}
	} else {
		for _, b := range window {
			s.Support = min(s.Support, b.Low)
		}
	}

	return s
}

func isSwingHigh(bars []core.Bar, j, strength int) bool {
	for m := 1; m <= strength; m++ {
		if bars[j].High <= bars[j-m].High || bars[j].High <= bars[j+m].High {
			return false
		}
	}
	return true
}

func isSwingLow(bars []core.Bar, j, strength int) bool {
	for m := 1; m <= strength; m++ {
		if bars[j].Low >= bars[j-m].Low || bars[j].Low >= bars[j+m].Low {
			return false
		}
	}
	return true
}

// Divergence is the kind of price/RSI disagreement found
type Divergence string

const (
	DivergenceNone    Divergence = "none"
	DivergenceBullish Divergence = "bullish"
	DivergenceBearish Divergence = "bearish"
)

// DetectDivergence compares the price extremum of the last lookback bars with the
// preceding lookback bars and checks whether RSI confirms it.
func DetectDivergence(bars []core.Bar, rsi []float64, lookback int, threshold float64) Divergence {
	n := len(bars)
	if lookback <= 0 || n < 2*lookback || len(rsi) != n {
		return DivergenceNone
	}

	priorStart, recentStart := n-2*lookback, n-lookback

	p := argExtreme(bars, priorStart, recentStart, func(a, b core.Bar) bool { return a.High > b.High })
	r := argExtreme(bars, recentStart, n, func(a, b core.Bar) bool { return a.High > b.High })
	if bars[r].High > bars[p].High && rsi[r] < rsi[p]-threshold {
		return DivergenceBearish
	}

	p = argExtreme(bars, priorStart, recentStart, func(a, b core.Bar) bool { return a.Low < b.Low })
	r = argExtreme(bars, recentStart, n, func(a, b core.Bar) bool { return a.Low < b.Low })
	if bars[r].Low < bars[p].Low && rsi[r] > rsi[p]+threshold {
		return DivergenceBullish
	}

	return DivergenceNone
}

func argExtreme(bars []core.Bar, from, to int, better func(a, b core.Bar) bool) int {
	best := from
	for i := from + 1; i < to; i++ {
		if better(bars[i], bars[best]) {
			best = i
		}
	}
	return best
}
