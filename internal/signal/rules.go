package signal

import (
	"fmt"
	"math"

	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/indicator"
)

// Category groups rules for the breakdown
type Category string

const (
	CategoryTrend       Category = "trend"
	CategoryMomentum    Category = "momentum"
	CategoryVolume      Category = "volume"
	CategoryVolatility  Category = "volatility"
	CategoryPriceAction Category = "price_action"
	CategoryConfluence  Category = "confluence"
)

// Categories lists categories in presentation order
var Categories = []Category{
	CategoryTrend,
	CategoryMomentum,
	CategoryVolume,
	CategoryVolatility,
	CategoryPriceAction,
	CategoryConfluence,
}

// Hit is a fired rule
type Hit struct {
	Type core.SignalType
	Text string
	// Scale multiplies the rule weight; 0 means 1
	Scale float64
}

// Rule is one row of the scoring table
type Rule struct {
	ID       string
	Category Category
	Weight   float64
	Eval     func(s *Snapshot, p *ScoringProfile) (Hit, bool)
}

// Snapshot holds latest and previous indicator values for one prefix
type Snapshot struct {
	Bar       core.Bar
	PrevClose float64
	// Close and OBV five bars back
	Close5Ago float64
	OBV5Ago   float64

	EMAFast, EMAMid, EMASlow float64
	PrevEMAFast, PrevEMAMid  float64

	RSI          float64
	Stoch        indicator.StochPoint
	PrevStoch    indicator.StochPoint
	MACD         indicator.MACDPoint
	PrevMACD     indicator.MACDPoint
	DMI          indicator.DMIPoint
	ATR          float64
	Band         indicator.BandPoint
	VWAP         float64
	OBV          float64
	Volume       indicator.Pressure
	Structure    indicator.Structure
	Divergence   indicator.Divergence
	Pattern      *indicator.Pattern
	RecentHighs  []float64
	RecentLows   []float64
	PriorHigh    float64
	PriorLow     float64
	Inputs       Inputs
}

const (
	recentSwingBars = 10
	breakoutBars    = 20
)

// NewSnapshot extracts the latest values from a computed set. The set must hold
// at least minWarmup bars.
func NewSnapshot(set *indicator.Set, in Inputs) *Snapshot {
	n := set.Len()
	bars := set.Bars

	s := &Snapshot{
		Bar:         bars[n-1],
		PrevClose:   bars[n-2].Close,
		Close5Ago:   bars[n-6].Close,
		OBV5Ago:     set.OBV[n-6],
		EMAFast:     set.EMAFast[n-1],
		EMAMid:      set.EMAMid[n-1],
		EMASlow:     set.EMASlow[n-1],
		PrevEMAFast: set.EMAFast[n-2],
		PrevEMAMid:  set.EMAMid[n-2],
		RSI:         set.RSI[n-1],
		Stoch:       set.Stoch[n-1],
		PrevStoch:   set.Stoch[n-2],
		MACD:        set.MACD[n-1],
		PrevMACD:    set.MACD[n-2],
		DMI:         set.DMI[n-1],
		ATR:         set.ATR[n-1],
		Band:        set.Bands[n-1],
		VWAP:        set.VWAP[n-1],
		OBV:         set.OBV[n-1],
		Volume:      set.Volume,
		Structure:   set.Structure,
		Divergence:  set.Divergence,
		Pattern:     set.Pattern,
		Inputs:      in,
	}

	recent := bars[n-recentSwingBars:]
	s.RecentHighs = core.Highs(recent)
	s.RecentLows = core.Lows(recent)

	s.PriorHigh, s.PriorLow = math.Inf(-1), math.Inf(1)
	for _, b := range bars[n-1-breakoutBars : n-1] {
		s.PriorHigh = math.Max(s.PriorHigh, b.High)
		s.PriorLow = math.Min(s.PriorLow, b.Low)
	}

	return s
}

func (s *Snapshot) bullStack() bool {
	return s.EMAFast > s.EMAMid && s.EMAMid > s.EMASlow
}

func (s *Snapshot) bearStack() bool {
	return s.EMAFast < s.EMAMid && s.EMAMid < s.EMASlow
}

func (s *Snapshot) strongTrend(p *ScoringProfile, bullish bool) bool {
	if s.DMI.ADX <= p.StrongTrendADX {
		return false
	}
	if bullish {
		return s.DMI.PlusDI > s.DMI.MinusDI
	}
	return s.DMI.MinusDI > s.DMI.PlusDI
}

func bull(format string, args ...any) (Hit, bool) {
	return Hit{Type: core.Bullish, Text: fmt.Sprintf(format, args...)}, true
}

func bear(format string, args ...any) (Hit, bool) {
	return Hit{Type: core.Bearish, Text: fmt.Sprintf(format, args...)}, true
}

func neutral(format string, args ...any) (Hit, bool) {
	return Hit{Type: core.Neutral, Text: fmt.Sprintf(format, args...)}, true
}

func none() (Hit, bool) {
	return Hit{}, false
}

// Rules is the scoring table in evaluation order
var Rules = []Rule{
	// Trend
	{ID: "ema_stack", Category: CategoryTrend, Weight: 8, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		switch {
		case s.bullStack():
			return bull("EMAs stacked bullish")
		case s.bearStack():
			return bear("EMAs stacked bearish")
		}
		return none()
	}},
	{ID: "price_vs_ema", Category: CategoryTrend, Weight: 5, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		c := s.Bar.Close
		switch {
		case c > s.EMAFast && c > s.EMAMid:
			return bull("Price above key EMAs")
		case c < s.EMAFast && c < s.EMAMid:
			return bear("Price below key EMAs")
		}
		return none()
	}},
	{ID: "ema_cross", Category: CategoryTrend, Weight: 7, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		switch {
		case s.PrevEMAFast <= s.PrevEMAMid && s.EMAFast > s.EMAMid:
			return bull("Golden cross (fast > mid EMA)")
		case s.PrevEMAFast >= s.PrevEMAMid && s.EMAFast < s.EMAMid:
			return bear("Death cross (fast < mid EMA)")
		}
		return none()
	}},
	{ID: "adx_trend", Category: CategoryTrend, Weight: 5, Eval: func(s *Snapshot, p *ScoringProfile) (Hit, bool) {
		if s.DMI.ADX <= p.StrongTrendADX {
			return none()
		}
		if s.DMI.PlusDI > s.DMI.MinusDI {
			return bull("Strong uptrend (ADX %.0f)", s.DMI.ADX)
		}
		return bear("Strong downtrend (ADX %.0f)", s.DMI.ADX)
	}},

	// Momentum
	{ID: "rsi_extreme", Category: CategoryMomentum, Weight: 6, Eval: func(s *Snapshot, p *ScoringProfile) (Hit, bool) {
		switch {
		case s.RSI < 30 && s.strongTrend(p, false):
			return neutral("RSI oversold in strong downtrend (%.0f)", s.RSI)
		case s.RSI < 30:
			return bull("RSI oversold (%.0f)", s.RSI)
		case s.RSI > 70 && s.strongTrend(p, true):
			return neutral("RSI overbought in strong uptrend (%.0f)", s.RSI)
		case s.RSI > 70:
			return bear("RSI overbought (%.0f)", s.RSI)
		}
		return none()
	}},
	{ID: "rsi_bias", Category: CategoryMomentum, Weight: 2, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		if s.RSI < 30 || s.RSI > 70 {
			return none()
		}
		if s.RSI > 50 {
			return bull("RSI bullish (%.0f)", s.RSI)
		}
		return bear("RSI bearish (%.0f)", s.RSI)
	}},
	{ID: "stoch_extreme", Category: CategoryMomentum, Weight: 5, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		switch {
		case s.Stoch.K < 20 && s.Stoch.D < 20:
			return bull("StochRSI oversold")
		case s.Stoch.K > 80 && s.Stoch.D > 80:
			return bear("StochRSI overbought")
		}
		return none()
	}},
	{ID: "stoch_cross", Category: CategoryMomentum, Weight: 4, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		switch {
		case s.PrevStoch.K <= s.PrevStoch.D && s.Stoch.K > s.Stoch.D && s.Stoch.K < 50:
			return bull("StochRSI bullish cross")
		case s.PrevStoch.K >= s.PrevStoch.D && s.Stoch.K < s.Stoch.D && s.Stoch.K > 50:
			return bear("StochRSI bearish cross")
		}
		return none()
	}},
	{ID: "macd_cross", Category: CategoryMomentum, Weight: 6, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		switch {
		case s.PrevMACD.MACD <= s.PrevMACD.Signal && s.MACD.MACD > s.MACD.Signal:
			return bull("MACD bullish crossover")
		case s.PrevMACD.MACD >= s.PrevMACD.Signal && s.MACD.MACD < s.MACD.Signal:
			return bear("MACD bearish crossover")
		}
		return none()
	}},
	{ID: "macd_momentum", Category: CategoryMomentum, Weight: 4, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		h, prev := s.MACD.Histogram, s.PrevMACD.Histogram
		switch {
		case h > 0 && h > prev:
			return bull("MACD momentum up")
		case h < 0 && h < prev:
			return bear("MACD momentum down")
		}
		return none()
	}},
	{ID: "divergence", Category: CategoryMomentum, Weight: 6, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		switch s.Divergence {
		case indicator.DivergenceBullish:
			return bull("Bullish RSI divergence")
		case indicator.DivergenceBearish:
			return bear("Bearish RSI divergence")
		}
		return none()
	}},

	// Volume
	{ID: "obv_trend", Category: CategoryVolume, Weight: 5, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		switch {
		case s.OBV > s.OBV5Ago && s.Bar.Close > s.Close5Ago:
			return bull("OBV confirming up")
		case s.OBV < s.OBV5Ago && s.Bar.Close < s.Close5Ago:
			return bear("OBV confirming down")
		}
		return none()
	}},
	{ID: "vwap_side", Category: CategoryVolume, Weight: 5, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		switch {
		case s.Bar.Close > s.VWAP:
			return bull("Above VWAP")
		case s.Bar.Close < s.VWAP:
			return bear("Below VWAP")
		}
		return none()
	}},
	{ID: "volume_spike", Category: CategoryVolume, Weight: 5, Eval: func(s *Snapshot, p *ScoringProfile) (Hit, bool) {
		if s.Volume.RelativeVolume <= p.VolumeSpikeRatio {
			return none()
		}
		switch {
		case s.Bar.Close > s.PrevClose:
			return bull("Volume spike (green, %.1fx)", s.Volume.RelativeVolume)
		case s.Bar.Close < s.PrevClose:
			return bear("Volume spike (red, %.1fx)", s.Volume.RelativeVolume)
		}
		return none()
	}},
	{ID: "volume_pressure", Category: CategoryVolume, Weight: 3, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		switch {
		case s.Volume.Pressure > 0.5:
			return bull("Buying pressure (close near high)")
		case s.Volume.Pressure < -0.5:
			return bear("Selling pressure (close near low)")
		}
		return none()
	}},
	{ID: "volume_climax", Category: CategoryVolume, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		if s.Volume.Climax {
			return neutral("Volume climax (%.1fx), possible exhaustion", s.Volume.RelativeVolume)
		}
		return none()
	}},

	// Volatility
	{ID: "bb_squeeze", Category: CategoryVolatility, Eval: func(s *Snapshot, p *ScoringProfile) (Hit, bool) {
		if s.Band.Width < p.SqueezeWidth {
			return neutral("BB squeeze forming (%.2f%%)", s.Band.Width*100)
		}
		return none()
	}},
	{ID: "bb_extreme", Category: CategoryVolatility, Weight: 5, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		if s.Band.Upper <= s.Band.Lower {
			return none()
		}
		switch {
		case s.Bar.Close <= s.Band.Lower:
			return bull("At lower BB")
		case s.Bar.Close >= s.Band.Upper:
			return bear("At upper BB")
		}
		return none()
	}},

	// Price action
	{ID: "swing_sequence", Category: CategoryPriceAction, Weight: 7, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		higherHighs, lowerLows := true, true
		for i := 1; i < len(s.RecentHighs); i++ {
			if s.RecentHighs[i] < s.RecentHighs[i-1]*0.998 {
				higherHighs = false
			}
			if s.RecentLows[i] > s.RecentLows[i-1]*1.002 {
				lowerLows = false
			}
		}
		switch {
		case higherHighs && s.Bar.Close > s.PrevClose:
			return bull("Higher highs")
		case lowerLows && s.Bar.Close < s.PrevClose:
			return bear("Lower lows")
		}
		return none()
	}},
	{ID: "structure_trend", Category: CategoryPriceAction, Weight: 5, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		switch s.Structure.Trend {
		case indicator.Uptrend:
			return bull("Structure: higher highs and higher lows")
		case indicator.Downtrend:
			return bear("Structure: lower highs and lower lows")
		}
		return none()
	}},
	{ID: "range_breakout", Category: CategoryPriceAction, Weight: 6, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		switch {
		case s.Bar.Close > s.PriorHigh:
			return bull("Breakout above %d-bar high", breakoutBars)
		case s.Bar.Close < s.PriorLow:
			return bear("Breakdown below %d-bar low", breakoutBars)
		}
		return none()
	}},
	{ID: "candle_pattern", Category: CategoryPriceAction, Weight: 2, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		if s.Pattern == nil || s.Pattern.Direction == core.Neutral {
			return none()
		}
		return Hit{Type: s.Pattern.Direction, Text: s.Pattern.Name, Scale: float64(s.Pattern.Strength)}, true
	}},

	// Confluence
	{ID: "reference_bias", Category: CategoryConfluence, Weight: 5, Eval: func(s *Snapshot, _ *ScoringProfile) (Hit, bool) {
		switch s.Inputs.ReferenceBias {
		case core.BiasLong:
			return bull("Reference asset LONG")
		case core.BiasShort:
			return bear("Reference asset SHORT")
		}
		return none()
	}},
	{ID: "funding_rate", Category: CategoryConfluence, Weight: 4, Eval: func(s *Snapshot, p *ScoringProfile) (Hit, bool) {
		f := s.Inputs.FundingRate
		switch {
		case p.FundingExtreme > 0 && f > p.FundingExtreme:
			return bear("Funding elevated (%.4f%%), longs crowded", f*100)
		case p.FundingExtreme > 0 && f < -p.FundingExtreme:
			return bull("Funding negative (%.4f%%), shorts crowded", f*100)
		}
		return none()
	}},
	{ID: "open_interest", Category: CategoryConfluence, Weight: 3, Eval: func(s *Snapshot, p *ScoringProfile) (Hit, bool) {
		oi := s.Inputs.OpenInterestChangePct
		if p.OIChangeFloor <= 0 || oi < p.OIChangeFloor {
			return none()
		}
		switch {
		case s.Bar.Close > s.PrevClose:
			return bull("OI rising with price (+%.1f%%)", oi)
		case s.Bar.Close < s.PrevClose:
			return bear("OI rising into selloff (+%.1f%%)", oi)
		}
		return none()
	}},
}

var ruleByID = func() map[string]Rule {
	m := make(map[string]Rule, len(Rules))
	for _, r := range Rules {
		m[r.ID] = r
	}
	return m
}()

// RuleByID finds a rule in the table
func RuleByID(id string) (Rule, bool) {
	r, ok := ruleByID[id]
	return r, ok
}
