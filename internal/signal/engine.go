// Package signal scores the latest bar of a series into a directional bias.
package signal

import (
	"fmt"
	"math"

	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/indicator"
	"github.com/newthinker/confluence/internal/plan"
	"go.uber.org/zap"
)

// Inputs are ancillary scalars from other collaborators
type Inputs struct {
	ReferenceBias         core.Bias `json:"reference_bias,omitempty"`
	FundingRate           float64   `json:"funding_rate"`
	OpenInterestChangePct float64   `json:"open_interest_change_pct"`
}

// Signal is one fired rule as presented to readers
type Signal struct {
	Rule string          `json:"rule"`
	Type core.SignalType `json:"type"`
	Text string          `json:"text"`
}

// CategoryBreakdown accumulates the signed points of one category
type CategoryBreakdown struct {
	Score   float64  `json:"score"`
	Max     float64  `json:"max"`
	Signals []Signal `json:"signals"`
}

// IndicatorSummary is the latest indicator readout
type IndicatorSummary struct {
	Price          float64 `json:"price"`
	EMAFast        float64 `json:"ema_fast"`
	EMAMid         float64 `json:"ema_mid"`
	EMASlow        float64 `json:"ema_slow"`
	RSI            float64 `json:"rsi"`
	StochK         float64 `json:"stoch_k"`
	StochD         float64 `json:"stoch_d"`
	MACD           float64 `json:"macd"`
	MACDSignal     float64 `json:"macd_signal"`
	MACDHistogram  float64 `json:"macd_histogram"`
	ADX            float64 `json:"adx"`
	PlusDI         float64 `json:"plus_di"`
	MinusDI        float64 `json:"minus_di"`
	ATR            float64 `json:"atr"`
	BBWidthPct     float64 `json:"bb_width_pct"`
	VWAP           float64 `json:"vwap"`
	OBV            float64 `json:"obv"`
	RelativeVolume float64 `json:"relative_volume"`
	Structure      string  `json:"structure"`
	Pattern        string  `json:"pattern,omitempty"`
	Divergence     string  `json:"divergence"`
}

// Analysis is the full scoring result for the latest bar. It is rebuilt from
// scratch for every prefix.
type Analysis struct {
	Profile       string                          `json:"profile"`
	Bars          int                             `json:"bars"`
	Bias          core.Bias                       `json:"bias"`
	Score         float64                         `json:"score"`
	BullScore     float64                         `json:"bull_score"`
	BearScore     float64                         `json:"bear_score"`
	Confidence    float64                         `json:"confidence"`
	Breakdown     map[Category]*CategoryBreakdown `json:"breakdown"`
	Signals       []Signal                        `json:"signals"`
	QualityScore  int                             `json:"quality_score"`
	EntryQuality  Grade                           `json:"entry_quality"`
	ShouldTrade   bool                            `json:"should_trade"`
	NoTradeReason string                          `json:"no_trade_reason,omitempty"`
	TradePlan     *plan.TradePlan                 `json:"trade_plan,omitempty"`
	Indicators    *IndicatorSummary               `json:"indicators,omitempty"`
}

// Count returns how many signals of type t fired
func (a *Analysis) Count(t core.SignalType) int {
	n := 0
	for _, s := range a.Signals {
		if s.Type == t {
			n++
		}
	}
	return n
}

// Engine scores bar prefixes under one profile. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	profile ScoringProfile
	logger  *zap.Logger
}

// NewEngine creates an engine bound to a profile
func NewEngine(profile ScoringProfile, logger ...*zap.Logger) *Engine {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Engine{profile: profile, logger: l}
}

// Profile returns the engine's scoring profile
func (e *Engine) Profile() ScoringProfile {
	return e.profile
}

// Warmup returns the minimum number of bars needed for a full analysis
func (e *Engine) Warmup() int {
	return max(e.profile.WarmupBars, minWarmup)
}

// Analyze scores the last bar of bars. Fewer bars than the warm-up produce a
// neutral analysis with an empty breakdown.
func (e *Engine) Analyze(bars []core.Bar, in Inputs) *Analysis {
	p := &e.profile
	a := &Analysis{
		Profile:      p.Name,
		Bars:         len(bars),
		Bias:         core.BiasNeutral,
		Breakdown:    map[Category]*CategoryBreakdown{},
		EntryQuality: GradeNone,
	}

	if len(bars) < e.Warmup() {
		a.NoTradeReason = fmt.Sprintf("insufficient data: %d bars, need %d", len(bars), e.Warmup())
		return a
	}

	set := indicator.Compute(bars, p.Indicators)
	snap := NewSnapshot(set, in)

	for _, c := range Categories {
		a.Breakdown[c] = &CategoryBreakdown{Max: p.CategoryMax[c], Signals: []Signal{}}
	}

	for _, r := range Rules {
		hit, ok := r.Eval(snap, p)
		if !ok {
			continue
		}
		w := p.Weight(r)
		if hit.Type != core.Neutral && w == 0 {
			continue
		}
		if hit.Scale != 0 {
			w *= hit.Scale
		}

		cat := a.Breakdown[r.Category]
		switch hit.Type {
		case core.Bullish:
			a.BullScore += w
			cat.Score += w
		case core.Bearish:
			a.BearScore += w
			cat.Score -= w
		}
		cat.Signals = append(cat.Signals, Signal{Rule: r.ID, Type: hit.Type, Text: hit.Text})
	}

	for _, c := range Categories {
		a.Signals = append(a.Signals, a.Breakdown[c].Signals...)
	}

	a.Score = a.BullScore - a.BearScore
	switch {
	case a.Score >= p.BiasThreshold:
		a.Bias = core.BiasLong
	case a.Score <= -p.BiasThreshold:
		a.Bias = core.BiasShort
	}
	a.Confidence = math.Min(math.Abs(a.Score)*p.ConfidenceScale, 100)

	a.QualityScore, a.EntryQuality = GradeEntry(snap, a.Bias, p)
	a.TradePlan = buildPlan(snap, a.Bias, p.Plan)
	a.Indicators = summarize(snap)
	a.ShouldTrade, a.NoTradeReason = filter(a, snap, p)

	e.logger.Debug("analysis complete",
		zap.String("profile", p.Name),
		zap.Int("bars", len(bars)),
		zap.String("bias", string(a.Bias)),
		zap.Float64("score", a.Score),
		zap.String("quality", string(a.EntryQuality)),
		zap.Bool("should_trade", a.ShouldTrade),
	)

	return a
}

func buildPlan(s *Snapshot, bias core.Bias, p plan.Profile) *plan.TradePlan {
	in := plan.Input{
		Direction: bias,
		Price:     s.Bar.Close,
		ATR:       s.ATR,
		FastEMA:   s.EMAFast,
		SlowEMA:   s.EMASlow,
	}
	if sw, ok := s.Structure.LastSwingLow(); ok {
		in.SwingLow = sw.Price
	}
	if sw, ok := s.Structure.LastSwingHigh(); ok {
		in.SwingHigh = sw.Price
	}
	return plan.Generate(in, p)
}

// filter applies trade filters in order; the first failure is the reason
func filter(a *Analysis, s *Snapshot, p *ScoringProfile) (bool, string) {
	switch {
	case a.Bias == core.BiasNeutral:
		return false, fmt.Sprintf("no directional bias (score %.0f, threshold %.0f)", a.Score, p.BiasThreshold)
	case s.DMI.ADX < p.MinADX:
		return false, fmt.Sprintf("trend too weak (ADX %.1f < %.0f)", s.DMI.ADX, p.MinADX)
	case s.Band.Width < p.SqueezeWidth:
		return false, fmt.Sprintf("Bollinger squeeze (width %.2f%% < %.2f%%)", s.Band.Width*100, p.SqueezeWidth*100)
	case s.Volume.RelativeVolume < p.MinRelVolume:
		return false, fmt.Sprintf("volume too low (%.2fx < %.2fx)", s.Volume.RelativeVolume, p.MinRelVolume)
	case !a.EntryQuality.AtLeast(p.MinQuality):
		return false, fmt.Sprintf("entry quality %s below %s", a.EntryQuality, p.MinQuality)
	case a.TradePlan == nil:
		return false, "no valid stop for a trade plan"
	}
	return true, ""
}

func summarize(s *Snapshot) *IndicatorSummary {
	sum := &IndicatorSummary{
		Price:          s.Bar.Close,
		EMAFast:        s.EMAFast,
		EMAMid:         s.EMAMid,
		EMASlow:        s.EMASlow,
		RSI:            s.RSI,
		StochK:         s.Stoch.K,
		StochD:         s.Stoch.D,
		MACD:           s.MACD.MACD,
		MACDSignal:     s.MACD.Signal,
		MACDHistogram:  s.MACD.Histogram,
		ADX:            s.DMI.ADX,
		PlusDI:         s.DMI.PlusDI,
		MinusDI:        s.DMI.MinusDI,
		ATR:            s.ATR,
		BBWidthPct:     s.Band.Width * 100,
		VWAP:           s.VWAP,
		OBV:            s.OBV,
		RelativeVolume: s.Volume.RelativeVolume,
		Structure:      string(s.Structure.Trend),
		Divergence:     string(s.Divergence),
	}
	if s.Pattern != nil {
		sum.Pattern = s.Pattern.Name
	}
	return sum
}
