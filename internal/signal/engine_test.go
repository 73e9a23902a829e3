package signal

import (
	"math"
	"testing"

	"github.com/newthinker/confluence/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trendBars(n int, step float64) []core.Bar {
	bars := make([]core.Bar, n)
	price := 100.0
	for i := range bars {
		open := price
		c := open * step
		b := core.Bar{Open: open, Close: c, Volume: 1000}
		if step >= 1 {
			b.High, b.Low = c*1.002, open*0.998
		} else {
			b.High, b.Low = open*1.002, c*0.998
		}
		bars[i] = b
		price = c
	}
	return bars
}

func flatBars(n int, price float64) []core.Bar {
	bars := make([]core.Bar, n)
	for i := range bars {
		bars[i] = core.Bar{Open: price, High: price, Low: price, Close: price, Volume: 1000}
	}
	return bars
}

func waveBars(n int) []core.Bar {
	bars := make([]core.Bar, n)
	prev := 100.0
	for i := range bars {
		c := 100 + 8*math.Sin(float64(i)*0.25) + 2*math.Cos(float64(i)*0.9)
		bars[i] = core.Bar{
			Open:   prev,
			High:   math.Max(prev, c) + 0.6,
			Low:    math.Min(prev, c) - 0.6,
			Close:  c,
			Volume: 1000 + float64(i%7)*220,
		}
		prev = c
	}
	return bars
}

func defaultEngine(t *testing.T) *Engine {
	t.Helper()
	p, err := Lookup("")
	require.NoError(t, err)
	return NewEngine(p)
}

func TestAnalyze_RisingSeries(t *testing.T) {
	a := defaultEngine(t).Analyze(trendBars(60, 1.01), Inputs{})

	assert.Equal(t, core.BiasLong, a.Bias)
	assert.GreaterOrEqual(t, a.Score, 15.0)
	assert.Zero(t, a.BearScore)
	assert.Zero(t, a.Count(core.Bearish))
	for _, c := range Categories {
		for _, s := range a.Breakdown[c].Signals {
			assert.NotEqual(t, core.Bearish, s.Type, "category %s: %s", c, s.Text)
		}
	}

	require.NotNil(t, a.Indicators)
	assert.Greater(t, a.Indicators.RSI, 50.0)
	assert.Greater(t, a.Indicators.EMAFast, a.Indicators.EMAMid)
	assert.Greater(t, a.Indicators.EMAMid, a.Indicators.EMASlow)

	require.NotNil(t, a.TradePlan)
	assert.Equal(t, core.BiasLong, a.TradePlan.Direction)
	assert.Less(t, a.TradePlan.StopLoss, a.TradePlan.Entry)
	assert.Len(t, a.TradePlan.Targets, 3)
}

func TestAnalyze_FallingSeries(t *testing.T) {
	a := defaultEngine(t).Analyze(trendBars(60, 0.99), Inputs{})

	assert.Equal(t, core.BiasShort, a.Bias)
	// a geometric decline decelerates in absolute terms, so the MACD
	// histogram recovers and macd_momentum may fire bullish
	assert.Greater(t, a.BearScore, a.BullScore)
	assert.Less(t, a.Score, 0.0)
	require.NotNil(t, a.TradePlan)
	assert.Greater(t, a.TradePlan.StopLoss, a.TradePlan.Entry)
}

func TestAnalyze_FlatSeries(t *testing.T) {
	a := defaultEngine(t).Analyze(flatBars(60, 100), Inputs{})

	assert.Equal(t, core.BiasNeutral, a.Bias)
	assert.False(t, a.ShouldTrade)
	assert.NotEmpty(t, a.NoTradeReason)
	assert.Nil(t, a.TradePlan)
	require.NotNil(t, a.Indicators)
	assert.Zero(t, a.Indicators.BBWidthPct)
	assert.Less(t, a.Indicators.ADX, 1.0)
}

func TestAnalyze_InsufficientData(t *testing.T) {
	a := defaultEngine(t).Analyze(trendBars(49, 1.01), Inputs{})

	assert.Equal(t, core.BiasNeutral, a.Bias)
	assert.Zero(t, a.Confidence)
	assert.Empty(t, a.Breakdown)
	assert.Empty(t, a.Signals)
	assert.Equal(t, GradeNone, a.EntryQuality)
	assert.False(t, a.ShouldTrade)
	assert.Contains(t, a.NoTradeReason, "insufficient data")
}

func TestAnalyze_Deterministic(t *testing.T) {
	e := defaultEngine(t)
	bars := waveBars(120)

	first := e.Analyze(bars, Inputs{FundingRate: 0.0001})
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, e.Analyze(bars, Inputs{FundingRate: 0.0001}))
	}
}

func TestAnalyze_NoLookAhead(t *testing.T) {
	e := defaultEngine(t)
	bars := waveBars(140)

	for _, i := range []int{50, 77, 99} {
		prefix := make([]core.Bar, i)
		copy(prefix, bars[:i])
		want := e.Analyze(prefix, Inputs{})

		// Future bars with extreme values must not change the prefix analysis
		extended := append(append([]core.Bar(nil), bars[:i]...), trendBars(40, 1.05)...)
		got := e.Analyze(extended[:i], Inputs{})

		assert.Equal(t, want, got, "prefix %d", i)
	}
}

func TestAnalyze_ConfidenceScaleAndCap(t *testing.T) {
	p, err := Lookup("scalp")
	require.NoError(t, err)

	a := NewEngine(p).Analyze(trendBars(60, 1.01), Inputs{})
	assert.Equal(t, math.Min(math.Abs(a.Score)*2, 100), a.Confidence)
	assert.LessOrEqual(t, a.Confidence, 100.0)
}

func TestAnalyze_WeightOverrideDisablesRule(t *testing.T) {
	bars := trendBars(60, 1.01)
	base := defaultEngine(t).Analyze(bars, Inputs{})

	p, err := Lookup("intraday")
	require.NoError(t, err)
	p.Weights = map[string]float64{"ema_stack": 0}
	a := NewEngine(p).Analyze(bars, Inputs{})

	assert.Equal(t, base.Score-8, a.Score)
	for _, s := range a.Signals {
		assert.NotEqual(t, "ema_stack", s.Rule)
	}
}

func TestAnalyze_ReferenceAssetAddsConfluence(t *testing.T) {
	bars := trendBars(60, 1.01)
	e := defaultEngine(t)

	base := e.Analyze(bars, Inputs{})
	withRef := e.Analyze(bars, Inputs{ReferenceBias: core.BiasLong})

	assert.Equal(t, base.Score+5, withRef.Score)
	assert.Equal(t, 5.0, withRef.Breakdown[CategoryConfluence].Score)
	assert.Equal(t, base.QualityScore+1, withRef.QualityScore)
}

func TestAnalyze_BreakdownSumsToScore(t *testing.T) {
	a := defaultEngine(t).Analyze(waveBars(150), Inputs{FundingRate: -0.001, OpenInterestChangePct: 6})

	var sum float64
	for _, c := range Categories {
		sum += a.Breakdown[c].Score
	}
	assert.InDelta(t, a.Score, sum, 1e-9)
	assert.InDelta(t, a.Score, a.BullScore-a.BearScore, 1e-9)
}
