package signal

import (
	"testing"

	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/indicator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eval(t *testing.T, id string, s *Snapshot) (Hit, bool) {
	t.Helper()
	r, ok := RuleByID(id)
	require.True(t, ok, "rule %s", id)
	p := intraday()
	return r.Eval(s, &p)
}

func TestRules_UniqueIDsAndKnownCategories(t *testing.T) {
	seen := map[string]bool{}
	known := map[Category]bool{}
	for _, c := range Categories {
		known[c] = true
	}
	for _, r := range Rules {
		assert.False(t, seen[r.ID], "duplicate rule %s", r.ID)
		seen[r.ID] = true
		assert.True(t, known[r.Category], "rule %s has unknown category", r.ID)
		assert.NotNil(t, r.Eval)
	}
}

func TestRule_RSIExtremeNeutralInStrongTrend(t *testing.T) {
	s := &Snapshot{RSI: 82, DMI: indicator.DMIPoint{ADX: 40, PlusDI: 30, MinusDI: 5}}
	hit, ok := eval(t, "rsi_extreme", s)
	require.True(t, ok)
	assert.Equal(t, core.Neutral, hit.Type)

	s.DMI = indicator.DMIPoint{ADX: 15, PlusDI: 30, MinusDI: 5}
	hit, ok = eval(t, "rsi_extreme", s)
	require.True(t, ok)
	assert.Equal(t, core.Bearish, hit.Type)
	assert.Equal(t, "RSI overbought (82)", hit.Text)

	s.RSI = 25
	hit, _ = eval(t, "rsi_extreme", s)
	assert.Equal(t, core.Bullish, hit.Type)

	// the bias rule stays silent at the extremes
	_, ok = eval(t, "rsi_bias", s)
	assert.False(t, ok)

	s.RSI = 50
	hit, ok = eval(t, "rsi_bias", s)
	require.True(t, ok)
	assert.Equal(t, core.Bearish, hit.Type)
}

func TestRule_VWAPSideStrict(t *testing.T) {
	s := &Snapshot{Bar: core.Bar{Close: 100}, VWAP: 100}
	_, ok := eval(t, "vwap_side", s)
	assert.False(t, ok)

	s.VWAP = 99
	hit, ok := eval(t, "vwap_side", s)
	require.True(t, ok)
	assert.Equal(t, core.Bullish, hit.Type)
}

func TestRule_BollingerNeedsSpread(t *testing.T) {
	s := &Snapshot{Bar: core.Bar{Close: 100}, Band: indicator.BandPoint{Upper: 100, Middle: 100, Lower: 100}}
	_, ok := eval(t, "bb_extreme", s)
	assert.False(t, ok)

	hit, ok := eval(t, "bb_squeeze", s)
	require.True(t, ok)
	assert.Equal(t, core.Neutral, hit.Type)

	s.Band = indicator.BandPoint{Upper: 104, Middle: 102, Lower: 100, Width: 0.04}
	hit, ok = eval(t, "bb_extreme", s)
	require.True(t, ok)
	assert.Equal(t, core.Bullish, hit.Type)
}

func TestRule_CrossesNeedAFlip(t *testing.T) {
	s := &Snapshot{
		MACD:        indicator.MACDPoint{MACD: 1, Signal: 0.5},
		PrevMACD:    indicator.MACDPoint{MACD: 0.4, Signal: 0.5},
		EMAFast:     10,
		EMAMid:      9,
		PrevEMAFast: 9,
		PrevEMAMid:  9,
	}
	hit, ok := eval(t, "macd_cross", s)
	require.True(t, ok)
	assert.Equal(t, core.Bullish, hit.Type)

	hit, ok = eval(t, "ema_cross", s)
	require.True(t, ok)
	assert.Equal(t, core.Bullish, hit.Type)

	s.PrevMACD = indicator.MACDPoint{MACD: 0.9, Signal: 0.5}
	_, ok = eval(t, "macd_cross", s)
	assert.False(t, ok)
}

func TestRule_CandlePatternScalesWithStrength(t *testing.T) {
	s := &Snapshot{Pattern: &indicator.Pattern{Name: "Hammer", Direction: core.Bullish, Strength: 3}}
	hit, ok := eval(t, "candle_pattern", s)
	require.True(t, ok)
	assert.Equal(t, 3.0, hit.Scale)
	assert.Equal(t, "Hammer", hit.Text)

	_, ok = eval(t, "candle_pattern", &Snapshot{})
	assert.False(t, ok)
}

func TestRule_FundingIsContrarian(t *testing.T) {
	hit, ok := eval(t, "funding_rate", &Snapshot{Inputs: Inputs{FundingRate: 0.001}})
	require.True(t, ok)
	assert.Equal(t, core.Bearish, hit.Type)

	hit, ok = eval(t, "funding_rate", &Snapshot{Inputs: Inputs{FundingRate: -0.001}})
	require.True(t, ok)
	assert.Equal(t, core.Bullish, hit.Type)

	_, ok = eval(t, "funding_rate", &Snapshot{Inputs: Inputs{FundingRate: 0.0001}})
	assert.False(t, ok)
}

func TestRule_OpenInterestFollowsPrice(t *testing.T) {
	s := &Snapshot{Bar: core.Bar{Close: 101}, PrevClose: 100, Inputs: Inputs{OpenInterestChangePct: 5}}
	hit, ok := eval(t, "open_interest", s)
	require.True(t, ok)
	assert.Equal(t, core.Bullish, hit.Type)

	s.Inputs.OpenInterestChangePct = 1
	_, ok = eval(t, "open_interest", s)
	assert.False(t, ok)
}

func TestRule_SwingSequence(t *testing.T) {
	s := &Snapshot{
		Bar:         core.Bar{Close: 105},
		PrevClose:   104,
		RecentHighs: []float64{100, 101, 100.9, 102},
		RecentLows:  []float64{98, 99, 99.5, 100},
	}
	hit, ok := eval(t, "swing_sequence", s)
	require.True(t, ok)
	assert.Equal(t, "Higher highs", hit.Text)

	s.RecentHighs = []float64{100, 98, 101, 102}
	_, ok = eval(t, "swing_sequence", s)
	assert.False(t, ok)
}
