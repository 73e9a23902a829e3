package backtest

import (
	"testing"

	"github.com/newthinker/confluence/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longPosition() *Position {
	return &Position{
		Direction:    core.BiasLong,
		Entry:        100,
		StopLoss:     98,
		OriginalStop: 98,
		Targets:      []float64{103, 105, 108},
		TargetsHit:   make([]bool, 3),
		EntryIndex:   10,
		Size:         10,
		Extreme:      100,
	}
}

func TestEvaluate_StopBeatsTargetOnSameBar(t *testing.T) {
	p := longPosition()
	price, reason, done := p.evaluate(core.Bar{Open: 100, High: 110, Low: 97, Close: 105}, 11, false, 1, 48)

	require.True(t, done)
	assert.Equal(t, 98.0, price)
	assert.Equal(t, ExitStopLoss, reason)

	tr := p.close(price, 11, core.Bar{}, reason)
	assert.InDelta(t, -20, tr.PnL, 1e-9)
	assert.InDelta(t, -1, tr.PnLInR, 1e-9)
	assert.Equal(t, 1, tr.Duration)
}

func TestEvaluate_FinalTarget(t *testing.T) {
	p := longPosition()
	price, reason, done := p.evaluate(core.Bar{Open: 101, High: 108.5, Low: 99, Close: 108}, 11, false, 1, 48)

	require.True(t, done)
	assert.Equal(t, 108.0, price)
	assert.Equal(t, ExitFinalTarget, reason)
	assert.InDelta(t, 4, p.close(price, 11, core.Bar{}, reason).PnLInR, 1e-9)
}

func TestEvaluate_PartialTargetsRatchetStop(t *testing.T) {
	p := longPosition()

	_, _, done := p.evaluate(core.Bar{Open: 101, High: 103.5, Low: 99.5, Close: 103}, 11, false, 1, 48)
	require.False(t, done)
	assert.True(t, p.TargetsHit[0])
	assert.Equal(t, 100.0, p.StopLoss, "first target moves stop to breakeven")
	assert.Equal(t, 98.0, p.OriginalStop)

	_, _, done = p.evaluate(core.Bar{Open: 103, High: 105.5, Low: 101, Close: 105}, 12, false, 1, 48)
	require.False(t, done)
	assert.Equal(t, 103.0, p.StopLoss, "second target locks in the first")

	price, reason, done := p.evaluate(core.Bar{Open: 104, High: 104.5, Low: 102.5, Close: 103}, 13, false, 1, 48)
	require.True(t, done)
	assert.Equal(t, 103.0, price)
	assert.Equal(t, ExitBreakeven, reason)

	tr := p.close(price, 13, core.Bar{}, reason)
	assert.Equal(t, 2, tr.TargetsHit)
	assert.InDelta(t, 1.5, tr.PnLInR, 1e-9)
}

func TestEvaluate_TrailingStop(t *testing.T) {
	p := longPosition()
	p.Targets = []float64{106, 110, 116, 124}
	p.TargetsHit = make([]bool, 4)
	p.TrailActivationR = 1.5
	p.TrailATRMult = 2

	_, _, done := p.evaluate(core.Bar{Open: 101, High: 103.5, Low: 101, Close: 103.2}, 11, false, 1, 48)
	require.False(t, done)
	assert.True(t, p.Trailing)
	assert.InDelta(t, 101.5, p.StopLoss, 1e-9)

	price, reason, done := p.evaluate(core.Bar{Open: 103, High: 103.6, Low: 101.6, Close: 101.55}, 12, false, 1, 48)
	require.True(t, done)
	assert.Equal(t, ExitTrailing, reason)
	assert.Equal(t, 101.55, price)
}

func TestEvaluate_SignalFlipExitsAtOpen(t *testing.T) {
	p := longPosition()
	price, reason, done := p.evaluate(core.Bar{Open: 100.7, High: 101, Low: 99, Close: 99.5}, 11, true, 1, 48)

	require.True(t, done)
	assert.Equal(t, ExitSignalFlip, reason)
	assert.Equal(t, 100.7, price)
}

func TestEvaluate_TimeExit(t *testing.T) {
	p := longPosition()
	bar := core.Bar{Open: 100, High: 101, Low: 99, Close: 100.4}

	_, _, done := p.evaluate(bar, 57, false, 1, 48)
	assert.False(t, done)

	price, reason, done := p.evaluate(bar, 58, false, 1, 48)
	require.True(t, done)
	assert.Equal(t, ExitTime, reason)
	assert.Equal(t, 100.4, price)
}

func TestEvaluate_ShortMirror(t *testing.T) {
	p := &Position{
		Direction:    core.BiasShort,
		Entry:        100,
		StopLoss:     102,
		OriginalStop: 102,
		Targets:      []float64{97, 95, 92},
		TargetsHit:   make([]bool, 3),
		Size:         5,
		Extreme:      100,
	}

	_, _, done := p.evaluate(core.Bar{Open: 99, High: 100.5, Low: 96.5, Close: 97}, 1, false, 1, 48)
	require.False(t, done)
	assert.Equal(t, 100.0, p.StopLoss)

	price, reason, done := p.evaluate(core.Bar{Open: 98, High: 101, Low: 97.5, Close: 100.5}, 2, false, 1, 48)
	require.True(t, done)
	assert.Equal(t, ExitBreakeven, reason)
	assert.Equal(t, 100.0, price)
	assert.Zero(t, p.PnL(price))
}
