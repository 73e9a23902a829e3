package indicator

import (
	"math"
	"testing"

	"github.com/newthinker/confluence/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// risingBars builds a series whose close grows 1% per bar
func risingBars(n int) []core.Bar {
	bars := make([]core.Bar, n)
	price := 100.0
	for i := range bars {
		open := price
		closePrice := open * 1.01
		bars[i] = core.Bar{
			Open:   open,
			High:   closePrice * 1.002,
			Low:    open * 0.998,
			Close:  closePrice,
			Volume: 1000,
		}
		price = closePrice
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

// waveBars oscillates price so that both directional moves occur
func waveBars(n int) []core.Bar {
	bars := make([]core.Bar, n)
	prev := 100.0
	for i := range bars {
		c := 100 + 8*math.Sin(float64(i)*0.25) + 2*math.Cos(float64(i)*0.9)
		hi := math.Max(prev, c) + 0.6
		lo := math.Min(prev, c) - 0.6
		bars[i] = core.Bar{Open: prev, High: hi, Low: lo, Close: c, Volume: 1000 + float64(i%5)*150}
		prev = c
	}
	return bars
}

func TestTrueRange(t *testing.T) {
	bars := []core.Bar{
		{High: 10, Low: 8, Close: 9},
		{High: 12, Low: 11, Close: 11.5}, // gap up: |12-9| = 3
		{High: 11, Low: 7, Close: 8},     // |7-11.5| = 4.5
	}

	tr := TrueRange(bars)
	assert.Equal(t, []float64{2, 3, 4.5}, tr)
}

func TestATR_CumulativeWarmup(t *testing.T) {
	bars := []core.Bar{
		{High: 10, Low: 8, Close: 9},
		{High: 10, Low: 9, Close: 9.5},
		{High: 11, Low: 9, Close: 10},
	}

	atr := ATR(bars, 14)
	require.Len(t, atr, 3)
	assert.Equal(t, 2.0, atr[0])
	assert.Equal(t, 1.5, atr[1])
	assert.InDelta(t, 5.0/3.0, atr[2], 1e-12)
}

func TestADX_FlatSeriesIsZero(t *testing.T) {
	for i, p := range ADX(flatBars(60, 50), 14) {
		assert.Equal(t, 0.0, p.ADX, "index %d", i)
		assert.Equal(t, 0.0, p.PlusDI)
		assert.Equal(t, 0.0, p.MinusDI)
	}
}

func TestADX_RisingSeriesFavoursPlusDI(t *testing.T) {
	dmi := ADX(risingBars(60), 14)
	last := dmi[len(dmi)-1]

	assert.Greater(t, last.PlusDI, last.MinusDI)
	assert.Greater(t, last.ADX, 25.0)
}

func TestADX_Bounds(t *testing.T) {
	for i, p := range ADX(waveBars(200), 14) {
		if p.ADX < 0 || p.ADX > 100 || p.PlusDI < 0 || p.MinusDI < 0 {
			t.Fatalf("dmi[%d] = %+v out of bounds", i, p)
		}
	}
}

func TestBollinger_Containment(t *testing.T) {
	closes := core.Closes(waveBars(150))
	bands := Bollinger(closes, 20, 2)

	for i := 19; i < len(bands); i++ {
		b := bands[i]
		if !(b.Lower <= b.Middle && b.Middle <= b.Upper) {
			t.Fatalf("band[%d] not ordered: %+v", i, b)
		}
	}
}

func TestBollinger_FlatWidthIsZero(t *testing.T) {
	bands := Bollinger(core.Closes(flatBars(40, 10)), 20, 2)
	last := bands[len(bands)-1]

	assert.Equal(t, 0.0, last.Width)
	assert.Equal(t, 10.0, last.Upper)
	assert.Equal(t, 10.0, last.Lower)
}

func TestBollinger_KnownValue(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9} // mean 5, population std 2
	bands := Bollinger(values, 8, 2)
	last := bands[7]

	assert.Equal(t, 5.0, last.Middle)
	assert.Equal(t, 9.0, last.Upper)
	assert.Equal(t, 1.0, last.Lower)
	assert.InDelta(t, 2*2*2/5.0, last.Width, 1e-12)

	// Warm-up collapses to the value
	assert.Equal(t, BandPoint{Upper: 2, Middle: 2, Lower: 2}, bands[0])
}
