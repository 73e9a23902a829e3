package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSI_HeldAtFiftyDuringWarmup(t *testing.T) {
	prices := []float64{1, 2, 3, 2, 1, 2, 3, 4, 5, 6}
	rsi := RSI(prices, 5)

	require.Len(t, rsi, len(prices))
	for i := 0; i < 5; i++ {
		assert.Equal(t, 50.0, rsi[i], "index %d", i)
	}
}

func TestRSI_Increasing(t *testing.T) {
	prices := make([]float64, 15)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}

	rsi := RSI(prices, 14)
	assert.Equal(t, 100.0, rsi[14], "no losses should pin RSI at 100")
}

func TestRSI_Bounds(t *testing.T) {
	prices := make([]float64, 300)
	for i := range prices {
		prices[i] = 100 + 10*math.Sin(float64(i)*0.21) + 3*math.Cos(float64(i)*1.7)
	}

	for i, v := range RSI(prices, 14) {
		if v < 0 || v > 100 {
			t.Fatalf("rsi[%d] = %f out of bounds", i, v)
		}
	}
}

func TestRSI_KnownValue(t *testing.T) {
	// Two gains of 1 and one loss of 1 over period 3
	prices := []float64{10, 11, 12, 11}
	rsi := RSI(prices, 3)

	// avgGain 2/3, avgLoss 1/3, RS 2 -> RSI 66.67
	assert.InDelta(t, 100-100/3.0, rsi[3], 1e-9)
}

func TestRSI_ShortInput(t *testing.T) {
	rsi := RSI([]float64{1, 2, 3}, 14)
	assert.Equal(t, []float64{50, 50, 50}, rsi)
}

func TestStochRSI_FlatRSIIsFifty(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 * math.Pow(1.01, float64(i))
	}

	stoch := StochRSI(prices, 14, 14, 3, 3)
	require.Len(t, stoch, len(prices))
	last := stoch[len(stoch)-1]
	assert.Equal(t, 50.0, last.K)
	assert.Equal(t, 50.0, last.D)
}

func TestStochRSI_Bounds(t *testing.T) {
	prices := make([]float64, 200)
	for i := range prices {
		prices[i] = 50 + 5*math.Sin(float64(i)*0.3) + float64(i%7)
	}

	for i, p := range StochRSI(prices, 14, 14, 3, 3) {
		if p.K < 0 || p.K > 100 || p.D < 0 || p.D > 100 {
			t.Fatalf("stoch[%d] = %+v out of bounds", i, p)
		}
	}
}

func TestStochRSI_SaturatedRally(t *testing.T) {
	prices := make([]float64, 120)
	for i := range prices {
		if i < 60 {
			prices[i] = 100 + 3*math.Sin(float64(i)*0.7) + 0.37*float64(i%5)
		} else {
			prices[i] = prices[i-1] * 1.013
		}
	}

	stoch := StochRSI(prices, 14, 14, 3, 3)
	for i := 60; i < len(stoch); i++ {
		assert.LessOrEqual(t, stoch[i].K, 100.0, "K at %d", i)
		assert.LessOrEqual(t, stoch[i].D, 100.0, "D at %d", i)
		assert.GreaterOrEqual(t, stoch[i].K, 0.0, "K at %d", i)
	}
	assert.Equal(t, 100.0, clampPercent(100.00000000000001))
	assert.Equal(t, 0.0, clampPercent(-1e-15))
}

func TestMACD_Relations(t *testing.T) {
	prices := make([]float64, 80)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}

	macd := MACD(prices, 12, 26, 9)
	require.Len(t, macd, len(prices))

	assert.Equal(t, 0.0, macd[0].MACD)
	for i, p := range macd {
		assert.InDelta(t, p.MACD-p.Signal, p.Histogram, 1e-12, "index %d", i)
	}
	assert.Greater(t, macd[len(macd)-1].MACD, 0.0, "rising prices should give positive MACD")
}
