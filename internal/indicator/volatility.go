package indicator

import (
	"math"

	"github.com/newthinker/confluence/internal/core"
)

// DMIPoint is one ADX/DI reading
type DMIPoint struct {
	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"plus_di"`
	MinusDI float64 `json:"minus_di"`
}

// BandPoint is one Bollinger Band reading. Width is relative to the middle band.
type BandPoint struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
	Width  float64 `json:"width"`
}

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|); the first bar uses high-low
func TrueRange(bars []core.Bar) []float64 {
	result := make([]float64, len(bars))
	for i, b := range bars {
		if i == 0 {
			result[i] = b.High - b.Low
			continue
		}
		prevClose := bars[i-1].Close
		result[i] = math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
	}
	return result
}

// ATR calculates Average True Range as the rolling mean of true range
func ATR(bars []core.Bar, period int) []float64 {
	return RollingMean(TrueRange(bars), period)
}

// ADX calculates the Average Directional Index with +DI and -DI
func ADX(bars []core.Bar, period int) []DMIPoint {
	n := len(bars)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)

	for i := 1; i < n; i++ {
		upMove := bars[i].High - bars[i-1].High
		downMove := bars[i-1].Low - bars[i].Low
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	smoothTR := RollingSum(TrueRange(bars), period)
	smoothPlus := RollingSum(plusDM, period)
	smoothMinus := RollingSum(minusDM, period)

	plusDI := make([]float64, n)
	minusDI := make([]float64, n)
	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		if smoothTR[i] != 0 {
			plusDI[i] = smoothPlus[i] / smoothTR[i] * 100
			minusDI[i] = smoothMinus[i] / smoothTR[i] * 100
		}
		if sum := plusDI[i] + minusDI[i]; sum != 0 {
			dx[i] = math.Abs(plusDI[i]-minusDI[i]) / sum * 100
		}
	}

	// Cumulative mean until 2*period bars, rolling mean of period after
	rolling := RollingMean(dx, period)
	result := make([]DMIPoint, n)
	var cum float64
	for i := 0; i < n; i++ {
		cum += dx[i]
		adx := rolling[i]
		if i < period*2 {
			adx = cum / float64(i+1)
		}
		result[i] = DMIPoint{ADX: adx, PlusDI: plusDI[i], MinusDI: minusDI[i]}
	}

	return result
}

// Bollinger calculates bands from the rolling mean and population standard deviation of values
func Bollinger(values []float64, period int, mult float64) []BandPoint {
	result := make([]BandPoint, len(values))
	for i, v := range values {
		if i < period-1 || period <= 0 {
			result[i] = BandPoint{Upper: v, Middle: v, Lower: v}
			continue
		}

		window := values[i-period+1 : i+1]
		var sum float64
		for _, w := range window {
			sum += w
		}
		mean := sum / float64(period)

		var sq float64
		for _, w := range window {
			sq += (w - mean) * (w - mean)
		}
		std := math.Sqrt(sq / float64(period))

		var width float64
		if mean != 0 {
			width = mult * std * 2 / mean
		}
		result[i] = BandPoint{
			Upper:  mean + mult*std,
			Middle: mean,
			Lower:  mean - mult*std,
			Width:  width,
		}
	}
	return result
}
