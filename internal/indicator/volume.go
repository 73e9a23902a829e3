package indicator

import "github.com/newthinker/confluence/internal/core"

// VolumeTrend describes the short-term direction of traded volume
type VolumeTrend string

const (
	VolumeIncreasing VolumeTrend = "increasing"
	VolumeDecreasing VolumeTrend = "decreasing"
	VolumeStable     VolumeTrend = "stable"
)

const (
	spikeRatio  = 2.0
	climaxRatio = 3.5
)

// Pressure summarises volume activity on the latest bar
type Pressure struct {
	RelativeVolume float64     `json:"relative_volume"`
	AverageVolume  float64     `json:"average_volume"`
	Spike          bool        `json:"spike"`
	Climax         bool        `json:"climax"`
	Pressure       float64     `json:"pressure"` // -1 (close at low) .. 1 (close at high)
	Trend          VolumeTrend `json:"trend"`
}

// VWAP calculates cumulative volume-weighted average price from the start of bars
func VWAP(bars []core.Bar) []float64 {
	result := make([]float64, len(bars))
	var cumVolume, cumPV float64
	for i, b := range bars {
		tp := b.TypicalPrice()
		cumVolume += b.Volume
		cumPV += tp * b.Volume
		if cumVolume == 0 {
			result[i] = tp
			continue
		}
		result[i] = cumPV / cumVolume
	}
	return result
}

// OBV calculates On-Balance Volume starting from zero
func OBV(bars []core.Bar) []float64 {
	result := make([]float64, len(bars))
	var obv float64
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			obv += bars[i].Volume
		case bars[i].Close < bars[i-1].Close:
			obv -= bars[i].Volume
		}
		result[i] = obv
	}
	return result
}

// VolumePressure analyses relative volume and close location for the last bar
func VolumePressure(bars []core.Bar, period int) Pressure {
	if len(bars) == 0 {
		return Pressure{Trend: VolumeStable}
	}

	volumes := core.Volumes(bars)
	avg := last(RollingMean(volumes, period))
	latest := bars[len(bars)-1]

	p := Pressure{AverageVolume: avg, Trend: VolumeStable}
	if avg > 0 {
		p.RelativeVolume = latest.Volume / avg
	}
	p.Spike = p.RelativeVolume > spikeRatio
	p.Climax = p.RelativeVolume > climaxRatio

	if r := latest.Range(); r > 0 {
		p.Pressure = ((latest.Close-latest.Low)/r)*2 - 1
	}

	short := last(RollingMean(volumes, 5))
	if avg > 0 {
		switch ratio := short / avg; {
		case ratio > 1.1:
			p.Trend = VolumeIncreasing
		case ratio < 0.9:
			p.Trend = VolumeDecreasing
		}
	}

	return p
}
