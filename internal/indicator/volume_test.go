package indicator

import (
	"testing"

	"github.com/newthinker/confluence/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestVWAP(t *testing.T) {
	bars := []core.Bar{
		{High: 12, Low: 8, Close: 10, Volume: 100},  // tp 10
		{High: 22, Low: 18, Close: 20, Volume: 300}, // tp 20
	}

	vwap := VWAP(bars)
	assert.Equal(t, 10.0, vwap[0])
	assert.Equal(t, 17.5, vwap[1])
}

func TestVWAP_ZeroVolumeFallsBackToTypicalPrice(t *testing.T) {
	bars := []core.Bar{{High: 12, Low: 8, Close: 10}}
	assert.Equal(t, 10.0, VWAP(bars)[0])
}

func TestOBV(t *testing.T) {
	bars := []core.Bar{
		{Close: 10, Volume: 100},
		{Close: 11, Volume: 50},
		{Close: 11, Volume: 70},
		{Close: 9, Volume: 30},
	}

	assert.Equal(t, []float64{0, 50, 50, 20}, OBV(bars))
}

func TestVolumePressure(t *testing.T) {
	bars := make([]core.Bar, 20)
	for i := range bars {
		bars[i] = core.Bar{Open: 10, High: 11, Low: 9, Close: 10, Volume: 100}
	}
	// Spike bar closing at the high
	bars = append(bars, core.Bar{Open: 10, High: 12, Low: 10, Close: 12, Volume: 500})

	p := VolumePressure(bars, 20)

	// Average over the last 20 includes the spike: (19*100+500)/20 = 120
	assert.InDelta(t, 120.0, p.AverageVolume, 1e-9)
	assert.InDelta(t, 500.0/120.0, p.RelativeVolume, 1e-9)
	assert.True(t, p.Spike)
	assert.True(t, p.Climax)
	assert.Equal(t, 1.0, p.Pressure)
	assert.Equal(t, VolumeIncreasing, p.Trend)
}

func TestVolumePressure_Degenerate(t *testing.T) {
	p := VolumePressure(flatBars(10, 5), 20)
	assert.Equal(t, 0.0, p.Pressure, "zero range bar has no pressure")
	assert.Equal(t, 1.0, p.RelativeVolume)
	assert.Equal(t, VolumeStable, p.Trend)

	empty := VolumePressure(nil, 20)
	assert.Equal(t, 0.0, empty.RelativeVolume)
}
