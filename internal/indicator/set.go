package indicator

import (
	"fmt"

	"github.com/newthinker/confluence/internal/core"
)

// Params holds indicator periods
type Params struct {
	EMAFast             int     `mapstructure:"ema_fast" yaml:"ema_fast"`
	EMAMid              int     `mapstructure:"ema_mid" yaml:"ema_mid"`
	EMASlow             int     `mapstructure:"ema_slow" yaml:"ema_slow"`
	RSIPeriod           int     `mapstructure:"rsi_period" yaml:"rsi_period"`
	StochPeriod         int     `mapstructure:"stoch_period" yaml:"stoch_period"`
	StochK              int     `mapstructure:"stoch_k" yaml:"stoch_k"`
	StochD              int     `mapstructure:"stoch_d" yaml:"stoch_d"`
	MACDFast            int     `mapstructure:"macd_fast" yaml:"macd_fast"`
	MACDSlow            int     `mapstructure:"macd_slow" yaml:"macd_slow"`
	MACDSignal          int     `mapstructure:"macd_signal" yaml:"macd_signal"`
	ATRPeriod           int     `mapstructure:"atr_period" yaml:"atr_period"`
	ADXPeriod           int     `mapstructure:"adx_period" yaml:"adx_period"`
	BBPeriod            int     `mapstructure:"bb_period" yaml:"bb_period"`
	BBMult              float64 `mapstructure:"bb_mult" yaml:"bb_mult"`
	VolumePeriod        int     `mapstructure:"volume_period" yaml:"volume_period"`
	StructureLookback   int     `mapstructure:"structure_lookback" yaml:"structure_lookback"`
	SwingStrength       int     `mapstructure:"swing_strength" yaml:"swing_strength"`
	DivergenceLookback  int     `mapstructure:"divergence_lookback" yaml:"divergence_lookback"`
	DivergenceThreshold float64 `mapstructure:"divergence_threshold" yaml:"divergence_threshold"`
}

// DefaultParams returns the standard indicator periods
func DefaultParams() Params {
	return Params{
		EMAFast:             9,
		EMAMid:              21,
		EMASlow:             50,
		RSIPeriod:           14,
		StochPeriod:         14,
		StochK:              3,
		StochD:              3,
		MACDFast:            12,
		MACDSlow:            26,
		MACDSignal:          9,
		ATRPeriod:           14,
		ADXPeriod:           14,
		BBPeriod:            20,
		BBMult:              2,
		VolumePeriod:        20,
		StructureLookback:   30,
		SwingStrength:       3,
		DivergenceLookback:  10,
		DivergenceThreshold: 4,
	}
}

// Validate reports the first period that is not positive
func (p Params) Validate() error {
	periods := []struct {
		name  string
		value int
	}{
		{"ema_fast", p.EMAFast},
		{"ema_mid", p.EMAMid},
		{"ema_slow", p.EMASlow},
		{"rsi_period", p.RSIPeriod},
		{"stoch_period", p.StochPeriod},
		{"stoch_k", p.StochK},
		{"stoch_d", p.StochD},
		{"macd_fast", p.MACDFast},
		{"macd_slow", p.MACDSlow},
		{"macd_signal", p.MACDSignal},
		{"atr_period", p.ATRPeriod},
		{"adx_period", p.ADXPeriod},
		{"bb_period", p.BBPeriod},
		{"volume_period", p.VolumePeriod},
		{"structure_lookback", p.StructureLookback},
		{"swing_strength", p.SwingStrength},
		{"divergence_lookback", p.DivergenceLookback},
	}
	for _, period := range periods {
		if period.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", period.name, period.value)
		}
	}
	if p.BBMult <= 0 {
		return fmt.Errorf("bb_mult must be positive, got %g", p.BBMult)
	}
	if p.DivergenceThreshold < 0 {
		return fmt.Errorf("divergence_threshold must not be negative, got %g", p.DivergenceThreshold)
	}
	return nil
}

// Set holds every indicator computed over one bar prefix
type Set struct {
	Bars       []core.Bar
	EMAFast    []float64
	EMAMid     []float64
	EMASlow    []float64
	RSI        []float64
	Stoch      []StochPoint
	MACD       []MACDPoint
	ATR        []float64
	DMI        []DMIPoint
	Bands      []BandPoint
	VWAP       []float64
	OBV        []float64
	Structure  Structure
	Divergence Divergence
	Volume     Pressure
	Pattern    *Pattern
}

// Compute evaluates all indicators over bars. Nothing after the last bar is read.
func Compute(bars []core.Bar, p Params) *Set {
	closes := core.Closes(bars)

	s := &Set{
		Bars:      bars,
		EMAFast:   EMA(closes, p.EMAFast),
		EMAMid:    EMA(closes, p.EMAMid),
		EMASlow:   EMA(closes, p.EMASlow),
		RSI:       RSI(closes, p.RSIPeriod),
		Stoch:     StochRSI(closes, p.RSIPeriod, p.StochPeriod, p.StochK, p.StochD),
		MACD:      MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal),
		ATR:       ATR(bars, p.ATRPeriod),
		DMI:       ADX(bars, p.ADXPeriod),
		Bands:     Bollinger(closes, p.BBPeriod, p.BBMult),
		VWAP:      VWAP(bars),
		OBV:       OBV(bars),
		Structure: MarketStructure(bars, p.StructureLookback, p.SwingStrength),
		Volume:    VolumePressure(bars, p.VolumePeriod),
	}
	s.Divergence = DetectDivergence(bars, s.RSI, p.DivergenceLookback, p.DivergenceThreshold)
	if pat, ok := DetectPattern(bars); ok {
		s.Pattern = &pat
	}

	return s
}

// Len returns the number of bars in the set
func (s *Set) Len() int {
	return len(s.Bars)
}
