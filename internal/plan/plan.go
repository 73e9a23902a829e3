// Package plan derives entry, stop and target levels from a directional bias.
package plan

import (
	"math"

	"github.com/newthinker/confluence/internal/core"
)

// StopPolicy picks between ATR and structure stop candidates
type StopPolicy string

const (
	// StopTighter keeps the candidate closest to entry
	StopTighter StopPolicy = "tighter"
	// StopWider keeps the candidate furthest from entry
	StopWider StopPolicy = "wider"
)

// Profile parameterises plan generation
type Profile struct {
	Name             string     `mapstructure:"name" yaml:"name" json:"name"`
	StopATRMult      float64    `mapstructure:"stop_atr_mult" yaml:"stop_atr_mult" json:"stop_atr_mult"`
	StopPolicy       StopPolicy `mapstructure:"stop_policy" yaml:"stop_policy" json:"stop_policy"`
	StructureBuffer  float64    `mapstructure:"structure_buffer" yaml:"structure_buffer" json:"structure_buffer"`
	TargetsR         []float64  `mapstructure:"targets_r" yaml:"targets_r" json:"targets_r"`
	TrailActivationR float64    `mapstructure:"trail_activation_r" yaml:"trail_activation_r" json:"trail_activation_r"`
	TrailATRMult     float64    `mapstructure:"trail_atr_mult" yaml:"trail_atr_mult" json:"trail_atr_mult"`
	PullbackEntry    bool       `mapstructure:"pullback_entry" yaml:"pullback_entry" json:"pullback_entry"`
}

// ShortHorizon is the intraday target ladder
func ShortHorizon() Profile {
	return Profile{
		Name:            "short_horizon",
		StopATRMult:     1.5,
		StopPolicy:      StopTighter,
		StructureBuffer: 0.2,
		TargetsR:        []float64{1.5, 2.5, 4},
		PullbackEntry:   true,
	}
}

// Swing is the trend-following ladder with a trailing stop
func Swing() Profile {
	return Profile{
		Name:             "swing",
		StopATRMult:      2.0,
		StopPolicy:       StopWider,
		StructureBuffer:  0.3,
		TargetsR:         []float64{3, 5, 8, 12},
		TrailActivationR: 1.5,
		TrailATRMult:     2.5,
	}
}

// Trails reports whether the profile uses a trailing stop
func (p Profile) Trails() bool {
	return p.TrailActivationR > 0 && p.TrailATRMult > 0
}

// Input is what a plan is derived from: the latest bar's analysis
type Input struct {
	Direction core.Bias
	Price     float64
	ATR       float64
	FastEMA   float64
	SlowEMA   float64
	// Most recent swing levels; zero when absent
	SwingLow  float64
	SwingHigh float64
}

// TradePlan is an immutable set of levels for one signal
type TradePlan struct {
	Direction        core.Bias `json:"direction"`
	Entry            float64   `json:"entry"`
	PullbackEntry    float64   `json:"pullback_entry,omitempty"`
	StopLoss         float64   `json:"stop_loss"`
	Targets          []float64 `json:"targets"`
	TargetsR         []float64 `json:"targets_r"`
	Risk             float64   `json:"risk"`
	RiskPercent      float64   `json:"risk_percent"`
	ATR              float64   `json:"atr"`
	TrailActivationR float64   `json:"trail_activation_r,omitempty"`
	TrailATRMult     float64   `json:"trail_atr_mult,omitempty"`
}

// FinalTarget returns the last rung of the ladder
func (tp *TradePlan) FinalTarget() float64 {
	if len(tp.Targets) == 0 {
		return 0
	}
	return tp.Targets[len(tp.Targets)-1]
}

// Generate builds a plan, or returns nil when the bias is neutral or no stop
// yields positive risk.
func Generate(in Input, p Profile) *TradePlan {
	if in.Direction != core.BiasLong && in.Direction != core.BiasShort {
		return nil
	}
	if in.Price <= 0 || math.IsNaN(in.Price) {
		return nil
	}

	stop, ok := chooseStop(in, p)
	if !ok {
		return nil
	}
	risk := math.Abs(in.Price - stop)
	if risk <= 0 {
		return nil
	}

	sign := 1.0
	if in.Direction == core.BiasShort {
		sign = -1
	}

	tp := &TradePlan{
		Direction:        in.Direction,
		Entry:            in.Price,
		StopLoss:         stop,
		Targets:          make([]float64, len(p.TargetsR)),
		TargetsR:         append([]float64(nil), p.TargetsR...),
		Risk:             risk,
		RiskPercent:      risk / in.Price * 100,
		ATR:              in.ATR,
		TrailActivationR: p.TrailActivationR,
		TrailATRMult:     p.TrailATRMult,
	}
	for i, r := range p.TargetsR {
		tp.Targets[i] = in.Price + sign*r*risk
	}

	if p.PullbackEntry && onRiskSide(in.Direction, in.FastEMA, in.Price) && !onRiskSide(in.Direction, in.FastEMA, stop) {
		tp.PullbackEntry = in.FastEMA
	}

	return tp
}

// onRiskSide reports whether level sits on the losing side of ref for the direction
func onRiskSide(dir core.Bias, level, ref float64) bool {
	if level <= 0 {
		return false
	}
	if dir == core.BiasLong {
		return level < ref
	}
	return level > ref
}

func chooseStop(in Input, p Profile) (float64, bool) {
	var candidates []float64

	if in.ATR > 0 && p.StopATRMult > 0 {
		off := in.ATR * p.StopATRMult
		if in.Direction == core.BiasLong {
			candidates = append(candidates, in.Price-off)
		} else {
			candidates = append(candidates, in.Price+off)
		}
	}

	buffer := in.ATR * p.StructureBuffer
	var level float64
	if in.Direction == core.BiasLong {
		level = in.SlowEMA
		if in.SwingLow > 0 {
			level = in.SwingLow
		}
		level -= buffer
	} else {
		level = in.SlowEMA
		if in.SwingHigh > 0 {
			level = in.SwingHigh
		}
		level += buffer
	}
	if onRiskSide(in.Direction, level, in.Price) {
		candidates = append(candidates, level)
	}

	var kept []float64
	for _, c := range candidates {
		if onRiskSide(in.Direction, c, in.Price) {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return 0, false
	}

	best := kept[0]
	for _, c := range kept[1:] {
		closer := math.Abs(in.Price-c) < math.Abs(in.Price-best)
		if (p.StopPolicy == StopWider) != closer {
			best = c
		}
	}
	return best, true
}
