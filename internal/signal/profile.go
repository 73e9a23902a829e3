package signal

import (
	"fmt"
	"sort"

	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/indicator"
	"github.com/newthinker/confluence/internal/plan"
)

// DefaultProfile is the preset used when none is named
const DefaultProfile = "intraday"

// minWarmup is the fewest bars any profile may analyse
const minWarmup = 26

// ScoringProfile holds every tunable of the engine. Presets are copies, never shared.
type ScoringProfile struct {
	Name        string `mapstructure:"name" yaml:"name" json:"name"`
	Description string `mapstructure:"description" yaml:"description" json:"description"`

	BiasThreshold   float64              `mapstructure:"bias_threshold" yaml:"bias_threshold" json:"bias_threshold"`
	ConfidenceScale float64              `mapstructure:"confidence_scale" yaml:"confidence_scale" json:"confidence_scale"`
	CategoryMax     map[Category]float64 `mapstructure:"category_max" yaml:"category_max" json:"category_max"`
	// Weights overrides rule weights by rule ID; 0 disables a rule
	Weights map[string]float64 `mapstructure:"weights" yaml:"weights,omitempty" json:"weights,omitempty"`

	StrongTrendADX   float64 `mapstructure:"strong_trend_adx" yaml:"strong_trend_adx" json:"strong_trend_adx"`
	VolumeSpikeRatio float64 `mapstructure:"volume_spike_ratio" yaml:"volume_spike_ratio" json:"volume_spike_ratio"`
	FundingExtreme   float64 `mapstructure:"funding_extreme" yaml:"funding_extreme" json:"funding_extreme"`
	OIChangeFloor    float64 `mapstructure:"oi_change_floor" yaml:"oi_change_floor" json:"oi_change_floor"`

	// Trade filters
	MinADX       float64 `mapstructure:"min_adx" yaml:"min_adx" json:"min_adx"`
	SqueezeWidth float64 `mapstructure:"squeeze_width" yaml:"squeeze_width" json:"squeeze_width"`
	MinRelVolume float64 `mapstructure:"min_rel_volume" yaml:"min_rel_volume" json:"min_rel_volume"`
	MinQuality   Grade   `mapstructure:"min_quality" yaml:"min_quality" json:"min_quality"`

	WarmupBars int `mapstructure:"warmup_bars" yaml:"warmup_bars" json:"warmup_bars"`
	// HTFFactor groups base bars into a higher timeframe for entry confirmation; 0 disables
	HTFFactor int `mapstructure:"htf_factor" yaml:"htf_factor" json:"htf_factor"`

	Indicators indicator.Params `mapstructure:"indicators" yaml:"indicators" json:"indicators"`
	Plan       plan.Profile     `mapstructure:"plan" yaml:"plan" json:"plan"`
}

func defaultCategoryMax() map[Category]float64 {
	return map[Category]float64{
		CategoryTrend:       25,
		CategoryMomentum:    25,
		CategoryVolume:      15,
		CategoryVolatility:  15,
		CategoryPriceAction: 20,
		CategoryConfluence:  15,
	}
}

func intraday() ScoringProfile {
	return ScoringProfile{
		Name:             "intraday",
		Description:      "Short-horizon dashboard scoring, threshold 15",
		BiasThreshold:    15,
		ConfidenceScale:  1,
		CategoryMax:      defaultCategoryMax(),
		StrongTrendADX:   25,
		VolumeSpikeRatio: 1.5,
		FundingExtreme:   0.0005,
		OIChangeFloor:    3,
		MinADX:           20,
		SqueezeWidth:     0.03,
		MinRelVolume:     0.5,
		MinQuality:       GradeB,
		WarmupBars:       50,
		Indicators:       indicator.DefaultParams(),
		Plan:             plan.ShortHorizon(),
	}
}

func scalp() ScoringProfile {
	p := intraday()
	p.Name = "scalp"
	p.Description = "Fast scalping with a tight ATR stop, threshold 10"
	p.BiasThreshold = 10
	p.ConfidenceScale = 2
	p.SqueezeWidth = 0.015
	p.MinADX = 18
	p.MinRelVolume = 0.8
	p.Plan.Name = "scalp"
	p.Plan.StopATRMult = 1.0
	return p
}

func swing() ScoringProfile {
	p := intraday()
	p.Name = "swing"
	p.Description = "Trend following with a wide stop, trailing exits and higher-timeframe confirmation"
	p.BiasThreshold = 20
	p.SqueezeWidth = 0.04
	p.MinADX = 25
	p.MinRelVolume = 0.6
	p.HTFFactor = 4
	p.Plan = plan.Swing()
	return p
}

func highWinRate() ScoringProfile {
	p := intraday()
	p.Name = "high_win_rate"
	p.Description = "Selective entries: threshold 25, grade A or better"
	p.BiasThreshold = 25
	p.MinADX = 25
	p.MinRelVolume = 1.0
	p.MinQuality = GradeA
	return p
}

var presets = map[string]func() ScoringProfile{
	"intraday":      intraday,
	"scalp":         scalp,
	"swing":         swing,
	"high_win_rate": highWinRate,
}

// Names returns preset names in sorted order
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Presets returns a fresh copy of every named preset
func Presets() map[string]ScoringProfile {
	out := make(map[string]ScoringProfile, len(presets))
	for name, fn := range presets {
		out[name] = fn()
	}
	return out
}

// Lookup returns a copy of the named preset. An empty name selects the default.
func Lookup(name string) (ScoringProfile, error) {
	if name == "" {
		name = DefaultProfile
	}
	fn, ok := presets[name]
	if !ok {
		return ScoringProfile{}, core.WrapError(core.ErrProfileNotFound, fmt.Errorf("%q", name))
	}
	return fn(), nil
}

// Weight returns the effective weight of a rule under this profile
func (p *ScoringProfile) Weight(r Rule) float64 {
	if w, ok := p.Weights[r.ID]; ok {
		return w
	}
	return r.Weight
}

// Validate checks that the profile can drive the engine
func (p *ScoringProfile) Validate() error {
	switch {
	case p.BiasThreshold <= 0:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("profile %s: bias_threshold must be positive", p.Name))
	case p.ConfidenceScale <= 0:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("profile %s: confidence_scale must be positive", p.Name))
	case p.WarmupBars < minWarmup:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("profile %s: warmup_bars must be at least %d", p.Name, minWarmup))
	case !p.MinQuality.Valid():
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("profile %s: unknown min_quality %q", p.Name, p.MinQuality))
	case len(p.Plan.TargetsR) == 0:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("profile %s: plan needs at least one target", p.Name))
	case p.HTFFactor < 0:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("profile %s: htf_factor must not be negative", p.Name))
	}
	if err := p.Indicators.Validate(); err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("profile %s: indicators: %w", p.Name, err))
	}
	for i, r := range p.Plan.TargetsR {
		if r <= 0 || (i > 0 && r <= p.Plan.TargetsR[i-1]) {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("profile %s: targets_r must be positive and ascending", p.Name))
		}
	}
	for id := range p.Weights {
		if _, ok := ruleByID[id]; !ok {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("profile %s: unknown rule %q", p.Name, id))
		}
	}
	return nil
}
