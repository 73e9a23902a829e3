package backtest

import (
	"time"

	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/signal"
)

// ExitReason records why a position was closed
type ExitReason string

const (
	ExitStopLoss    ExitReason = "Stop Loss"
	ExitBreakeven   ExitReason = "Breakeven Stop"
	ExitTrailing    ExitReason = "Trailing Stop"
	ExitFinalTarget ExitReason = "Final Target"
	ExitSignalFlip  ExitReason = "Signal Flip"
	ExitTime        ExitReason = "Time Exit"
	ExitEnd         ExitReason = "End"
)

// Config controls the simulator. Zero-valued filter fields take the profile's value.
type Config struct {
	InitialCapital float64 `mapstructure:"initial_capital" json:"initial_capital"`
	RiskFraction   float64 `mapstructure:"risk_fraction" json:"risk_fraction"`
	MaxHoldBars    int     `mapstructure:"max_hold_bars" json:"max_hold_bars"`

	WarmupBars   int          `mapstructure:"warmup_bars" json:"warmup_bars,omitempty"`
	MinScore     float64      `mapstructure:"min_score" json:"min_score,omitempty"`
	FlipScore    float64      `mapstructure:"flip_score" json:"flip_score,omitempty"`
	MinQuality   signal.Grade `mapstructure:"min_quality" json:"min_quality,omitempty"`
	MinRelVolume float64      `mapstructure:"min_rel_volume" json:"min_rel_volume,omitempty"`
	HTFFactor    int          `mapstructure:"htf_factor" json:"htf_factor,omitempty"`
}

// DefaultConfig returns the standard simulation settings
func DefaultConfig() Config {
	return Config{
		InitialCapital: 10000,
		RiskFraction:   0.01,
		MaxHoldBars:    48,
	}
}

// resolve fills unset fields from defaults and the scoring profile
func (c Config) resolve(p signal.ScoringProfile) Config {
	d := DefaultConfig()
	if c.InitialCapital <= 0 {
		c.InitialCapital = d.InitialCapital
	}
	if c.RiskFraction <= 0 {
		c.RiskFraction = d.RiskFraction
	}
	if c.MaxHoldBars <= 0 {
		c.MaxHoldBars = d.MaxHoldBars
	}
	if c.WarmupBars <= 0 {
		c.WarmupBars = p.WarmupBars
	}
	if c.MinScore <= 0 {
		c.MinScore = p.BiasThreshold
	}
	if c.FlipScore <= 0 {
		c.FlipScore = p.BiasThreshold
	}
	if c.MinQuality == "" {
		c.MinQuality = p.MinQuality
	}
	if c.MinRelVolume <= 0 {
		c.MinRelVolume = p.MinRelVolume
	}
	if c.HTFFactor <= 0 {
		c.HTFFactor = p.HTFFactor
	}
	return c
}

// Position is the open trade owned by one simulation run
type Position struct {
	Direction    core.Bias
	Entry        float64
	StopLoss     float64
	OriginalStop float64
	Targets      []float64
	TargetsHit   []bool
	EntryIndex   int
	EntryTime    time.Time
	Size         float64
	Trailing     bool
	// Most favourable price reached since entry
	Extreme float64

	TrailActivationR float64
	TrailATRMult     float64

	Score   float64
	Quality signal.Grade
}

// Risk is the initial entry-to-stop distance
func (p *Position) Risk() float64 {
	if p.Entry > p.OriginalStop {
		return p.Entry - p.OriginalStop
	}
	return p.OriginalStop - p.Entry
}

// PnL returns the profit of closing the whole position at price
func (p *Position) PnL(price float64) float64 {
	if p.Direction == core.BiasLong {
		return (price - p.Entry) * p.Size
	}
	return (p.Entry - price) * p.Size
}

// Trade is an immutable ledger entry
type Trade struct {
	Direction  core.Bias    `json:"direction"`
	EntryIndex int          `json:"entry_index"`
	ExitIndex  int          `json:"exit_index"`
	EntryTime  time.Time    `json:"entry_time"`
	ExitTime   time.Time    `json:"exit_time"`
	EntryPrice float64      `json:"entry_price"`
	ExitPrice  float64      `json:"exit_price"`
	StopLoss   float64      `json:"stop_loss"`
	Size       float64      `json:"size"`
	PnL        float64      `json:"pnl"`
	PnLInR     float64      `json:"pnl_r"`
	ExitReason ExitReason   `json:"exit_reason"`
	Duration   int          `json:"duration"` // bars held
	TargetsHit int          `json:"targets_hit"`
	Score      float64      `json:"score"`
	Quality    signal.Grade `json:"quality"`
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.PnL > 0
}

// Stats are aggregate metrics over a trade ledger
type Stats struct {
	TotalTrades   int                `json:"total_trades"`
	WinningTrades int                `json:"winning_trades"`
	LosingTrades  int                `json:"losing_trades"`
	WinRate       float64            `json:"win_rate"`     // percent
	AvgWinR       float64            `json:"avg_win_r"`    // mean R of winners
	AvgLossR      float64            `json:"avg_loss_r"`   // mean R of losers, <= 0
	TotalReturn   float64            `json:"total_return"` // percent of initial capital
	MaxDrawdown   float64            `json:"max_drawdown"` // percent of peak capital
	ProfitFactor  float64            `json:"profit_factor"`
	Expectancy    float64            `json:"expectancy"` // mean R per trade
	SharpeR       float64            `json:"sharpe_r"`   // mean/stddev of R multiples
	FinalCapital  float64            `json:"final_capital"`
	ExitReasons   map[ExitReason]int `json:"exit_reasons"`
}

// Result holds the complete backtest output
type Result struct {
	Symbol        string    `json:"symbol"`
	Interval      string    `json:"interval"`
	Profile       string    `json:"profile"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	Bars          int       `json:"bars"`
	Trades        []Trade   `json:"trades"`
	Stats         Stats     `json:"stats"`
	EquityCurve   []float64 `json:"equity_curve"`
	DrawdownCurve []float64 `json:"drawdown_curve"` // running max drawdown percent
}
