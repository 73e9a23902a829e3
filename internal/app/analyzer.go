package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/confluence/internal/collector"
	"github.com/newthinker/confluence/internal/config"
	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/metrics"
	"github.com/newthinker/confluence/internal/signal"
)

// Request names one analysis
type Request struct {
	Symbol   string
	Interval string
	Profile  signal.ScoringProfile
	// Bars is the window size; zero uses the configured default
	Bars int
}

// Report is an analysis with its market context
type Report struct {
	Symbol    string           `json:"symbol"`
	Interval  string           `json:"interval"`
	Time      time.Time        `json:"time"`
	Price     float64          `json:"price"`
	Reference string           `json:"reference,omitempty"`
	Inputs    signal.Inputs    `json:"inputs"`
	Analysis  *signal.Analysis `json:"analysis"`
}

// Analyzer fetches a bar window plus its ancillary inputs and scores it
type Analyzer struct {
	src     *Sources
	cfg     config.AnalysisConfig
	metrics *metrics.Registry
	logger  *zap.Logger
}

// NewAnalyzer creates an analyzer over src
func NewAnalyzer(src *Sources, cfg config.AnalysisConfig, reg *metrics.Registry, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{src: src, cfg: cfg, metrics: reg, logger: logger}
}

func (a *Analyzer) window(req Request) int {
	n := req.Bars
	if n <= 0 {
		n = a.cfg.Bars
	}
	return max(n, signal.NewEngine(req.Profile).Warmup())
}

// Analyze fetches the latest window for req and scores it
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Report, error) {
	bars, err := a.fetch(ctx, req.Symbol, req.Interval, a.window(req))
	if err != nil {
		return nil, err
	}
	in := a.Inputs(ctx, req.Symbol, req.Interval, req.Profile, len(bars))
	return a.AnalyzeBars(req.Symbol, req.Interval, bars, req.Profile, in), nil
}

func (a *Analyzer) fetch(ctx context.Context, symbol, interval string, n int) ([]core.Bar, error) {
	bars, err := a.src.Bars.FetchRecent(ctx, symbol, interval, n)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s %s", symbol, interval))
	}
	if err := core.ValidateBars(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// Inputs gathers the reference bias and derivatives context. Each input is
// best effort: a failing collaborator leaves its field at the zero value.
func (a *Analyzer) Inputs(ctx context.Context, symbol, interval string, profile signal.ScoringProfile, n int) signal.Inputs {
	var in signal.Inputs
	log := a.logger.With(zap.String("symbol", symbol))

	if ref := a.reference(symbol); ref != "" {
		bars, err := a.fetch(ctx, ref, interval, n)
		if err != nil {
			log.Warn("reference fetch failed", zap.String("reference", ref), zap.Error(err))
		} else {
			in.ReferenceBias = signal.NewEngine(profile).Analyze(bars, signal.Inputs{}).Bias
		}
	}

	if a.src.Derivatives != nil && a.cfg.Derivatives {
		if rate, err := a.src.Derivatives.FetchFundingRate(ctx, symbol); err != nil {
			log.Warn("funding rate fetch failed", zap.Error(err))
		} else {
			in.FundingRate = rate
		}
		if chg, err := a.src.Derivatives.FetchOpenInterestChange(ctx, symbol, a.cfg.OIPeriod, a.cfg.OIPoints); err != nil {
			log.Warn("open interest fetch failed", zap.Error(err))
		} else {
			in.OpenInterestChangePct = chg
		}
	}
	return in
}

func (a *Analyzer) reference(symbol string) string {
	if a.cfg.Reference == "" {
		return ""
	}
	return collector.ReferenceSymbol(symbol, a.cfg.Reference)
}

// AnalyzeBars scores an already fetched window
func (a *Analyzer) AnalyzeBars(symbol, interval string, bars []core.Bar, profile signal.ScoringProfile, in signal.Inputs) *Report {
	start := time.Now()
	analysis := signal.NewEngine(profile, a.logger).Analyze(bars, in)
	a.metrics.RecordAnalysis(symbol, profile.Name, string(analysis.Bias), analysis.Score, time.Since(start).Seconds())

	last := bars[len(bars)-1]
	return &Report{
		Symbol:    symbol,
		Interval:  interval,
		Time:      last.Time,
		Price:     last.Close,
		Reference: a.reference(symbol),
		Inputs:    in,
		Analysis:  analysis,
	}
}
