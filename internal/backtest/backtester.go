package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/signal"
	"go.uber.org/zap"
)

// OHLCVProvider defines the interface for fetching historical bars
type OHLCVProvider interface {
	FetchHistory(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Bar, error)
}

// Request describes one independent backtest run
type Request struct {
	Symbol   string                `json:"symbol"`
	Interval string                `json:"interval"`
	Start    time.Time             `json:"start"`
	End      time.Time             `json:"end"`
	Profile  signal.ScoringProfile `json:"profile"`
	Config   Config                `json:"config"`
}

// BatchResult pairs a request's result with its error
type BatchResult struct {
	Request Request `json:"request"`
	Result  *Result `json:"result,omitempty"`
	Err     error   `json:"-"`
}

// Backtester runs walk-forward backtests against historical data
type Backtester struct {
	provider OHLCVProvider
	logger   *zap.Logger
}

// New creates a new Backtester with the given provider
func New(provider OHLCVProvider, logger ...*zap.Logger) *Backtester {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Backtester{
		provider: provider,
		logger:   l,
	}
}

// Run fetches history for the request and simulates it
func (b *Backtester) Run(ctx context.Context, req Request) (*Result, error) {
	bars, err := b.provider.FetchHistory(ctx, req.Symbol, req.Interval, req.Start, req.End)
	if err != nil {
		return nil, core.WrapError(core.ErrBacktestFailed, fmt.Errorf("fetch %s %s: %w", req.Symbol, req.Interval, err))
	}
	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no history for %s %s", req.Symbol, req.Interval))
	}
	if err := core.ValidateBars(bars); err != nil {
		return nil, err
	}

	if err := req.Profile.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	res, err := NewSimulator(req.Profile, req.Config, b.logger).Simulate(ctx, bars)
	if err != nil {
		return nil, err
	}
	res.Symbol = req.Symbol
	res.Interval = req.Interval

	b.logger.Info("backtest complete",
		zap.String("symbol", req.Symbol),
		zap.String("interval", req.Interval),
		zap.String("profile", req.Profile.Name),
		zap.Int("bars", len(bars)),
		zap.Int("trades", res.Stats.TotalTrades),
		zap.Float64("win_rate", res.Stats.WinRate),
		zap.Duration("elapsed", time.Since(started)),
	)

	return res, nil
}

// RunBatch runs independent requests concurrently. Runs share no state;
// results come back in request order.
func (b *Backtester) RunBatch(ctx context.Context, reqs []Request) []BatchResult {
	out := make([]BatchResult, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			res, err := b.Run(ctx, req)
			out[i] = BatchResult{Request: req, Result: res, Err: err}
			if err != nil {
				b.logger.Warn("batch backtest failed",
					zap.String("symbol", req.Symbol),
					zap.String("interval", req.Interval),
					zap.Error(err),
				)
			}
		}(i, req)
	}
	wg.Wait()

	return out
}
