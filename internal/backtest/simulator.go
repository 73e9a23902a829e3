package backtest

import (
	"context"

	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/signal"
	"go.uber.org/zap"
)

// Simulator replays a bar series through the scoring engine, one growing
// prefix at a time. A Simulator owns no run state and may be reused.
type Simulator struct {
	engine  *signal.Engine
	profile signal.ScoringProfile
	cfg     Config
	logger  *zap.Logger
}

// NewSimulator creates a simulator for a profile
func NewSimulator(profile signal.ScoringProfile, cfg Config, logger ...*zap.Logger) *Simulator {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Simulator{
		engine:  signal.NewEngine(profile),
		profile: profile,
		cfg:     cfg.resolve(profile),
		logger:  l,
	}
}

// Config returns the resolved simulation settings
func (s *Simulator) Config() Config {
	return s.cfg
}

// run is the mutable state of one simulation
type run struct {
	capital  float64
	peak     float64
	maxDD    float64
	pos      *Position
	trades   []Trade
	equity   []float64
	drawdown []float64
}

func (r *run) book(t Trade) {
	r.trades = append(r.trades, t)
	r.capital += t.PnL
	if r.capital > r.peak {
		r.peak = r.capital
	}
	if r.peak > 0 {
		if dd := (r.peak - r.capital) / r.peak * 100; dd > r.maxDD {
			r.maxDD = dd
		}
	}
}

func (r *run) mark() {
	r.equity = append(r.equity, r.capital)
	r.drawdown = append(r.drawdown, r.maxDD)
}

// Simulate runs the state machine over bars. The context is checked between bars.
func (s *Simulator) Simulate(ctx context.Context, bars []core.Bar) (*Result, error) {
	cfg := s.cfg
	st := &run{capital: cfg.InitialCapital, peak: cfg.InitialCapital}

	res := &Result{Profile: s.profile.Name, Bars: len(bars)}
	if len(bars) > 0 {
		res.StartDate = bars[0].Time
		res.EndDate = bars[len(bars)-1].Time
	}

	start := max(cfg.WarmupBars, s.engine.Warmup()) - 1
	n := len(bars)

	for i := start; i < n-1; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		a := s.engine.Analyze(bars[:i+1], signal.Inputs{})

		if st.pos == nil {
			st.pos = s.tryEntry(a, bars[:i+1], st.capital)
		}

		if p := st.pos; p != nil {
			flip := p.EntryIndex != i &&
				a.Bias == p.Direction.Opposite() &&
				abs(a.Score) >= cfg.FlipScore
			var atr float64
			if a.Indicators != nil {
				atr = a.Indicators.ATR
			}

			if price, reason, done := p.evaluate(bars[i+1], i+1, flip, atr, cfg.MaxHoldBars); done {
				st.book(p.close(price, i+1, bars[i+1], reason))
				st.pos = nil
			}
		}

		st.mark()
	}

	if st.pos != nil {
		last := bars[n-1]
		st.book(st.pos.close(last.Close, n-1, last, ExitEnd))
		st.pos = nil
		st.mark()
	}

	res.Trades = st.trades
	res.EquityCurve = st.equity
	res.DrawdownCurve = st.drawdown
	res.Stats = CalculateStats(st.trades, cfg.InitialCapital, st.capital, st.maxDD)

	s.logger.Debug("simulation complete",
		zap.String("profile", s.profile.Name),
		zap.Int("bars", n),
		zap.Int("trades", len(st.trades)),
		zap.Float64("final_capital", st.capital),
	)

	return res, nil
}

// tryEntry applies the entry filters to the latest analysis of prefix
func (s *Simulator) tryEntry(a *signal.Analysis, prefix []core.Bar, capital float64) *Position {
	cfg := s.cfg
	tp := a.TradePlan
	switch {
	case !a.ShouldTrade || tp == nil:
		return nil
	case abs(a.Score) < cfg.MinScore:
		return nil
	case !a.EntryQuality.AtLeast(cfg.MinQuality):
		return nil
	case a.Indicators == nil || a.Indicators.RelativeVolume < cfg.MinRelVolume:
		return nil
	}

	bar := prefix[len(prefix)-1]
	if (a.Bias == core.BiasLong && !bar.IsBullish()) || (a.Bias == core.BiasShort && !bar.IsBearish()) {
		return nil
	}

	if cfg.HTFFactor > 1 {
		htf := s.engine.Analyze(Aggregate(prefix, cfg.HTFFactor), signal.Inputs{})
		if htf.Bias != a.Bias {
			return nil
		}
	}

	if tp.Risk <= 0 || capital <= 0 {
		return nil
	}
	size := capital * cfg.RiskFraction / tp.Risk

	return openPosition(tp, bar, len(prefix)-1, size, a)
}

// Aggregate groups bars into completed higher-timeframe bars of factor base bars.
// A trailing partial group is dropped.
func Aggregate(bars []core.Bar, factor int) []core.Bar {
	if factor <= 1 {
		return bars
	}
	groups := len(bars) / factor
	out := make([]core.Bar, groups)
	for g := 0; g < groups; g++ {
		chunk := bars[g*factor : (g+1)*factor]
		agg := core.Bar{
			Time:  chunk[0].Time,
			Open:  chunk[0].Open,
			High:  chunk[0].High,
			Low:   chunk[0].Low,
			Close: chunk[len(chunk)-1].Close,
		}
		for _, b := range chunk {
			agg.High = max(agg.High, b.High)
			agg.Low = min(agg.Low, b.Low)
			agg.Volume += b.Volume
		}
		out[g] = agg
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
