package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/confluence/internal/collector"
	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/metrics"
	"github.com/newthinker/confluence/internal/notifier"
	"github.com/newthinker/confluence/internal/router"
	"github.com/newthinker/confluence/internal/signal"
	"github.com/newthinker/confluence/internal/storage/alerts"
)

// MonitorOptions configure one watched symbol
type MonitorOptions struct {
	Symbol   string
	Interval string
	Profile  signal.ScoringProfile
	// Window is the rolling bar count kept in memory
	Window int
	// Poll is the refresh cadence without a stream, and the minimum gap
	// between re-scores of a forming bar with one
	Poll time.Duration
	// Stream uses the provider's kline stream when it has one
	Stream bool
	// InputsEvery is how often reference and derivatives inputs refresh
	InputsEvery time.Duration
	// Routing filters alerts before delivery; the zero value delivers all
	Routing router.Config
}

// Monitor re-scores a symbol as bars arrive and alerts on bias changes
type Monitor struct {
	analyzer  *Analyzer
	notifiers *notifier.Registry
	router    *router.Router
	metrics   *metrics.Registry
	logger    *zap.Logger
	opts      MonitorOptions
	now       func() time.Time

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	bars       []core.Bar
	last       *Report
	scoredAt   time.Time
	inputs     signal.Inputs
	inputsAt   time.Time
	alerts     int
	suppressed int
}

// NewMonitor creates a monitor; notifiers may be nil
func NewMonitor(analyzer *Analyzer, notifiers *notifier.Registry, opts MonitorOptions, reg *metrics.Registry, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifiers == nil {
		notifiers = notifier.NewRegistry()
	}
	if opts.Window <= 0 {
		opts.Window = 100
	}
	if opts.Poll <= 0 {
		opts.Poll = 5 * time.Second
	}
	if opts.InputsEvery <= 0 {
		opts.InputsEvery = time.Minute
	}
	logger = logger.With(zap.String("symbol", opts.Symbol), zap.String("interval", opts.Interval))
	return &Monitor{
		analyzer:  analyzer,
		notifiers: notifiers,
		router:    router.New(opts.Routing, notifiers, logger.Named("router")),
		metrics:   reg,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// SetHistory records every routed alert in store
func (m *Monitor) SetHistory(store alerts.Store) {
	m.router.SetStore(store)
}

// Start runs until ctx is cancelled or Stop is called
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("monitor already running")
	}
	m.running = true
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	streamer := m.analyzer.src.Streamer
	m.logger.Info("monitor starting",
		zap.String("profile", m.opts.Profile.Name),
		zap.Int("window", m.opts.Window),
		zap.Bool("stream", m.opts.Stream && streamer != nil),
		zap.Duration("poll", m.opts.Poll),
	)

	if m.opts.Routing.Cooldown > 0 {
		m.router.StartCleanupRoutine(ctx, m.opts.Routing.Cooldown)
	}

	if m.opts.Stream && streamer != nil {
		return m.runStream(ctx, streamer)
	}
	return m.runPoll(ctx)
}

// Stop stops the monitoring loop
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Monitor) runPoll(ctx context.Context) error {
	m.Poll(ctx)

	ticker := time.NewTicker(m.opts.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return nil
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll refreshes the whole window from the provider and re-scores it
func (m *Monitor) Poll(ctx context.Context) {
	bars, err := m.analyzer.fetch(ctx, m.opts.Symbol, m.opts.Interval, m.opts.Window)
	if err != nil {
		m.logger.Warn("poll failed", zap.Error(err))
		return
	}
	m.mu.Lock()
	m.bars = bars
	m.mu.Unlock()
	m.score(ctx)
}

func (m *Monitor) runStream(ctx context.Context, streamer collector.Streamer) error {
	m.Poll(ctx)

	updates := make(chan collector.BarUpdate, 16)
	errc := make(chan error, 1)
	go func() { errc <- streamer.Stream(ctx, m.opts.Symbol, m.opts.Interval, updates) }()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return <-errc
		case err := <-errc:
			return err
		case upd := <-updates:
			m.Apply(ctx, upd)
		}
	}
}

// Apply merges a streamed bar into the window. Closed bars are always
// scored; forming bars at most once per poll interval.
func (m *Monitor) Apply(ctx context.Context, upd collector.BarUpdate) {
	m.mu.Lock()
	m.bars = mergeBar(m.bars, upd.Bar, m.opts.Window)
	due := upd.Closed || m.now().Sub(m.scoredAt) >= m.opts.Poll
	m.mu.Unlock()

	if due {
		m.score(ctx)
	}
}

// mergeBar replaces the last bar when the open time matches, appends a newer
// bar, ignores older ones, and trims to window
func mergeBar(bars []core.Bar, b core.Bar, window int) []core.Bar {
	if n := len(bars); n > 0 {
		last := bars[n-1].Time
		switch {
		case b.Time.Equal(last):
			bars[n-1] = b
			return bars
		case b.Time.Before(last):
			return bars
		}
	}
	bars = append(bars, b)
	if len(bars) > window {
		bars = append([]core.Bar(nil), bars[len(bars)-window:]...)
	}
	return bars
}

func (m *Monitor) score(ctx context.Context) {
	m.mu.RLock()
	bars := append([]core.Bar(nil), m.bars...)
	stale := m.now().Sub(m.inputsAt) >= m.opts.InputsEvery
	in := m.inputs
	m.mu.RUnlock()

	if len(bars) == 0 {
		return
	}
	if stale {
		in = m.analyzer.Inputs(ctx, m.opts.Symbol, m.opts.Interval, m.opts.Profile, len(bars))
	}

	report := m.analyzer.AnalyzeBars(m.opts.Symbol, m.opts.Interval, bars, m.opts.Profile, in)

	m.mu.Lock()
	prev := m.last
	m.last = report
	m.scoredAt = m.now()
	if stale {
		m.inputs = in
		m.inputsAt = m.scoredAt
	}
	m.mu.Unlock()

	if prev == nil || prev.Analysis.Bias == report.Analysis.Bias {
		return
	}
	m.alert(ctx, prev.Analysis.Bias, report)
}

func (m *Monitor) alert(ctx context.Context, previous core.Bias, r *Report) {
	a := r.Analysis
	alert := notifier.Alert{
		Symbol:       r.Symbol,
		Interval:     r.Interval,
		Profile:      a.Profile,
		Previous:     previous,
		Current:      a.Bias,
		Score:        a.Score,
		Confidence:   a.Confidence,
		Price:        r.Price,
		EntryQuality: string(a.EntryQuality),
		ShouldTrade:  a.ShouldTrade,
		Reason:       a.NoTradeReason,
		Plan:         a.TradePlan,
		At:           m.now(),
	}

	m.metrics.RecordBiasChange(r.Symbol, string(a.Bias))
	m.logger.Info("bias changed",
		zap.String("from", string(previous)),
		zap.String("to", string(a.Bias)),
		zap.Float64("score", a.Score),
		zap.Bool("should_trade", a.ShouldTrade),
	)

	_, routed := m.router.Route(ctx, alert)

	m.mu.Lock()
	if routed {
		m.alerts++
	} else {
		m.suppressed++
	}
	m.mu.Unlock()
}

// Latest returns the most recent report, or nil before the first score
func (m *Monitor) Latest() *Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Stats returns monitor statistics
func (m *Monitor) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := map[string]any{
		"running":    m.running,
		"symbol":     m.opts.Symbol,
		"interval":   m.opts.Interval,
		"profile":    m.opts.Profile.Name,
		"bars":       len(m.bars),
		"alerts":     m.alerts,
		"suppressed": m.suppressed,
		"notifiers":  m.notifiers.Len(),
	}
	if m.last != nil {
		stats["bias"] = m.last.Analysis.Bias
		stats["score"] = m.last.Analysis.Score
	}
	return stats
}
