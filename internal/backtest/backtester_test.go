package backtest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/newthinker/confluence/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider implements OHLCVProvider for testing
type mockProvider struct {
	mu    sync.Mutex
	data  map[string][]core.Bar
	err   error
	calls int
}

func (m *mockProvider) FetchHistory(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Bar, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.data[symbol], nil
}

func TestBacktester_Run(t *testing.T) {
	provider := &mockProvider{data: map[string][]core.Bar{"BTCUSDT": waveBars(300)}}
	bt := New(provider)

	res, err := bt.Run(context.Background(), Request{
		Symbol:   "BTCUSDT",
		Interval: "1h",
		Profile:  mustProfile(t, "intraday"),
	})
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", res.Symbol)
	assert.Equal(t, "1h", res.Interval)
	assert.Equal(t, "intraday", res.Profile)
	assert.Equal(t, 300, res.Bars)
	assert.Equal(t, len(res.Trades), res.Stats.TotalTrades)
}

func TestBacktester_Errors(t *testing.T) {
	profile := mustProfile(t, "intraday")

	t.Run("provider failure", func(t *testing.T) {
		bt := New(&mockProvider{err: errors.New("connection refused")})
		_, err := bt.Run(context.Background(), Request{Symbol: "X", Profile: profile})
		assert.ErrorIs(t, err, core.ErrBacktestFailed)
	})

	t.Run("no data", func(t *testing.T) {
		bt := New(&mockProvider{data: map[string][]core.Bar{}})
		_, err := bt.Run(context.Background(), Request{Symbol: "X", Profile: profile})
		assert.ErrorIs(t, err, core.ErrNoData)
	})

	t.Run("malformed bars", func(t *testing.T) {
		bars := waveBars(100)
		bars[10].High = bars[10].Low - 1
		bt := New(&mockProvider{data: map[string][]core.Bar{"X": bars}})
		_, err := bt.Run(context.Background(), Request{Symbol: "X", Profile: profile})
		assert.ErrorIs(t, err, core.ErrInvalidBars)
	})

	t.Run("invalid profile", func(t *testing.T) {
		bad := profile
		bad.BiasThreshold = 0
		bt := New(&mockProvider{data: map[string][]core.Bar{"X": waveBars(100)}})
		_, err := bt.Run(context.Background(), Request{Symbol: "X", Profile: bad})
		assert.ErrorIs(t, err, core.ErrConfigInvalid)
	})
}

func TestBacktester_RunBatch(t *testing.T) {
	provider := &mockProvider{data: map[string][]core.Bar{
		"AAA": waveBars(250),
		"BBB": risingBars(120),
		"CCC": flatBars(120),
	}}
	bt := New(provider)

	reqs := []Request{
		{Symbol: "AAA", Interval: "1h", Profile: mustProfile(t, "intraday")},
		{Symbol: "BBB", Interval: "15m", Profile: mustProfile(t, "intraday")},
		{Symbol: "MISSING", Interval: "1h", Profile: mustProfile(t, "intraday")},
		{Symbol: "CCC", Interval: "4h", Profile: mustProfile(t, "scalp")},
	}

	out := bt.RunBatch(context.Background(), reqs)
	require.Len(t, out, len(reqs))
	assert.Equal(t, 4, provider.calls)

	for i, r := range out {
		assert.Equal(t, reqs[i].Symbol, r.Request.Symbol)
	}
	require.NoError(t, out[0].Err)
	assert.Equal(t, "AAA", out[0].Result.Symbol)
	require.NoError(t, out[1].Err)
	assert.NotEmpty(t, out[1].Result.Trades)
	assert.ErrorIs(t, out[2].Err, core.ErrNoData)
	require.NoError(t, out[3].Err)
	assert.Equal(t, "scalp", out[3].Result.Profile)
	assert.Zero(t, out[3].Result.Stats.TotalTrades)

	// Each run matches its standalone result
	solo, err := bt.Run(context.Background(), reqs[1])
	require.NoError(t, err)
	assert.Equal(t, solo, out[1].Result)
}
