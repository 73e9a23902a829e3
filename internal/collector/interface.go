// Package collector defines the market-data collaborators that feed the
// scoring engine and the backtester.
package collector

import (
	"context"
	"time"

	"github.com/newthinker/confluence/internal/core"
)

// BarProvider fetches OHLCV bars
type BarProvider interface {
	Name() string
	// FetchRecent returns the latest limit bars, oldest first
	FetchRecent(ctx context.Context, symbol, interval string, limit int) ([]core.Bar, error)
	// FetchHistory returns bars whose open time lies in [start, end]
	FetchHistory(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Bar, error)
}

// DerivativesProvider fetches perpetual futures context
type DerivativesProvider interface {
	// FetchFundingRate returns the last funding rate as a fraction (0.0001 = 0.01%)
	FetchFundingRate(ctx context.Context, symbol string) (float64, error)
	// FetchOpenInterestChange returns the percent change of open interest
	// across the given number of period samples
	FetchOpenInterestChange(ctx context.Context, symbol, period string, points int) (float64, error)
}

// BarUpdate is a streamed kline event
type BarUpdate struct {
	Symbol   string
	Interval string
	Bar      core.Bar
	// Closed is set once the bar is final
	Closed bool
}

// Streamer pushes kline updates until ctx is cancelled
type Streamer interface {
	Stream(ctx context.Context, symbol, interval string, out chan<- BarUpdate) error
}
