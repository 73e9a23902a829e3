// Package binance implements spot klines, futures context and the kline
// websocket stream for Binance.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/confluence/internal/collector"
	"github.com/newthinker/confluence/internal/core"
)

const (
	defaultBaseURL    = "https://api.binance.com"
	defaultFuturesURL = "https://fapi.binance.com"
	defaultStreamURL  = "wss://stream.binance.com:9443"

	maxKlines = 1000
)

// Config holds endpoint overrides. Zero values use the public endpoints.
type Config struct {
	BaseURL    string        `mapstructure:"base_url"`
	FuturesURL string        `mapstructure:"futures_url"`
	StreamURL  string        `mapstructure:"stream_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// OnReconnect is called each time the stream reconnects after a drop
	OnReconnect func() `mapstructure:"-"`
}

// Binance implements collector.BarProvider, collector.DerivativesProvider
// and collector.Streamer
type Binance struct {
	client      *http.Client
	baseURL     string
	futuresURL  string
	streamURL   string
	onReconnect func()
	logger      *zap.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

var (
	_ collector.BarProvider         = (*Binance)(nil)
	_ collector.DerivativesProvider = (*Binance)(nil)
	_ collector.Streamer            = (*Binance)(nil)
)

// New creates a Binance provider
func New(cfg Config, logger ...*zap.Logger) *Binance {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b := &Binance{
		client:      &http.Client{Timeout: timeout},
		baseURL:     orDefault(cfg.BaseURL, defaultBaseURL),
		futuresURL:  orDefault(cfg.FuturesURL, defaultFuturesURL),
		streamURL:   orDefault(cfg.StreamURL, defaultStreamURL),
		onReconnect: cfg.OnReconnect,
		logger:      l,
		minBackoff:  time.Second,
		maxBackoff:  30 * time.Second,
	}
	return b
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (b *Binance) Name() string {
	return "binance"
}

// FetchRecent fetches the latest limit klines. Requests above the exchange
// page size walk backwards from the newest page.
func (b *Binance) FetchRecent(ctx context.Context, symbol, interval string, limit int) ([]core.Bar, error) {
	if limit <= 0 {
		return []core.Bar{}, nil
	}
	if _, err := collector.ParseInterval(interval); err != nil {
		return nil, err
	}

	var pages [][]core.Bar
	remaining := limit
	var end *time.Time
	for remaining > 0 {
		n := min(remaining, maxKlines)
		page, err := b.klines(ctx, symbol, interval, nil, end, n)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		pages = append(pages, page)
		remaining -= len(page)
		if len(page) < n {
			break
		}
		before := page[0].Time.Add(-time.Millisecond)
		end = &before
	}

	bars := make([]core.Bar, 0, limit-remaining)
	for i := len(pages) - 1; i >= 0; i-- {
		bars = append(bars, pages[i]...)
	}
	return bars, nil
}

// FetchHistory pages forward through [start, end]
func (b *Binance) FetchHistory(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Bar, error) {
	if _, err := collector.ParseInterval(interval); err != nil {
		return nil, err
	}

	var bars []core.Bar
	from := start
	for !from.After(end) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := b.klines(ctx, symbol, interval, &from, &end, maxKlines)
		if err != nil {
			return nil, err
		}
		bars = append(bars, page...)
		if len(page) < maxKlines {
			break
		}
		from = page[len(page)-1].Time.Add(time.Millisecond)
	}

	b.logger.Debug("fetched history",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int("bars", len(bars)))
	return bars, nil
}

func (b *Binance) klines(ctx context.Context, symbol, interval string, start, end *time.Time, limit int) ([]core.Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	if start != nil {
		q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if end != nil {
		q.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	}

	var raw [][]any
	if err := b.getJSON(ctx, b.baseURL+"/api/v3/klines?"+q.Encode(), &raw); err != nil {
		return nil, err
	}

	bars := make([]core.Bar, 0, len(raw))
	for _, k := range raw {
		bar, err := parseKline(k)
		if err != nil {
			return nil, core.WrapError(core.ErrCollectorFailed, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseKline decodes [openTime, "open", "high", "low", "close", "volume", ...]
func parseKline(k []any) (core.Bar, error) {
	if len(k) < 6 {
		return core.Bar{}, fmt.Errorf("kline has %d fields", len(k))
	}
	openTime, ok := k[0].(float64)
	if !ok {
		return core.Bar{}, fmt.Errorf("kline open time %v", k[0])
	}
	var vals [5]float64
	for i := range vals {
		s, ok := k[i+1].(string)
		if !ok {
			return core.Bar{}, fmt.Errorf("kline field %d: %v", i+1, k[i+1])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return core.Bar{}, fmt.Errorf("kline field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return core.Bar{
		Time:   time.UnixMilli(int64(openTime)).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

type premiumIndex struct {
	Symbol          string `json:"symbol"`
	LastFundingRate string `json:"lastFundingRate"`
}

// FetchFundingRate returns the last perpetual funding rate
func (b *Binance) FetchFundingRate(ctx context.Context, symbol string) (float64, error) {
	var p premiumIndex
	if err := b.getJSON(ctx, b.futuresURL+"/fapi/v1/premiumIndex?symbol="+url.QueryEscape(symbol), &p); err != nil {
		return 0, err
	}
	rate, err := strconv.ParseFloat(p.LastFundingRate, 64)
	if err != nil {
		return 0, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("funding rate %q: %w", p.LastFundingRate, err))
	}
	return rate, nil
}

type openInterestPoint struct {
	SumOpenInterest string `json:"sumOpenInterest"`
	Timestamp       int64  `json:"timestamp"`
}

// FetchOpenInterestChange returns the percent change from the first to the
// last open interest sample
func (b *Binance) FetchOpenInterestChange(ctx context.Context, symbol, period string, points int) (float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("period", period)
	q.Set("limit", strconv.Itoa(points))

	var hist []openInterestPoint
	if err := b.getJSON(ctx, b.futuresURL+"/futures/data/openInterestHist?"+q.Encode(), &hist); err != nil {
		return 0, err
	}
	if len(hist) < 2 {
		return 0, core.WrapError(core.ErrNoData, fmt.Errorf("open interest for %s: %d samples", symbol, len(hist)))
	}

	first, err := strconv.ParseFloat(hist[0].SumOpenInterest, 64)
	if err != nil {
		return 0, core.WrapError(core.ErrCollectorFailed, err)
	}
	last, err := strconv.ParseFloat(hist[len(hist)-1].SumOpenInterest, 64)
	if err != nil {
		return 0, core.WrapError(core.ErrCollectorFailed, err)
	}
	if first == 0 {
		return 0, nil
	}
	return (last - first) / first * 100, nil
}

func (b *Binance) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return core.WrapError(core.ErrCollectorFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return core.WrapError(core.ErrCollectorFailed, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return core.WrapError(core.ErrCollectorFailed, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}
