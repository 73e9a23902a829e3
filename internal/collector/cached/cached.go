// Package cached decorates a bar provider with an archive-backed cache for
// history ranges that can no longer change.
package cached

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/confluence/internal/collector"
	"github.com/newthinker/confluence/internal/collector/csvfile"
	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/storage/archive"
)

// Provider caches FetchHistory results in archive storage. Ranges whose
// last bar may still be open are always fetched live.
type Provider struct {
	inner  collector.BarProvider
	store  archive.Storage
	logger *zap.Logger
	now    func() time.Time
}

var _ collector.BarProvider = (*Provider)(nil)

// New wraps inner
func New(inner collector.BarProvider, store archive.Storage, logger ...*zap.Logger) *Provider {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Provider{inner: inner, store: store, logger: l, now: time.Now}
}

func (p *Provider) Name() string {
	return p.inner.Name()
}

// FetchRecent is never cached
func (p *Provider) FetchRecent(ctx context.Context, symbol, interval string, limit int) ([]core.Bar, error) {
	return p.inner.FetchRecent(ctx, symbol, interval, limit)
}

func (p *Provider) FetchHistory(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Bar, error) {
	step, err := collector.ParseInterval(interval)
	if err != nil || end.Add(step).After(p.now()) {
		return p.inner.FetchHistory(ctx, symbol, interval, start, end)
	}

	key := Key(symbol, interval, start, end)
	data, err := p.store.Read(ctx, key)
	switch {
	case err == nil:
		bars, derr := csvfile.Read(bytes.NewReader(data))
		if derr == nil {
			p.logger.Debug("history cache hit", zap.String("key", key), zap.Int("bars", len(bars)))
			return bars, nil
		}
		p.logger.Warn("discarding corrupt cache entry", zap.String("key", key), zap.Error(derr))
	case !errors.Is(err, archive.ErrNotFound):
		p.logger.Warn("history cache read failed", zap.String("key", key), zap.Error(err))
	}

	bars, err := p.inner.FetchHistory(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return bars, nil
	}

	var buf bytes.Buffer
	if err := csvfile.Write(&buf, bars); err == nil {
		if err := p.store.Write(ctx, key, buf.Bytes()); err != nil {
			p.logger.Warn("history cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return bars, nil
}

// Key is the archive path of a cached range
func Key(symbol, interval string, start, end time.Time) string {
	return fmt.Sprintf("bars/%s/%s/%d_%d.csv", strings.ToUpper(symbol), interval, start.UnixMilli(), end.UnixMilli())
}
