package csvfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/newthinker/confluence/internal/collector"
	"github.com/newthinker/confluence/internal/core"
)

// Provider serves bars from <dir>/<SYMBOL>_<interval>.csv
type Provider struct {
	dir string
}

var _ collector.BarProvider = (*Provider)(nil)

// NewProvider creates a provider rooted at dir
func NewProvider(dir string) *Provider {
	return &Provider{dir: dir}
}

func (p *Provider) Name() string {
	return "csv"
}

// Path returns the file backing symbol and interval
func (p *Provider) Path(symbol, interval string) string {
	return filepath.Join(p.dir, fmt.Sprintf("%s_%s.csv", strings.ToUpper(symbol), interval))
}

// Load reads a whole file
func (p *Provider) Load(symbol, interval string) ([]core.Bar, error) {
	f, err := os.Open(p.Path(symbol, interval))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s %s: %w", symbol, interval, err))
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func (p *Provider) FetchRecent(ctx context.Context, symbol, interval string, limit int) ([]core.Bar, error) {
	bars, err := p.Load(symbol, interval)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func (p *Provider) FetchHistory(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Bar, error) {
	bars, err := p.Load(symbol, interval)
	if err != nil {
		return nil, err
	}
	out := make([]core.Bar, 0, len(bars))
	for _, b := range bars {
		if (start.IsZero() || !b.Time.Before(start)) && (end.IsZero() || !b.Time.After(end)) {
			out = append(out, b)
		}
	}
	return out, nil
}
