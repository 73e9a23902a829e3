// Package app wires providers, the scoring engine and notifiers into the
// analysis service and the live monitor.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/newthinker/confluence/internal/collector"
	"github.com/newthinker/confluence/internal/collector/binance"
	"github.com/newthinker/confluence/internal/collector/cached"
	"github.com/newthinker/confluence/internal/collector/csvfile"
	"github.com/newthinker/confluence/internal/config"
	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/metrics"
	"github.com/newthinker/confluence/internal/storage/archive"
)

// Sources are the market-data collaborators selected by configuration.
// Derivatives and Streamer are nil when the provider has none.
type Sources struct {
	Registry    *collector.Registry
	Bars        collector.BarProvider
	Derivatives collector.DerivativesProvider
	Streamer    collector.Streamer
}

// NewSources builds every provider, registers it, and selects the one named
// by data.provider. History is cached when cache.enabled is set.
func NewSources(cfg *config.Config, reg *metrics.Registry, logger *zap.Logger) (*Sources, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	symbol := cfg.Analysis.Symbol
	bn := binance.New(binance.Config{
		BaseURL:     cfg.Data.Binance.BaseURL,
		FuturesURL:  cfg.Data.Binance.FuturesURL,
		StreamURL:   cfg.Data.Binance.StreamURL,
		Timeout:     cfg.Data.Binance.Timeout,
		OnReconnect: func() { reg.RecordReconnect(symbol) },
	}, logger.Named("binance"))

	registry := collector.NewRegistry()
	registry.Register(bn)
	registry.Register(csvfile.NewProvider(cfg.Data.CSVDir))

	bars, err := registry.Lookup(cfg.Data.Provider)
	if err != nil {
		return nil, err
	}
	src := &Sources{Registry: registry, Bars: bars}
	if bars == collector.BarProvider(bn) {
		src.Derivatives = bn
		src.Streamer = bn
	}

	if cfg.Cache.Enabled {
		store, err := archive.New(cfg.Cache.Storage)
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("cache storage: %w", err))
		}
		src.Bars = cached.New(src.Bars, store, logger.Named("cache"))
	}
	return src, nil
}
