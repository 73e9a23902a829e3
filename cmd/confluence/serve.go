package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/confluence/internal/api"
	handler "github.com/newthinker/confluence/internal/api/handler/api"
	"github.com/newthinker/confluence/internal/app"
	"github.com/newthinker/confluence/internal/backtest"
	"github.com/newthinker/confluence/internal/collector"
	"github.com/newthinker/confluence/internal/metrics"
	"github.com/newthinker/confluence/internal/storage/alerts"
)

var serveNoMonitor bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the confluence API server",
	Long: `Serve the JSON API (analysis, profiles, async backtests, metrics) and,
unless --no-monitor is set, monitor the configured symbol in the background.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoMonitor, "no-monitor", false, "do not run the background monitor")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	cfg.Analysis.Symbol = collector.NormalizeSymbol(cfg.Analysis.Symbol, "USDT")
	src, err := app.NewSources(cfg, reg, log)
	if err != nil {
		return err
	}

	deps := api.Dependencies{
		Analyzer: app.NewAnalyzer(src, cfg.Analysis, reg, log),
		Profiles: cfg,
		Runner:   backtest.New(src.Bars, log.Named("backtest")),
		Metrics:  reg,
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	monErr := make(chan error, 1)
	if !serveNoMonitor {
		history := alerts.NewMemoryStore(cfg.Monitor.HistorySize)
		mon, err := newMonitor(cfg, src, reg, log, history, "", "")
		if err != nil {
			return err
		}
		deps.Monitor = mon
		deps.Alerts = history
		go func() { monErr <- mon.Start(ctx) }()
	}

	server, err := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		CORSOrigins: cfg.Server.CORSOrigins,
		MetricsPath: cfg.Metrics.Path,
		MaxJobs:     cfg.Server.MaxJobs,
		JobTTL:      time.Duration(cfg.Server.JobTTLHours) * time.Hour,
		Analysis: handler.Defaults{
			Symbol:   cfg.Analysis.Symbol,
			Interval: cfg.Analysis.Interval,
		},
		Backtest: handler.BacktestDefaults{
			Interval: cfg.Analysis.Interval,
			Days:     cfg.Backtest.Days,
			Config:   backtestConfig(cfg.Backtest.InitialCapital, cfg.Backtest.RiskFraction, cfg.Backtest.MaxHoldBars),
		},
	}, deps, log.Named("api"))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	log.Info("starting confluence server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("monitor", !serveNoMonitor),
	)

	srvErr := make(chan error, 1)
	go func() { srvErr <- server.Start() }()

	select {
	case <-ctx.Done():
	case err = <-srvErr:
	case err = <-monErr:
		if err != nil {
			err = fmt.Errorf("monitor: %w", err)
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("shutting down after error", zap.Error(err))
	}
	cancel()

	log.Info("shutting down confluence server")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		return serr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
