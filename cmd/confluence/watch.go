package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/confluence/internal/app"
	"github.com/newthinker/confluence/internal/collector"
	"github.com/newthinker/confluence/internal/config"
	"github.com/newthinker/confluence/internal/metrics"
	"github.com/newthinker/confluence/internal/notifier"
	"github.com/newthinker/confluence/internal/notifier/telegram"
	"github.com/newthinker/confluence/internal/notifier/webhook"
	"github.com/newthinker/confluence/internal/storage/alerts"
)

var (
	watchSymbol   string
	watchInterval string
	watchProfile  string
	watchStream   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [symbol]",
	Short: "Monitor a symbol and alert on bias changes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchSymbol, "symbol", "", "symbol to watch (default from config)")
	watchCmd.Flags().StringVar(&watchInterval, "interval", "", "kline interval (default from config)")
	watchCmd.Flags().StringVar(&watchProfile, "profile", "", "scoring profile (default from config)")
	watchCmd.Flags().BoolVar(&watchStream, "stream", false, "use the kline stream instead of polling")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if len(args) == 1 {
		watchSymbol = args[0]
	}
	if watchSymbol != "" {
		cfg.Analysis.Symbol = watchSymbol
	}
	cfg.Analysis.Symbol = collector.NormalizeSymbol(cfg.Analysis.Symbol, "USDT")
	if watchStream {
		cfg.Monitor.Stream = true
	}

	reg := metrics.NewRegistry()
	src, err := app.NewSources(cfg, reg, log)
	if err != nil {
		return err
	}
	mon, err := newMonitor(cfg, src, reg, log, nil, watchInterval, watchProfile)
	if err != nil {
		return err
	}

	log.Info("watching",
		zap.String("symbol", cfg.Analysis.Symbol),
		zap.Bool("stream", cfg.Monitor.Stream),
	)
	if err := mon.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("watch stopped", zap.Any("stats", mon.Stats()))
	return nil
}

// newMonitor builds a monitor for the configured symbol with every
// configured notifier. history may be nil.
func newMonitor(cfg *config.Config, src *app.Sources, reg *metrics.Registry, log *zap.Logger, history alerts.Store, interval, profileName string) (*app.Monitor, error) {
	symbol := collector.NormalizeSymbol(cfg.Analysis.Symbol, "USDT")
	if err := collector.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	cfg.Analysis.Symbol = symbol

	interval = firstNonEmpty(interval, cfg.Analysis.Interval)
	if _, err := collector.ParseInterval(interval); err != nil {
		return nil, err
	}
	profile, err := cfg.Profile(profileName)
	if err != nil {
		return nil, err
	}

	notifiers, err := newNotifiers(cfg.Monitor)
	if err != nil {
		return nil, err
	}

	mon := app.NewMonitor(app.NewAnalyzer(src, cfg.Analysis, reg, log), notifiers, app.MonitorOptions{
		Symbol:      symbol,
		Interval:    interval,
		Profile:     profile,
		Window:      cfg.Analysis.Bars,
		Poll:        cfg.Monitor.PollInterval,
		Stream:      cfg.Monitor.Stream,
		InputsEvery: cfg.Monitor.DerivativesInterval,
		Routing:     cfg.Monitor.Routing,
	}, reg, log.Named("monitor"))
	if history != nil {
		mon.SetHistory(history)
	}
	return mon, nil
}

// newNotifiers registers the webhook and Telegram notifiers that are configured
func newNotifiers(cfg config.MonitorConfig) (*notifier.Registry, error) {
	notifiers := notifier.NewRegistry()
	if cfg.Webhook.URL != "" {
		wh, err := webhook.New(cfg.Webhook.URL, cfg.Webhook.Headers)
		if err != nil {
			return nil, err
		}
		if err := notifiers.Register(wh); err != nil {
			return nil, err
		}
	}
	if cfg.Telegram.BotToken != "" {
		tg, err := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIURL)
		if err != nil {
			return nil, err
		}
		if err := notifiers.Register(tg); err != nil {
			return nil, err
		}
	}
	return notifiers, nil
}
