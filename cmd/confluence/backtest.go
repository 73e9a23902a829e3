package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/newthinker/confluence/internal/app"
	"github.com/newthinker/confluence/internal/backtest"
	"github.com/newthinker/confluence/internal/collector"
)

var (
	backtestSymbol   string
	backtestInterval string
	backtestProfile  string
	backtestFrom     string
	backtestTo       string
	backtestDays     int
	backtestCSV      string
	backtestJSON     bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [symbol]",
	Short: "Run a walk-forward backtest of a scoring profile",
	Long: `Replay history bar by bar, scoring every prefix with the chosen profile
and simulating entries, stops, targets and exits. Without --from the run covers
--days before --to (or now).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "symbol to backtest (default from config)")
	backtestCmd.Flags().StringVar(&backtestInterval, "interval", "", "kline interval (default from config)")
	backtestCmd.Flags().StringVar(&backtestProfile, "profile", "", "scoring profile (default from config)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "start date YYYY-MM-DD")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "end date YYYY-MM-DD")
	backtestCmd.Flags().IntVar(&backtestDays, "days", 0, "days of history when --from is unset (default from config)")
	backtestCmd.Flags().StringVar(&backtestCSV, "csv", "", "write the trade ledger to this CSV file")
	backtestCmd.Flags().BoolVar(&backtestJSON, "json", false, "print the result as JSON")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	symbol := firstNonEmpty(backtestSymbol, cfg.Analysis.Symbol)
	if len(args) == 1 {
		symbol = args[0]
	}
	symbol = collector.NormalizeSymbol(symbol, "USDT")
	if err := collector.ValidateSymbol(symbol); err != nil {
		return err
	}
	interval := firstNonEmpty(backtestInterval, cfg.Analysis.Interval)
	if _, err := collector.ParseInterval(interval); err != nil {
		return err
	}

	profile, err := cfg.Profile(backtestProfile)
	if err != nil {
		return err
	}

	end := time.Now().UTC()
	if backtestTo != "" {
		if end, err = time.Parse("2006-01-02", backtestTo); err != nil {
			return fmt.Errorf("invalid to date format (expected YYYY-MM-DD): %w", err)
		}
	}
	days := backtestDays
	if days <= 0 {
		days = cfg.Backtest.Days
	}
	start := end.AddDate(0, 0, -days)
	if backtestFrom != "" {
		if start, err = time.Parse("2006-01-02", backtestFrom); err != nil {
			return fmt.Errorf("invalid from date format (expected YYYY-MM-DD): %w", err)
		}
	}
	if !end.After(start) {
		return fmt.Errorf("end date must be after start date")
	}

	src, err := app.NewSources(cfg, nil, log)
	if err != nil {
		return err
	}

	res, err := backtest.New(src.Bars, log).Run(cmd.Context(), backtest.Request{
		Symbol:   symbol,
		Interval: interval,
		Start:    start,
		End:      end,
		Profile:  profile,
		Config:   backtestConfig(cfg.Backtest.InitialCapital, cfg.Backtest.RiskFraction, cfg.Backtest.MaxHoldBars),
	})
	if err != nil {
		return err
	}

	if backtestCSV != "" {
		f, err := os.Create(backtestCSV)
		if err != nil {
			return fmt.Errorf("creating %s: %w", backtestCSV, err)
		}
		if err := backtest.WriteTradesCSV(f, res.Trades); err != nil {
			f.Close()
			return fmt.Errorf("writing trades: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	if backtestJSON {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	printResult(cmd.OutOrStdout(), res)
	if backtestCSV != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\nTrades written to %s\n", backtestCSV)
	}
	return nil
}

func backtestConfig(capital, risk float64, maxHold int) backtest.Config {
	c := backtest.DefaultConfig()
	c.InitialCapital = capital
	c.RiskFraction = risk
	c.MaxHoldBars = maxHold
	return c
}
