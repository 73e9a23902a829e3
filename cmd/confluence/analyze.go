package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newthinker/confluence/internal/app"
	"github.com/newthinker/confluence/internal/collector"
)

var (
	analyzeSymbol   string
	analyzeInterval string
	analyzeProfile  string
	analyzeBars     int
	analyzeJSON     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [symbol]",
	Short: "Score the latest bar of a symbol once",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSymbol, "symbol", "", "symbol to analyze (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeInterval, "interval", "", "kline interval (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeProfile, "profile", "", "scoring profile (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeBars, "bars", 0, "bars to fetch (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the report as JSON")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	symbol := firstNonEmpty(analyzeSymbol, cfg.Analysis.Symbol)
	if len(args) == 1 {
		symbol = args[0]
	}
	symbol = collector.NormalizeSymbol(symbol, "USDT")
	if err := collector.ValidateSymbol(symbol); err != nil {
		return err
	}
	interval := firstNonEmpty(analyzeInterval, cfg.Analysis.Interval)
	if _, err := collector.ParseInterval(interval); err != nil {
		return err
	}

	profile, err := cfg.Profile(analyzeProfile)
	if err != nil {
		return err
	}

	src, err := app.NewSources(cfg, nil, log)
	if err != nil {
		return err
	}
	analyzer := app.NewAnalyzer(src, cfg.Analysis, nil, log)

	report, err := analyzer.Analyze(cmd.Context(), app.Request{
		Symbol:   symbol,
		Interval: interval,
		Profile:  profile,
		Bars:     analyzeBars,
	})
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", symbol, err)
	}

	if analyzeJSON {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
