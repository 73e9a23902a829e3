package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/newthinker/confluence/internal/app"
	"github.com/newthinker/confluence/internal/backtest"
	"github.com/newthinker/confluence/internal/signal"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(w io.Writer, r *app.Report) {
	a := r.Analysis
	fmt.Fprintf(w, "=== %s %s (%s) ===\n", r.Symbol, r.Interval, a.Profile)
	fmt.Fprintf(w, "Time:       %s\n", r.Time.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Price:      %.4f\n", r.Price)
	fmt.Fprintf(w, "Bias:       %s (score %+.0f, bull %.0f / bear %.0f)\n", a.Bias, a.Score, a.BullScore, a.BearScore)
	fmt.Fprintf(w, "Confidence: %.0f%%\n", a.Confidence)
	fmt.Fprintf(w, "Quality:    %s (%d)\n", a.EntryQuality, a.QualityScore)
	if r.Reference != "" {
		fmt.Fprintf(w, "Reference:  %s %s\n", r.Reference, orDash(string(r.Inputs.ReferenceBias)))
	}
	fmt.Fprintf(w, "Funding:    %.4f%%  OI change: %+.2f%%\n", r.Inputs.FundingRate*100, r.Inputs.OpenInterestChangePct)

	if len(a.Breakdown) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CATEGORY\tSCORE\tMAX\tSIGNALS")
		for _, c := range signal.Categories {
			b := a.Breakdown[c]
			if b == nil {
				continue
			}
			texts := make([]string, 0, len(b.Signals))
			for _, s := range b.Signals {
				texts = append(texts, s.Text)
			}
			fmt.Fprintf(tw, "%s\t%+.0f\t%.0f\t%s\n", c, b.Score, b.Max, strings.Join(texts, "; "))
		}
		tw.Flush()
	}

	fmt.Fprintln(w)
	if !a.ShouldTrade {
		fmt.Fprintf(w, "No trade: %s\n", a.NoTradeReason)
	}
	if p := a.TradePlan; p != nil {
		fmt.Fprintf(w, "Plan:       %s entry %.4f stop %.4f (risk %.2f%%)\n", p.Direction, p.Entry, p.StopLoss, p.RiskPercent)
		for i, t := range p.Targets {
			var r float64
			if i < len(p.TargetsR) {
				r = p.TargetsR[i]
			}
			fmt.Fprintf(w, "  T%d        %.4f (%.1fR)\n", i+1, t, r)
		}
	}
}

func printResult(w io.Writer, res *backtest.Result) {
	s := res.Stats
	fmt.Fprintf(w, "=== Backtest %s %s (%s) ===\n", res.Symbol, res.Interval, res.Profile)
	fmt.Fprintf(w, "Period:        %s to %s (%d bars)\n",
		res.StartDate.UTC().Format("2006-01-02 15:04"), res.EndDate.UTC().Format("2006-01-02 15:04"), res.Bars)
	fmt.Fprintf(w, "Trades:        %d (%d won, %d lost)\n", s.TotalTrades, s.WinningTrades, s.LosingTrades)
	fmt.Fprintf(w, "Win rate:      %.1f%%\n", s.WinRate)
	fmt.Fprintf(w, "Avg win/loss:  %.2fR / %.2fR\n", s.AvgWinR, s.AvgLossR)
	fmt.Fprintf(w, "Expectancy:    %.2fR\n", s.Expectancy)
	fmt.Fprintf(w, "Profit factor: %.2f\n", s.ProfitFactor)
	fmt.Fprintf(w, "Sharpe (R):    %.2f\n", s.SharpeR)
	fmt.Fprintf(w, "Return:        %+.2f%% (final %.2f)\n", s.TotalReturn, s.FinalCapital)
	fmt.Fprintf(w, "Max drawdown:  %.2f%%\n", s.MaxDrawdown)

	if len(s.ExitReasons) > 0 {
		reasons := make([]string, 0, len(s.ExitReasons))
		for r := range s.ExitReasons {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		fmt.Fprintln(w, "Exits:")
		for _, r := range reasons {
			fmt.Fprintf(w, "  %-15s %d\n", r, s.ExitReasons[backtest.ExitReason(r)])
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
