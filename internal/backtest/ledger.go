package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var ledgerHeader = []string{
	"direction", "entry_time", "exit_time", "entry_price", "exit_price", "stop_loss",
	"size", "pnl", "pnl_r", "exit_reason", "duration", "targets_hit", "quality",
}

// WriteTradesCSV exports the ledger. Prices keep 8 decimals, pnl 2 and R 4.
func WriteTradesCSV(w io.Writer, trades []Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ledgerHeader); err != nil {
		return err
	}

	for _, t := range trades {
		row := []string{
			string(t.Direction),
			formatTime(t.EntryTime),
			formatTime(t.ExitTime),
			decimal.NewFromFloat(t.EntryPrice).Round(8).String(),
			decimal.NewFromFloat(t.ExitPrice).Round(8).String(),
			decimal.NewFromFloat(t.StopLoss).Round(8).String(),
			decimal.NewFromFloat(t.Size).Round(8).String(),
			decimal.NewFromFloat(t.PnL).StringFixed(2),
			decimal.NewFromFloat(t.PnLInR).StringFixed(4),
			string(t.ExitReason),
			strconv.Itoa(t.Duration),
			strconv.Itoa(t.TargetsHit),
			string(t.Quality),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write trade row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
