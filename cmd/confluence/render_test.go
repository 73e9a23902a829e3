package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/newthinker/confluence/internal/app"
	"github.com/newthinker/confluence/internal/backtest"
	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/plan"
	"github.com/newthinker/confluence/internal/signal"
)

func TestPrintReport(t *testing.T) {
	r := &app.Report{
		Symbol:    "ETHUSDT",
		Interval:  "5m",
		Time:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Price:     3500,
		Reference: "BTCUSDT",
		Inputs:    signal.Inputs{ReferenceBias: core.BiasLong, FundingRate: 0.0001},
		Analysis: &signal.Analysis{
			Profile:      "intraday",
			Bias:         core.BiasLong,
			Score:        22,
			BullScore:    25,
			BearScore:    3,
			Confidence:   22,
			EntryQuality: signal.GradeB,
			ShouldTrade:  true,
			Breakdown: map[signal.Category]*signal.CategoryBreakdown{
				signal.CategoryTrend: {Score: 12, Max: 25, Signals: []signal.Signal{{Rule: "ema_stack", Type: core.Bullish, Text: "EMA stack bullish"}}},
			},
			TradePlan: &plan.TradePlan{
				Direction: core.BiasLong,
				Entry:     3500,
				StopLoss:  3450,
				Targets:   []float64{3550, 3600},
				TargetsR:  []float64{1, 2},
			},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "=== ETHUSDT 5m (intraday) ===")
	assert.Contains(t, out, "LONG (score +22")
	assert.Contains(t, out, "Reference:  BTCUSDT LONG")
	assert.Contains(t, out, "EMA stack bullish")
	assert.Contains(t, out, "T2        3600.0000 (2.0R)")
	assert.NotContains(t, out, "No trade")
}

func TestPrintResult(t *testing.T) {
	res := &backtest.Result{
		Symbol:   "BTCUSDT",
		Interval: "1h",
		Profile:  "swing",
		Bars:     720,
		Stats: backtest.Stats{
			TotalTrades:   3,
			WinningTrades: 2,
			LosingTrades:  1,
			WinRate:       66.7,
			ExitReasons:   map[backtest.ExitReason]int{backtest.ExitStopLoss: 1, backtest.ExitFinalTarget: 2},
		},
	}

	var buf bytes.Buffer
	printResult(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "Trades:        3 (2 won, 1 lost)")
	assert.Contains(t, out, "Win rate:      66.7%")
	// Exit reasons print sorted
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Final Target")), bytes.Index(buf.Bytes(), []byte("Stop Loss")))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Empty(t, firstNonEmpty("", ""))
}
