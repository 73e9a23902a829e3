package backtest

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// noLossProfitFactor is reported when there are winners but no losing amount
const noLossProfitFactor = 999

// CalculateStats computes performance statistics from closed trades.
// maxDrawdown is the running maximum tracked during the simulation, in percent.
func CalculateStats(trades []Trade, initialCapital, finalCapital, maxDrawdown float64) Stats {
	s := Stats{
		TotalTrades:  len(trades),
		FinalCapital: finalCapital,
		MaxDrawdown:  maxDrawdown,
		ExitReasons:  map[ExitReason]int{},
	}
	if initialCapital > 0 {
		s.TotalReturn = (finalCapital - initialCapital) / initialCapital * 100
	}
	if len(trades) == 0 {
		return s
	}

	var grossWin, grossLoss float64
	var winR, lossR []float64
	rs := make([]float64, 0, len(trades))

	for _, t := range trades {
		s.ExitReasons[t.ExitReason]++
		rs = append(rs, t.PnLInR)
		if t.IsWin() {
			grossWin += t.PnL
			winR = append(winR, t.PnLInR)
		} else {
			grossLoss -= t.PnL
			lossR = append(lossR, t.PnLInR)
		}
	}

	s.WinningTrades = len(winR)
	s.LosingTrades = len(lossR)
	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	if len(winR) > 0 {
		s.AvgWinR = floats.Sum(winR) / float64(len(winR))
	}
	if len(lossR) > 0 {
		s.AvgLossR = floats.Sum(lossR) / float64(len(lossR))
	}
	s.Expectancy = floats.Sum(rs) / float64(len(rs))
	s.ProfitFactor = profitFactor(grossWin, grossLoss)
	s.SharpeR = sharpeR(rs)

	return s
}

func profitFactor(grossWin, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossWin > 0 {
			return noLossProfitFactor
		}
		return 0
	}
	return grossWin / grossLoss
}

// sharpeR is the per-trade Sharpe of R multiples, unannualised
func sharpeR(rs []float64) float64 {
	if len(rs) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(rs, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std
}
