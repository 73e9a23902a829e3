package backtest

import (
	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/plan"
	"github.com/newthinker/confluence/internal/signal"
)

func openPosition(tp *plan.TradePlan, bar core.Bar, index int, size float64, a *signal.Analysis) *Position {
	return &Position{
		Direction:        tp.Direction,
		Entry:            tp.Entry,
		StopLoss:         tp.StopLoss,
		OriginalStop:     tp.StopLoss,
		Targets:          append([]float64(nil), tp.Targets...),
		TargetsHit:       make([]bool, len(tp.Targets)),
		EntryIndex:       index,
		EntryTime:        bar.Time,
		Size:             size,
		Extreme:          tp.Entry,
		TrailActivationR: tp.TrailActivationR,
		TrailATRMult:     tp.TrailATRMult,
		Score:            a.Score,
		Quality:          a.EntryQuality,
	}
}

func (p *Position) long() bool {
	return p.Direction == core.BiasLong
}

// reached reports whether the bar traded through a favourable level
func (p *Position) reached(b core.Bar, level float64) bool {
	if p.long() {
		return b.High >= level
	}
	return b.Low <= level
}

// stopped reports whether the bar traded through the stop
func (p *Position) stopped(b core.Bar) bool {
	if p.long() {
		return b.Low <= p.StopLoss
	}
	return b.High >= p.StopLoss
}

// ratchet moves the stop toward profit, never away
func (p *Position) ratchet(level float64) {
	if (p.long() && level > p.StopLoss) || (!p.long() && level < p.StopLoss) {
		p.StopLoss = level
	}
}

func (p *Position) stopReason() ExitReason {
	switch {
	case p.Trailing:
		return ExitTrailing
	case p.StopLoss != p.OriginalStop:
		return ExitBreakeven
	}
	return ExitStopLoss
}

func (p *Position) unrealizedR(price float64) float64 {
	risk := p.Risk()
	if risk == 0 {
		return 0
	}
	if p.long() {
		return (price - p.Entry) / risk
	}
	return (p.Entry - price) / risk
}

func (p *Position) targetsHit() int {
	n := 0
	for _, h := range p.TargetsHit {
		if h {
			n++
		}
	}
	return n
}

// evaluate checks the next bar against the position in fixed priority:
// stop, final target, partial targets, trailing stop, signal flip, time.
// Partial targets only move the stop. It returns the fill and reason on exit.
func (p *Position) evaluate(next core.Bar, nextIndex int, flip bool, atr float64, maxHold int) (float64, ExitReason, bool) {
	if p.stopped(next) {
		return p.StopLoss, p.stopReason(), true
	}

	last := len(p.Targets) - 1
	if last >= 0 && p.reached(next, p.Targets[last]) {
		p.TargetsHit[last] = true
		return p.Targets[last], ExitFinalTarget, true
	}

	for j := 0; j < last; j++ {
		if p.TargetsHit[j] || !p.reached(next, p.Targets[j]) {
			continue
		}
		p.TargetsHit[j] = true
		if j == 0 {
			p.ratchet(p.Entry)
		} else {
			p.ratchet(p.Targets[j-1])
		}
	}

	if p.long() {
		p.Extreme = max(p.Extreme, next.High)
	} else {
		p.Extreme = min(p.Extreme, next.Low)
	}

	if p.TrailActivationR > 0 && p.TrailATRMult > 0 && atr > 0 {
		if !p.Trailing && p.unrealizedR(next.Close) >= p.TrailActivationR {
			p.Trailing = true
		}
		if p.Trailing {
			if p.long() {
				p.ratchet(p.Extreme - atr*p.TrailATRMult)
				if next.Close <= p.StopLoss {
					return next.Close, ExitTrailing, true
				}
			} else {
				p.ratchet(p.Extreme + atr*p.TrailATRMult)
				if next.Close >= p.StopLoss {
					return next.Close, ExitTrailing, true
				}
			}
		}
	}

	if flip {
		return next.Open, ExitSignalFlip, true
	}

	if maxHold > 0 && nextIndex-p.EntryIndex >= maxHold {
		return next.Close, ExitTime, true
	}

	return 0, "", false
}

// close converts the position into an immutable trade record
func (p *Position) close(price float64, index int, bar core.Bar, reason ExitReason) Trade {
	pnl := p.PnL(price)
	var r float64
	if risk := p.Risk() * p.Size; risk > 0 {
		r = pnl / risk
	}
	return Trade{
		Direction:  p.Direction,
		EntryIndex: p.EntryIndex,
		ExitIndex:  index,
		EntryTime:  p.EntryTime,
		ExitTime:   bar.Time,
		EntryPrice: p.Entry,
		ExitPrice:  price,
		StopLoss:   p.OriginalStop,
		Size:       p.Size,
		PnL:        pnl,
		PnLInR:     r,
		ExitReason: reason,
		Duration:   index - p.EntryIndex,
		TargetsHit: p.targetsHit(),
		Score:      p.Score,
		Quality:    p.Quality,
	}
}
