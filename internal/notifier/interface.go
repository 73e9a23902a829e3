// Package notifier delivers bias-change alerts from the live monitor.
package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/plan"
)

// Alert describes a bias transition on a watched symbol
type Alert struct {
	// ID is assigned when the alert is recorded in history
	ID           string          `json:"id,omitempty"`
	Symbol       string          `json:"symbol"`
	Interval     string          `json:"interval"`
	Profile      string          `json:"profile"`
	Previous     core.Bias       `json:"previous"`
	Current      core.Bias       `json:"current"`
	Score        float64         `json:"score"`
	Confidence   float64         `json:"confidence"`
	Price        float64         `json:"price"`
	EntryQuality string          `json:"entry_quality"`
	ShouldTrade  bool            `json:"should_trade"`
	Reason       string          `json:"reason,omitempty"`
	Plan         *plan.TradePlan `json:"trade_plan,omitempty"`
	At           time.Time       `json:"at"`
}

// Text renders a one-line human summary
func (a Alert) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s -> %s (score %+.0f, confidence %.0f%%, quality %s)",
		a.Symbol, a.Interval, a.Previous, a.Current, a.Score, a.Confidence, a.EntryQuality)
	if a.Plan != nil {
		fmt.Fprintf(&b, " entry %.4f stop %.4f target %.4f", a.Plan.Entry, a.Plan.StopLoss, a.Plan.FinalTarget())
	} else if a.Reason != "" {
		fmt.Fprintf(&b, " no trade: %s", a.Reason)
	}
	return b.String()
}

// Notifier delivers alerts
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string
	Send(ctx context.Context, alert Alert) error
}
