// Package alerts keeps the history of bias-change alerts.
package alerts

import (
	"context"
	"time"

	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/notifier"
)

// Store defines the interface for alert persistence.
type Store interface {
	// Save persists an alert, assigns its ID and returns the stored copy.
	Save(ctx context.Context, alert notifier.Alert) (notifier.Alert, error)

	// GetByID retrieves an alert by its ID.
	GetByID(ctx context.Context, id string) (*notifier.Alert, error)

	// List retrieves alerts matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]notifier.Alert, error)

	// Count returns the number of alerts matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter defines criteria for listing alerts.
type ListFilter struct {
	Symbol   string
	Interval string
	// Bias matches the bias the alert transitioned to
	Bias   core.Bias
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}
