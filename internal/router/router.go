// Package router filters bias-change alerts and fans them out to notifiers.
package router

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/notifier"
	"github.com/newthinker/confluence/internal/storage/alerts"
)

// Config holds router configuration. The zero value routes every alert.
type Config struct {
	// MinConfidence is on the 0..100 confidence scale
	MinConfidence float64       `mapstructure:"min_confidence"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
	// EnabledBiases restricts which target biases alert; empty allows all
	EnabledBiases []core.Bias `mapstructure:"enabled_biases"`
	// TradeableOnly drops alerts whose analysis did not pass the trade filters
	TradeableOnly bool `mapstructure:"tradeable_only"`
}

// DefaultConfig returns default router configuration
func DefaultConfig() Config {
	return Config{}
}

// Router routes alerts to notifiers with filtering
type Router struct {
	cfg       Config
	registry  *notifier.Registry
	store     alerts.Store
	logger    *zap.Logger
	now       func() time.Time
	mu        sync.RWMutex
	cooldowns map[string]time.Time // symbol|interval -> last routed alert
}

// New creates a new alert router; registry may be nil
func New(cfg Config, registry *notifier.Registry, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = notifier.NewRegistry()
	}
	return &Router{
		cfg:       cfg,
		registry:  registry,
		logger:    logger,
		now:       time.Now,
		cooldowns: make(map[string]time.Time),
	}
}

// SetStore sets the alert history store
func (r *Router) SetStore(store alerts.Store) {
	r.mu.Lock()
	r.store = store
	r.mu.Unlock()
}

func key(a notifier.Alert) string {
	return a.Symbol + "|" + a.Interval
}

// Route applies the filters, records the alert and sends it to every
// notifier. It reports whether the alert was routed; the returned alert
// carries its history ID when a store is set.
func (r *Router) Route(ctx context.Context, alert notifier.Alert) (notifier.Alert, bool) {
	if reason := r.filter(alert); reason != "" {
		r.logger.Debug("alert filtered out",
			zap.String("symbol", alert.Symbol),
			zap.String("bias", string(alert.Current)),
			zap.Float64("confidence", alert.Confidence),
			zap.String("reason", reason),
		)
		return alert, false
	}

	r.mu.Lock()
	r.cooldowns[key(alert)] = r.now()
	store := r.store
	r.mu.Unlock()

	if store != nil {
		saved, err := store.Save(ctx, alert)
		if err != nil {
			r.logger.Error("failed to persist alert", zap.Error(err))
		} else {
			alert = saved
		}
	}

	errs := r.registry.NotifyAll(ctx, alert)
	for name, err := range errs {
		r.logger.Error("notifier failed",
			zap.String("notifier", name),
			zap.Error(err),
		)
	}

	r.logger.Info("alert routed",
		zap.String("symbol", alert.Symbol),
		zap.String("bias", string(alert.Current)),
		zap.Float64("confidence", alert.Confidence),
		zap.Int("notifiers", r.registry.Len()),
		zap.Int("errors", len(errs)),
	)
	return alert, true
}

// filter returns why an alert is dropped, or "" when it passes
func (r *Router) filter(a notifier.Alert) string {
	if a.Confidence < r.cfg.MinConfidence {
		return "below min confidence"
	}
	if r.cfg.TradeableOnly && !a.ShouldTrade {
		return "not tradeable"
	}
	if len(r.cfg.EnabledBiases) > 0 {
		allowed := false
		for _, b := range r.cfg.EnabledBiases {
			if a.Current == b {
				allowed = true
				break
			}
		}
		if !allowed {
			return "bias not enabled"
		}
	}

	r.mu.RLock()
	last, exists := r.cooldowns[key(a)]
	r.mu.RUnlock()
	if exists && r.now().Sub(last) < r.cfg.Cooldown {
		return "cooldown"
	}
	return ""
}

// ClearCooldown removes the cooldown of one symbol and interval
func (r *Router) ClearCooldown(symbol, interval string) {
	r.mu.Lock()
	delete(r.cooldowns, symbol+"|"+interval)
	r.mu.Unlock()
}

// CleanupExpiredCooldowns removes cooldown entries older than 2x the cooldown duration.
func (r *Router) CleanupExpiredCooldowns() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	expiry := r.cfg.Cooldown * 2
	removed := 0
	for k, last := range r.cooldowns {
		if now.Sub(last) > expiry {
			delete(r.cooldowns, k)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine periodically drops expired cooldowns until ctx is done.
func (r *Router) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := r.CleanupExpiredCooldowns(); removed > 0 {
					r.logger.Debug("cleaned up expired cooldowns", zap.Int("removed", removed))
				}
			}
		}
	}()
}

// Stats returns router statistics
func (r *Router) Stats() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]any{
		"cooldowns_active": len(r.cooldowns),
		"min_confidence":   r.cfg.MinConfidence,
		"cooldown_seconds": r.cfg.Cooldown.Seconds(),
		"enabled_biases":   r.cfg.EnabledBiases,
		"tradeable_only":   r.cfg.TradeableOnly,
	}
}
