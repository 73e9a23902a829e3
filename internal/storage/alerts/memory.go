package alerts

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/notifier"
)

// MemoryStore is an in-memory alert store bounded to the newest maxSize alerts.
type MemoryStore struct {
	mu      sync.RWMutex
	alerts  []notifier.Alert
	maxSize int
}

// NewMemoryStore creates a new in-memory store with max capacity.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize < 1 {
		maxSize = 1
	}
	return &MemoryStore{
		alerts:  make([]notifier.Alert, 0, maxSize),
		maxSize: maxSize,
	}
}

// Save adds an alert to the store.
func (m *MemoryStore) Save(ctx context.Context, alert notifier.Alert) (notifier.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert.ID = uuid.NewString()
	m.alerts = append(m.alerts, alert)

	// Drop the oldest beyond capacity
	if len(m.alerts) > m.maxSize {
		m.alerts = append(m.alerts[:0:0], m.alerts[len(m.alerts)-m.maxSize:]...)
	}
	return alert, nil
}

// GetByID retrieves an alert by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*notifier.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.alerts {
		if m.alerts[i].ID == id {
			a := m.alerts[i]
			return &a, nil
		}
	}
	return nil, core.WrapError(core.ErrAlertNotFound, fmt.Errorf("%q", id))
}

// List returns alerts matching the filter, newest first.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]notifier.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []notifier.Alert{}
	skipped := 0
	for i := len(m.alerts) - 1; i >= 0; i-- {
		a := m.alerts[i]
		if !matches(a, filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		result = append(result, a)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

// Count returns the count of matching alerts.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, a := range m.alerts {
		if matches(a, filter) {
			count++
		}
	}
	return count, nil
}

func matches(a notifier.Alert, filter ListFilter) bool {
	if filter.Symbol != "" && a.Symbol != filter.Symbol {
		return false
	}
	if filter.Interval != "" && a.Interval != filter.Interval {
		return false
	}
	if filter.Bias != "" && a.Current != filter.Bias {
		return false
	}
	if !filter.From.IsZero() && a.At.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && a.At.After(filter.To) {
		return false
	}
	return true
}
