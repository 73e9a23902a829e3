package collector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/confluence/internal/core"
)

// Registry manages bar providers by name
type Registry struct {
	mu        sync.RWMutex
	providers map[string]BarProvider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]BarProvider),
	}
}

// Register adds a provider, replacing any with the same name
func (r *Registry) Register(p BarProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (BarProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Lookup is Get with a coded error for unknown names
func (r *Registry) Lookup(name string) (BarProvider, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, core.WrapError(core.ErrProviderNotFound, fmt.Errorf("%q", name))
	}
	return p, nil
}

// Names returns registered provider names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
