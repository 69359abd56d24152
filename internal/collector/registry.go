package collector

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages price providers by name
type Registry struct {
	mu        sync.RWMutex
	providers map[string]PriceProvider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]PriceProvider),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(p PriceProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (PriceProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
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

// Chain resolves names in order into a fallback chain
func (r *Registry) Chain(names ...string) (*Chain, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no price providers configured")
	}
	providers := make([]PriceProvider, 0, len(names))
	for _, n := range names {
		p, ok := r.Get(n)
		if !ok {
			return nil, fmt.Errorf("unknown price provider: %s", n)
		}
		providers = append(providers, p)
	}
	return NewChain(providers...), nil
}
