package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/argus/internal/core"
	"go.uber.org/zap"
)

// Registry maps strategy names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *zap.Logger
}

// NewRegistry creates an empty strategy registry
func NewRegistry(logger ...*zap.Logger) *Registry {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    l,
	}
}

// Register adds a factory under name, replacing any previous one
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		r.logger.Warn("replacing strategy factory", zap.String("strategy", name))
	}
	r.factories[name] = f
}

// Names returns registered strategy names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Factory returns the factory registered under name
func (r *Registry) Factory(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Build creates a strategy by name. Params are validated by the factory.
func (r *Registry) Build(name string, params core.StrategyParams) (Strategy, error) {
	f, ok := r.Factory(name)
	if !ok {
		return nil, fmt.Errorf("unknown strategy: %s", name)
	}
	return f(params)
}
