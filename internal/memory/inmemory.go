package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// InMemory is a process-local Store.
type InMemory struct {
	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	entries map[string]Entry
	history []Entry
	opts    options
}

// NewInMemory creates an empty in-memory store.
func NewInMemory(opts ...Option) *InMemory {
	return &InMemory{
		locks:   make(map[string]*sync.Mutex),
		entries: make(map[string]Entry),
		opts:    buildOptions(opts),
	}
}

func (m *InMemory) lockFor(symbol string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		m.locks[symbol] = l
	}
	return l
}

// Get returns the entry for symbol.
func (m *InMemory) Get(ctx context.Context, symbol string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[strings.ToUpper(symbol)]
	return e, ok, nil
}

// Upsert applies u under the symbol's lock.
func (m *InMemory) Upsert(ctx context.Context, u Update) (bool, error) {
	u, err := normalize(u)
	if err != nil {
		return false, err
	}

	l := m.lockFor(u.Symbol)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.entries[u.Symbol]
	if !improves(u, current, exists) {
		return false, nil
	}

	e := Entry{
		Symbol:    u.Symbol,
		Params:    u.Params,
		Objective: u.Objective,
		PickLabel: u.PickLabel,
		UpdatedAt: m.opts.now().UTC(),
	}
	m.entries[u.Symbol] = e
	m.history = append(m.history, e)

	// Trim if over capacity (remove oldest)
	if m.opts.maxHistory > 0 && len(m.history) > m.opts.maxHistory {
		m.history = m.history[len(m.history)-m.opts.maxHistory:]
	}
	return true, nil
}

// List returns all entries ordered by symbol.
func (m *InMemory) List(ctx context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// Recent returns the last n applied updates, newest first.
func (m *InMemory) Recent(ctx context.Context, n int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 || n > len(m.history) {
		n = len(m.history)
	}
	out := make([]Entry, 0, n)
	for i := len(m.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.history[i])
	}
	return out, nil
}

// Close is a no-op.
func (m *InMemory) Close() error {
	return nil
}
