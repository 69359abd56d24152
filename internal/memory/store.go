// Package memory persists the best known strategy parameters per symbol.
// Updates are monotonic: an entry is only replaced by a strictly better
// objective unless the update is forced.
package memory

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/newthinker/argus/internal/core"
)

// Entry is the stored best parameter set for one symbol.
type Entry struct {
	Symbol    string              `json:"symbol"`
	Params    core.StrategyParams `json:"params"`
	Objective float64             `json:"objective"` // out-of-sample total return, higher is better
	PickLabel string              `json:"pick_label,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Stale reports whether the entry is older than maxAge at now.
// A zero maxAge never goes stale.
func (e Entry) Stale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(e.UpdatedAt) > maxAge
}

// Update is a proposed replacement for a symbol's entry.
type Update struct {
	Symbol    string
	Params    core.StrategyParams
	Objective float64
	PickLabel string
	Force     bool
}

// Store is the memory contract. Upserts for one symbol are serialized.
type Store interface {
	// Get returns the entry for symbol; ok is false when none exists.
	Get(ctx context.Context, symbol string) (entry Entry, ok bool, err error)

	// Upsert applies u when no entry exists, when u.Objective is strictly
	// greater than the stored one, or when u.Force is set.
	Upsert(ctx context.Context, u Update) (applied bool, err error)

	// List returns current entries ordered by symbol.
	List(ctx context.Context) ([]Entry, error)

	// Recent returns the last n applied updates, newest first.
	Recent(ctx context.Context, n int) ([]Entry, error)

	Close() error
}

// Option configures a store
type Option func(*options)

type options struct {
	now        func() time.Time
	maxHistory int
}

// WithClock overrides time.Now for UpdatedAt stamps
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMaxHistory caps the in-memory audit trail
func WithMaxHistory(n int) Option {
	return func(o *options) { o.maxHistory = n }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, maxHistory: 1000}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func normalize(u Update) (Update, error) {
	u.Symbol = strings.ToUpper(strings.TrimSpace(u.Symbol))
	if u.Symbol == "" {
		return u, core.Errorf(core.ErrInvalidParams, "memory: symbol is required")
	}
	if err := u.Params.Validate(); err != nil {
		return u, err
	}
	if math.IsNaN(u.Objective) || math.IsInf(u.Objective, 0) {
		return u, core.Errorf(core.ErrInvalidParams, "memory: objective must be finite, got %v", u.Objective)
	}
	return u, nil
}

func improves(u Update, current Entry, exists bool) bool {
	return !exists || u.Force || u.Objective > current.Objective
}
