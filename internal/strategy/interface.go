package strategy

import (
	"github.com/newthinker/argus/internal/core"
)

// Config holds strategy configuration
type Config struct {
	Params map[string]any
}

// Strategy turns a price series into a position per bar.
// Implementations must not look ahead: position t depends only on bars 0..t.
type Strategy interface {
	Name() string
	Description() string
	// RequiredHistory is the minimum number of bars Positions accepts.
	RequiredHistory() int
	Init(cfg Config) error
	Positions(series core.PriceSeries) ([]core.Position, error)
}

// Factory builds a strategy for a parameter set.
type Factory func(params core.StrategyParams) (Strategy, error)
