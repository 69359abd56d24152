package ma_crossover

import (
	"fmt"

	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/indicator"
	"github.com/newthinker/argus/internal/strategy"
)

// Name is the registry key of the crossover strategy.
const Name = "sma_cross"

// MACrossover implements a moving average crossover strategy
type MACrossover struct {
	params core.StrategyParams
}

// New creates a new MA Crossover strategy
func New(params core.StrategyParams) (*MACrossover, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &MACrossover{params: params}, nil
}

// Factory adapts New to strategy.Factory.
func Factory(params core.StrategyParams) (strategy.Strategy, error) {
	return New(params)
}

func (m *MACrossover) Name() string {
	return Name
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("SMA Crossover (%d/%d)", m.params.Fast, m.params.Slow)
}

func (m *MACrossover) RequiredHistory() int {
	return m.params.Slow
}

// Params returns the configured windows.
func (m *MACrossover) Params() core.StrategyParams {
	return m.params
}

// Init overrides windows from fast/slow params and revalidates.
func (m *MACrossover) Init(cfg strategy.Config) error {
	next := m.params
	if fast, ok := intParam(cfg.Params, "fast"); ok {
		next.Fast = fast
	}
	if slow, ok := intParam(cfg.Params, "slow"); ok {
		next.Slow = slow
	}
	if err := next.Validate(); err != nil {
		return err
	}
	m.params = next
	return nil
}

func (m *MACrossover) Positions(series core.PriceSeries) ([]core.Position, error) {
	return Signals(series, m.params)
}

// Signals computes the long/flat signal for every bar. Bar t is long when
// SMA(fast) > SMA(slow), both ending at t; bars before slow-1 are flat.
func Signals(series core.PriceSeries, params core.StrategyParams) ([]core.Position, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	n := series.Len()
	if n < params.Slow {
		return nil, core.Errorf(core.ErrInsufficientHistory, "%s: have %d bars, need %d", series.Symbol, n, params.Slow)
	}

	closes := series.Closes()
	fastMA := indicator.SMA(closes, params.Fast)
	slowMA := indicator.SMA(closes, params.Slow)

	out := make([]core.Position, n)
	for t := range out {
		out[t] = core.PositionFlat
		if t < params.Slow-1 {
			continue
		}
		// SMA element i ends at bar i+period-1
		if fastMA[t-params.Fast+1] > slowMA[t-params.Slow+1] {
			out[t] = core.PositionLong
		}
	}
	return out, nil
}

func intParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
