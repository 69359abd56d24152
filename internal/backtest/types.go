package backtest

import (
	"time"

	"github.com/newthinker/argus/internal/core"
)

// EquityPoint is the strategy equity at the close of one bar
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

// EquityCurve is aligned 1:1 with the simulated series, base 1.0
type EquityCurve struct {
	Points []EquityPoint `json:"points"`
}

// Len returns the number of points
func (c EquityCurve) Len() int {
	return len(c.Points)
}

// Values returns the equity values in order
func (c EquityCurve) Values() []float64 {
	out := make([]float64, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Equity
	}
	return out
}

// Final returns the last equity value, or 1 for an empty curve
func (c EquityCurve) Final() float64 {
	if len(c.Points) == 0 {
		return 1
	}
	return c.Points[len(c.Points)-1].Equity
}

// Summary holds performance statistics derived from an equity curve
type Summary struct {
	TotalReturn float64 `json:"total_return"` // final equity - 1
	MaxDrawdown float64 `json:"max_drawdown"` // largest peak-to-trough decline, 0..1
	TradeCount  int     `json:"trade_count"`
	CAGR        float64 `json:"cagr"`
	Sharpe      float64 `json:"sharpe"`   // annualized, rf = 0
	WinRate     float64 `json:"win_rate"` // share of bars with positive strategy return
}

// Simulation is the output of one equity simulation
type Simulation struct {
	Curve   EquityCurve     `json:"curve"`
	Returns []float64       `json:"returns"` // daily strategy returns, Returns[0] = 0
	Signal  []core.Position `json:"signal"`
	Summary Summary         `json:"summary"`
}

// Result is the backtest of one strategy on one symbol
type Result struct {
	Strategy  string              `json:"strategy"`
	Symbol    string              `json:"symbol"`
	Params    core.StrategyParams `json:"params"`
	StartDate time.Time           `json:"start_date"`
	EndDate   time.Time           `json:"end_date"`
	Bars      int                 `json:"bars"`
	Summary   Summary             `json:"summary"`
	Curve     EquityCurve         `json:"curve"`
}

// Candidate is one evaluated grid point
type Candidate struct {
	Params core.StrategyParams `json:"params"`
	Index  int                 `json:"index"` // position in the enumerated grid
	IS     Summary             `json:"is"`
	OS     Summary             `json:"os"`
}

// SkippedCandidate is a grid point that could not be evaluated
type SkippedCandidate struct {
	Params core.StrategyParams `json:"params"`
	Index  int                 `json:"index"`
	Reason string              `json:"reason"`
}

// OptimizeRequest configures a grid search
type OptimizeRequest struct {
	FastValues []int
	SlowValues []int
	Split      float64
	TopK       int
	// Workers > 1 evaluates candidates concurrently
	Workers int
}

// Optimization is the result of a grid search
type Optimization struct {
	Symbol      string             `json:"symbol,omitempty"`
	Split       float64            `json:"split"`
	BarsTotal   int                `json:"bars_total"`
	BarsIS      int                `json:"bars_is"`
	BarsOS      int                `json:"bars_os"`
	Best        Candidate          `json:"best"`
	Leaderboard []Candidate        `json:"leaderboard"`
	Evaluated   int                `json:"evaluated"`
	Skipped     []SkippedCandidate `json:"skipped,omitempty"`
}
