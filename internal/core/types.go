package core

import (
	"fmt"
	"math"
	"time"
)

// PricePoint is a single daily close
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries is an ordered close-price history for one symbol.
// Dates are strictly increasing; gaps are allowed, duplicates are not.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// NewPriceSeries validates points and returns a series.
func NewPriceSeries(symbol string, points []PricePoint) (PriceSeries, error) {
	for i, p := range points {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
			return PriceSeries{}, Errorf(ErrInvalidSeries, "%s: non-positive close %v at %s", symbol, p.Close, p.Date.Format(time.DateOnly))
		}
		if i > 0 && !p.Date.After(points[i-1].Date) {
			return PriceSeries{}, Errorf(ErrInvalidSeries, "%s: dates not strictly increasing at %s", symbol, p.Date.Format(time.DateOnly))
		}
	}
	cp := make([]PricePoint, len(points))
	copy(cp, points)
	return PriceSeries{Symbol: symbol, Points: cp}, nil
}

// Len returns the number of points
func (s PriceSeries) Len() int {
	return len(s.Points)
}

// Closes extracts closing prices.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// Slice returns a copy of the points in [from, to).
func (s PriceSeries) Slice(from, to int) PriceSeries {
	cp := make([]PricePoint, to-from)
	copy(cp, s.Points[from:to])
	return PriceSeries{Symbol: s.Symbol, Points: cp}
}

// Clone returns a deep copy.
func (s PriceSeries) Clone() PriceSeries {
	return s.Slice(0, len(s.Points))
}

// StrategyParams configures the moving-average crossover.
type StrategyParams struct {
	Fast int `json:"fast" mapstructure:"fast"`
	Slow int `json:"slow" mapstructure:"slow"`
}

// Validate rejects non-positive windows and fast >= slow.
func (p StrategyParams) Validate() error {
	if p.Fast <= 0 || p.Slow <= 0 {
		return Errorf(ErrInvalidParams, "windows must be positive, got fast=%d slow=%d", p.Fast, p.Slow)
	}
	if p.Fast >= p.Slow {
		return Errorf(ErrInvalidParams, "fast must be < slow, got fast=%d slow=%d", p.Fast, p.Slow)
	}
	return nil
}

func (p StrategyParams) String() string {
	return fmt.Sprintf("%d/%d", p.Fast, p.Slow)
}

// Position is the signal state for one bar.
type Position string

const (
	PositionFlat Position = "flat"
	PositionLong Position = "long"
)

// Exposure returns 1 for long and 0 for flat.
func (p Position) Exposure() float64 {
	if p == PositionLong {
		return 1
	}
	return 0
}

// Action represents a recommendation
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionHold Action = "HOLD"
	ActionSell Action = "SELL"
)

// Pick is a ranked recommendation for one symbol.
type Pick struct {
	Symbol         string  `json:"symbol"`
	Recommendation Action  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
	Rationale      string  `json:"rationale,omitempty"`
}

// SymbolError attaches a failure to one symbol of a batch.
type SymbolError struct {
	Symbol string `json:"symbol"`
	Code   string `json:"code"`
	Error  string `json:"error"`
}
