package backtest

import (
	"github.com/newthinker/argus/internal/core"
)

// Simulate replays a signal over a series. The position held during bar t is
// the signal of bar t-1, so no bar trades on its own close.
func Simulate(series core.PriceSeries, signal []core.Position) (Simulation, error) {
	n := series.Len()
	if n < 2 {
		return Simulation{}, core.Errorf(core.ErrEmptySeries, "%s: %d bars", series.Symbol, n)
	}
	if len(signal) != n {
		return Simulation{}, core.Errorf(core.ErrInvalidParams, "signal length %d does not match series length %d", len(signal), n)
	}

	points := make([]EquityPoint, n)
	returns := make([]float64, n)
	points[0] = EquityPoint{Date: series.Points[0].Date, Equity: 1}

	held := core.PositionFlat
	trades := 0
	for t := 1; t < n; t++ {
		if signal[t-1] != held {
			held = signal[t-1]
			trades++
		}
		r := series.Points[t].Close/series.Points[t-1].Close - 1
		returns[t] = held.Exposure() * r
		points[t] = EquityPoint{
			Date:   series.Points[t].Date,
			Equity: points[t-1].Equity * (1 + returns[t]),
		}
	}

	curve := EquityCurve{Points: points}
	return Simulation{
		Curve:   curve,
		Returns: returns,
		Signal:  append([]core.Position(nil), signal...),
		Summary: Summarize(curve, returns, trades),
	}, nil
}
