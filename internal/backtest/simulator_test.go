package backtest

import (
	"errors"
	"math"
	"testing"

	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/strategy/ma_crossover"
)

const (
	L = core.PositionLong
	F = core.PositionFlat
)

func TestSimulate_Basic(t *testing.T) {
	series := makeSeries(t, "T", []float64{100, 110, 99})

	sim, err := Simulate(series, []core.Position{L, L, F})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []float64{1, 1.1, 0.99}
	if sim.Curve.Len() != len(want) {
		t.Fatalf("curve length = %d, want %d", sim.Curve.Len(), len(want))
	}
	for i, w := range want {
		if math.Abs(sim.Curve.Points[i].Equity-w) > 1e-12 {
			t.Errorf("equity[%d] = %v, want %v", i, sim.Curve.Points[i].Equity, w)
		}
		if !sim.Curve.Points[i].Date.Equal(series.Points[i].Date) {
			t.Errorf("date[%d] not aligned with series", i)
		}
	}
	if sim.Summary.TradeCount != 1 {
		t.Errorf("TradeCount = %d, want 1", sim.Summary.TradeCount)
	}
}

func TestSimulate_NoLookAhead(t *testing.T) {
	// A jump on the bar where the signal turns long must not be captured
	series := makeSeries(t, "T", []float64{100, 200, 200})

	sim, err := Simulate(series, []core.Position{F, L, F})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, p := range sim.Curve.Points {
		if p.Equity != 1 {
			t.Errorf("equity[%d] = %v, want 1", i, p.Equity)
		}
	}
	if sim.Summary.TradeCount != 1 {
		t.Errorf("TradeCount = %d, want 1", sim.Summary.TradeCount)
	}
}

func TestSimulate_Errors(t *testing.T) {
	one := makeSeries(t, "T", []float64{100})
	if _, err := Simulate(one, []core.Position{F}); !errors.Is(err, core.ErrEmptySeries) {
		t.Errorf("expected ErrEmptySeries, got %v", err)
	}

	two := makeSeries(t, "T", []float64{100, 101})
	if _, err := Simulate(two, []core.Position{F}); !errors.Is(err, core.ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams for length mismatch, got %v", err)
	}
}

func TestRiseFallScenario(t *testing.T) {
	series := makeSeries(t, "TENT", tent(300))
	params := core.StrategyParams{Fast: 10, Slow: 30}

	signal, err := ma_crossover.Signals(series, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sawExit := false
	for i := 1; i < len(signal); i++ {
		if signal[i-1] == L && signal[i] == F {
			sawExit = true
		}
	}
	if !sawExit {
		t.Error("expected at least one long -> flat transition")
	}

	sim, err := Simulate(series, signal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sim.Curve.Len() != series.Len() {
		t.Errorf("curve length = %d, want %d", sim.Curve.Len(), series.Len())
	}
	if sim.Summary.TradeCount <= 0 {
		t.Errorf("expected positive trade count, got %d", sim.Summary.TradeCount)
	}
	if sim.Summary.TotalReturn <= 0 {
		t.Errorf("riding the rise should be profitable, got %v", sim.Summary.TotalReturn)
	}
}
