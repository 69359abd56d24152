package indicator

import (
	"math"
	"testing"
)

func TestSMA_Calculate(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}

	sma := SMA(prices, 3)

	// [0] = (10+11+12)/3 = 11 ... [3] = (13+14+15)/3 = 14
	expected := []float64{11, 12, 13, 14}

	if len(sma) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(sma))
	}

	for i, v := range expected {
		if !almostEqual(sma[i], v, 1e-12) {
			t.Errorf("sma[%d] = %f, want %f", i, sma[i], v)
		}
	}
}

func TestSMA_NotEnoughData(t *testing.T) {
	if got := SMA([]float64{10, 11}, 5); len(got) != 0 {
		t.Errorf("expected empty slice, got %d values", len(got))
	}
}

func TestSMA_NonPositivePeriod(t *testing.T) {
	if got := SMA([]float64{10, 11}, 0); len(got) != 0 {
		t.Errorf("expected empty slice for period 0, got %v", got)
	}
}

func TestRSI_Extremes(t *testing.T) {
	rising := make([]float64, 40)
	falling := make([]float64, 40)
	for i := range rising {
		rising[i] = 100 + float64(i)
		falling[i] = 100 - float64(i)
	}

	up := RSI(rising, 14)
	down := RSI(falling, 14)

	if len(up) != len(rising) {
		t.Fatalf("RSI length = %d, want %d", len(up), len(rising))
	}
	if !math.IsNaN(up[0]) {
		t.Error("first RSI value should be NaN")
	}
	if up[len(up)-1] < 99 {
		t.Errorf("monotonic rise should saturate RSI near 100, got %f", up[len(up)-1])
	}
	if down[len(down)-1] > 1 {
		t.Errorf("monotonic fall should push RSI near 0, got %f", down[len(down)-1])
	}
}

func TestMomentum(t *testing.T) {
	prices := []float64{100, 105, 110, 120}

	got, ok := Momentum(prices, 3)
	if !ok || !almostEqual(got, 0.2, 1e-12) {
		t.Errorf("Momentum() = %f, %v; want 0.2, true", got, ok)
	}

	if _, ok := Momentum(prices, 4); ok {
		t.Error("expected not ok when lookback >= len(prices)")
	}
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}
