package backtest

import (
	"testing"
	"time"

	"github.com/newthinker/argus/internal/core"
)

func makeSeries(t *testing.T, symbol string, closes []float64) core.PriceSeries {
	t.Helper()
	base := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	points := make([]core.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = core.PricePoint{Date: base.AddDate(0, 0, i), Close: c}
	}
	s, err := core.NewPriceSeries(symbol, points)
	if err != nil {
		t.Fatalf("building series: %v", err)
	}
	return s
}

// tent rises linearly for n/2 bars then falls linearly
func tent(n int) []float64 {
	closes := make([]float64, n)
	peak := n / 2
	for i := range closes {
		if i < peak {
			closes[i] = 100 + float64(i)
		} else {
			closes[i] = 100 + float64(peak-1) - float64(i-peak+1)
		}
	}
	return closes
}
