package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear annualizes daily statistics
const TradingDaysPerYear = 252

// Summarize computes performance statistics from a curve, its daily
// strategy returns and the number of position flips.
func Summarize(curve EquityCurve, returns []float64, trades int) Summary {
	values := curve.Values()
	return Summary{
		TotalReturn: totalReturn(values),
		MaxDrawdown: maxDrawdown(values),
		TradeCount:  trades,
		CAGR:        cagr(values),
		Sharpe:      sharpeRatio(returns),
		WinRate:     winRate(returns),
	}
}

func totalReturn(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	return equity[len(equity)-1] - 1
}

// maxDrawdown finds the largest peak-to-trough decline as a fraction of the peak
func maxDrawdown(equity []float64) float64 {
	var maxDD, peak float64
	for _, e := range equity {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			continue
		}
		if e > peak {
			peak = e
		}
		if peak > 0 {
			if dd := (peak - e) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return math.Min(maxDD, 1)
}

func cagr(equity []float64) float64 {
	if len(equity) == 0 || equity[0] <= 0 {
		return 0
	}
	years := float64(len(equity)) / TradingDaysPerYear
	total := equity[len(equity)-1] / equity[0]
	if total <= 0 {
		return 0
	}
	return math.Pow(total, 1/years) - 1
}

// sharpeRatio is annualized with a zero risk-free rate and population std dev
func sharpeRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return math.Sqrt(TradingDaysPerYear) * mean / std
}

func winRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var wins int
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}
