package indicator

import "math"

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1; element i covers prices[i : i+period].
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)

	// Calculate first SMA
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result = append(result, sum/float64(period))

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// RSI calculates the Relative Strength Index with Wilder smoothing
// (alpha = 1/period, seeded from the first change). Output is aligned with
// prices; element 0 is NaN.
func RSI(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	if len(prices) == 0 {
		return out
	}
	out[0] = math.NaN()
	if period <= 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	alpha := 1.0 / float64(period)
	var up, down float64
	for i := 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		gain, loss := math.Max(delta, 0), math.Max(-delta, 0)
		if i == 1 {
			up, down = gain, loss
		} else {
			up = alpha*gain + (1-alpha)*up
			down = alpha*loss + (1-alpha)*down
		}
		rs := up / (down + 1e-12)
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// Momentum returns the fractional change over lookback bars ending at the
// last price. ok is false when there is not enough history.
func Momentum(prices []float64, lookback int) (value float64, ok bool) {
	if lookback <= 0 || len(prices) <= lookback {
		return 0, false
	}
	base := prices[len(prices)-1-lookback]
	if base == 0 {
		return 0, false
	}
	return prices[len(prices)-1]/base - 1, true
}
