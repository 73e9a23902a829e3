// Package indicator implements causal technical indicators over bar series.
// Every function returns a slice aligned index-for-index with its input.
package indicator

// RollingSum returns the sum of the last min(period, i+1) values at each index
func RollingSum(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	if period <= 0 {
		return result
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		result[i] = sum
	}

	return result
}

// RollingMean returns the mean of the last min(period, i+1) values.
// During warm-up it is the cumulative mean.
func RollingMean(values []float64, period int) []float64 {
	result := RollingSum(values, period)
	if period <= 0 {
		return result
	}

	for i := range result {
		n := i + 1
		if n > period {
			n = period
		}
		result[i] /= float64(n)
	}

	return result
}

// SMA calculates Simple Moving Average aligned with the input
func SMA(values []float64, period int) []float64 {
	return RollingMean(values, period)
}

// RollingMax returns the maximum of the last min(period, i+1) values
func RollingMax(values []float64, period int) []float64 {
	return rollingExtreme(values, period, func(a, b float64) bool { return a > b })
}

// RollingMin returns the minimum of the last min(period, i+1) values
func RollingMin(values []float64, period int) []float64 {
	return rollingExtreme(values, period, func(a, b float64) bool { return a < b })
}

func rollingExtreme(values []float64, period int, better func(a, b float64) bool) []float64 {
	result := make([]float64, len(values))
	if period <= 0 {
		return result
	}

	// Monotonic deque of indices
	deque := make([]int, 0, period)
	for i, v := range values {
		for len(deque) > 0 && deque[0] <= i-period {
			deque = deque[1:]
		}
		for len(deque) > 0 && !better(values[deque[len(deque)-1]], v) {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, i)
		result[i] = values[deque[0]]
	}

	return result
}

// EMA calculates Exponential Moving Average seeded with the first value
func EMA(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	if len(values) == 0 {
		return result
	}

	k := 2.0 / float64(period+1)
	ema := values[0]
	result[0] = ema

	for i := 1; i < len(values); i++ {
		ema = values[i]*k + ema*(1-k)
		result[i] = ema
	}

	return result
}

// smoothTail keeps raw values for i < window and averages the last window values after
func smoothTail(values []float64, window int) []float64 {
	result := make([]float64, len(values))
	means := RollingMean(values, window)
	for i, v := range values {
		if i < window {
			result[i] = v
		} else {
			result[i] = means[i]
		}
	}
	return result
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}
