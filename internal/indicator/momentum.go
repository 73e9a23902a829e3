package indicator

// StochPoint is one Stochastic-RSI reading
type StochPoint struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

// MACDPoint is one MACD reading
type MACDPoint struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// RSI calculates the Relative Strength Index with Wilder smoothing.
// Values before the first full period are held at 50.
func RSI(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	for i := range result {
		result[i] = 50
	}
	if period <= 0 || len(values) <= period {
		return result
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		gain, loss := change(values[i] - values[i-1])
		avgGain += gain
		avgLoss += loss
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	result[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(values); i++ {
		gain, loss := change(values[i] - values[i-1])
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		result[i] = rsiValue(avgGain, avgLoss)
	}

	return result
}

func change(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// StochRSI normalises RSI into 0..100 over stochPeriod and smooths it into %K and %D
func StochRSI(values []float64, rsiPeriod, stochPeriod, kPeriod, dPeriod int) []StochPoint {
	rsi := RSI(values, rsiPeriod)
	hi := RollingMax(rsi, stochPeriod)
	lo := RollingMin(rsi, stochPeriod)

	raw := make([]float64, len(rsi))
	for i, r := range rsi {
		if i < stochPeriod || hi[i] == lo[i] {
			raw[i] = 50
			continue
		}
		raw[i] = (r - lo[i]) / (hi[i] - lo[i]) * 100
	}

	k := smoothTail(raw, kPeriod)
	d := smoothTail(k, dPeriod)

	// running window sums drift by an ulp or two
	result := make([]StochPoint, len(values))
	for i := range result {
		result[i] = StochPoint{K: clampPercent(k[i]), D: clampPercent(d[i])}
	}
	return result
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// MACD calculates the fast/slow EMA spread, its signal EMA and the histogram
func MACD(values []float64, fast, slow, signal int) []MACDPoint {
	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)

	line := make([]float64, len(values))
	for i := range values {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig := EMA(line, signal)

	result := make([]MACDPoint, len(values))
	for i := range values {
		result[i] = MACDPoint{
			MACD:      line[i],
			Signal:    sig[i],
			Histogram: line[i] - sig[i],
		}
	}
	return result
}
