package indicator

import (
	"math"
	"testing"
)

func TestRollingSum(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	got := RollingSum(values, 3)
	expected := []float64{1, 3, 6, 9, 12}

	for i, v := range expected {
		if got[i] != v {
			t.Errorf("sum[%d] = %f, want %f", i, got[i], v)
		}
	}
}

func TestSMA_Calculate(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}

	sma := SMA(prices, 3)

	// Warm-up is the cumulative mean, then the 3-bar mean:
	// [0]=10 [1]=10.5 [2]=11 [3]=12 [4]=13 [5]=14
	expected := []float64{10, 10.5, 11, 12, 13, 14}

	if len(sma) != len(prices) {
		t.Fatalf("expected %d values, got %d", len(prices), len(sma))
	}

	for i, v := range expected {
		if !almostEqual(sma[i], v, 1e-12) {
			t.Errorf("sma[%d] = %f, want %f", i, sma[i], v)
		}
	}
}

func TestRollingMaxMin(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6}

	maxes := RollingMax(values, 3)
	mins := RollingMin(values, 3)

	wantMax := []float64{3, 3, 4, 4, 5, 9, 9, 9}
	wantMin := []float64{3, 1, 1, 1, 1, 1, 2, 2}

	for i := range values {
		if maxes[i] != wantMax[i] {
			t.Errorf("max[%d] = %f, want %f", i, maxes[i], wantMax[i])
		}
		if mins[i] != wantMin[i] {
			t.Errorf("min[%d] = %f, want %f", i, mins[i], wantMin[i])
		}
	}
}

func TestRollingMax_MatchesBruteForce(t *testing.T) {
	values := make([]float64, 200)
	for i := range values {
		values[i] = math.Sin(float64(i)*0.37) * float64(i%17)
	}

	for _, period := range []int{1, 2, 5, 14, 50} {
		got := RollingMax(values, period)
		for i := range values {
			start := i - period + 1
			if start < 0 {
				start = 0
			}
			want := values[start]
			for _, v := range values[start : i+1] {
				want = math.Max(want, v)
			}
			if got[i] != want {
				t.Fatalf("period %d: max[%d] = %f, want %f", period, i, got[i], want)
			}
		}
	}
}

func TestEMA_SeedIsFirstValue(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}

	for _, period := range []int{1, 3, 9, 50, 200} {
		ema := EMA(prices, period)
		if len(ema) != len(prices) {
			t.Fatalf("expected %d values, got %d", len(prices), len(ema))
		}
		if ema[0] != prices[0] {
			t.Errorf("period %d: ema[0] = %f, want %f", period, ema[0], prices[0])
		}
	}
}

func TestEMA_Calculate(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}
	ema := EMA(prices, 3)

	// k = 0.5: 10, 10.5, 11.25, 12.125 ...
	if !almostEqual(ema[1], 10.5, 1e-12) || !almostEqual(ema[2], 11.25, 1e-12) {
		t.Errorf("unexpected ema values %v", ema[:3])
	}

	for i := 1; i < len(ema); i++ {
		if ema[i] <= ema[i-1] {
			t.Errorf("EMA should be increasing, ema[%d]=%f <= ema[%d]=%f", i, ema[i], i-1, ema[i-1])
		}
	}
}

func TestEMA_Empty(t *testing.T) {
	if len(EMA(nil, 5)) != 0 {
		t.Error("expected empty slice")
	}
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}
