package ta

import "math"

func SMA(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		sum += vals[i]
	}
	return sum / float64(n)
}

// MeanAbsChange is the average absolute tick-to-tick change over the last n values.
func MeanAbsChange(vals []float64, n int) float64 {
	if n <= 0 || len(vals) < 2 {
		return 0
	}
	start := len(vals) - n
	if start < 1 {
		start = 1
	}
	sum, cnt := 0.0, 0
	for i := start; i < len(vals); i++ {
		sum += math.Abs(vals[i] - vals[i-1])
		cnt++
	}
	if cnt == 0 {
		return 0
	}
	return sum / float64(cnt)
}

// PctChange returns the percent change from the value lookback entries back to the last one.
func PctChange(vals []float64, lookback int) float64 {
	if lookback <= 0 || len(vals) < lookback {
		return 0
	}
	ref := vals[len(vals)-lookback]
	if ref == 0 {
		return 0
	}
	return (vals[len(vals)-1] - ref) / ref * 100
}

// Tail keeps at most n trailing values.
func Tail(vals []float64, n int) []float64 {
	if len(vals) <= n {
		return vals
	}
	return append(vals[:0:0], vals[len(vals)-n:]...)
}
