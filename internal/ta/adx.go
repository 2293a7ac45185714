package ta

import "math"

// ADX is a simplified Wilder ADX fed with one high/low pair per update.
// The previous high/low stand in for the previous close.
type ADX struct {
	Period int
	Highs  []float64
	Lows   []float64
	DX     []float64
}

// Update appends a bar and returns the current ADX. ok is false until
// Period+1 bars have been seen.
func (a *ADX) Update(high, low float64) (adx float64, ok bool) {
	a.Highs = append(a.Highs, high)
	a.Lows = append(a.Lows, low)
	a.Highs = Tail(a.Highs, a.Period+1)
	a.Lows = Tail(a.Lows, a.Period+1)

	if len(a.Highs) < a.Period+1 {
		return 0, false
	}

	var trSum, plusSum, minusSum float64
	for i := 1; i < len(a.Highs); i++ {
		h, l := a.Highs[i], a.Lows[i]
		ph, pl := a.Highs[i-1], a.Lows[i-1]
		trSum += math.Max(h-l, math.Max(math.Abs(h-ph), math.Abs(l-pl)))

		up := h - ph
		down := pl - l
		if up > down && up > 0 {
			plusSum += up
		}
		if down > up && down > 0 {
			minusSum += down
		}
	}
	if trSum == 0 {
		return 0, true
	}

	diPlus := plusSum / trSum * 100
	diMinus := minusSum / trSum * 100
	dx := math.Abs(diPlus-diMinus) / (diPlus + diMinus + 1e-10) * 100

	a.DX = Tail(append(a.DX, dx), a.Period)
	return SMA(a.DX, len(a.DX)), true
}

// Reset drops all history.
func (a *ADX) Reset() {
	a.Highs, a.Lows, a.DX = nil, nil, nil
}
