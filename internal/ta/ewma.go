package ta

import "math"

// EWMAParams configures the deviation z-score estimator.
type EWMAParams struct {
	Alpha                float64
	MinVariance          float64
	BiasCorrectionPeriod int
}

// UpdateEWMAZ folds one deviation into the running mean/variance and returns
// the updated estimates together with the z-score of the deviation.
// count is the observation number including this one.
func UpdateEWMAZ(count int, ema, variance, deviation float64, p EWMAParams) (newEma, newVariance, z float64) {
	if count <= 1 {
		newEma = deviation
		newVariance = 2 * math.Abs(deviation)
	} else {
		prev := ema
		newEma = (1-p.Alpha)*ema + p.Alpha*deviation
		// The squared term uses the mean from before this update.
		d := deviation - prev
		newVariance = (1-p.Alpha)*variance + p.Alpha*d*d
	}

	eff := EffectiveVariance(count, newVariance, p)
	return newEma, newVariance, deviation / math.Sqrt(eff)
}

// EffectiveVariance applies warm-up bias correction and the smooth floor.
// The result is always >= p.MinVariance.
func EffectiveVariance(count int, variance float64, p EWMAParams) float64 {
	v := variance
	if count >= 1 && count < p.BiasCorrectionPeriod {
		if w := (1 - math.Pow(1-p.Alpha, float64(count))) / p.Alpha; w > 0 {
			v /= w
		}
	}
	return SmoothFloor(v, p.MinVariance)
}

// SmoothFloor clamps v to floor and blends quadratically up to 1.5*floor so
// the effective variance has no jump at the threshold.
func SmoothFloor(v, floor float64) float64 {
	switch {
	case v <= floor:
		return floor
	case v < 1.5*floor:
		excess := v - floor
		return floor + excess*(excess/(0.5*floor))
	default:
		return v
	}
}
