package interpolation

import "math"

// TrendPercent returns the signed change from previous to current as a
// percentage of |previous|, rounded to one decimal. Positive means the value
// went up.
//
// A zero or NaN previous value means there is no baseline and yields 0.
func TrendPercent(current, previous float64) float64 {
	if previous == 0 || math.IsNaN(previous) {
		return 0
	}
	return round((current-previous)/math.Abs(previous)*100, 1)
}
