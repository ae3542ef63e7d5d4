package series

import "math"

// DecimalsFor derives the output precision for a sample from its standard
// deviation: one more decimal place than the data's intrinsic precision.
// A standard deviation of 3.2 gives 1 decimal, 0.04 gives 3, 250 gives 0.
// Undefined or zero spread falls back to one decimal.
func DecimalsFor(sd float64) int {
	if IsNoData(sd) || sd <= 0 {
		return 1
	}
	d := -int(math.Floor(math.Log10(sd))) + 1
	if d < 0 {
		return 0
	}
	if d > 10 {
		return 10
	}
	return d
}

// RoundTo rounds v to the given number of decimal places. NoData passes
// through unchanged.
func RoundTo(v float64, decimals int) float64 {
	if IsNoData(v) {
		return v
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
