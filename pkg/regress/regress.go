// Package regress provides the linear-trend tools used throughout the
// pipeline: ordinary least-squares detrending of daily and annual series and
// simple regression summaries (slope, p-value, R squared), including a
// per-cell form over gridded fields.
package regress

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cryoclim/shelfmelt/pkg/series"
)

// Result is a simple-regression summary of y on x. Valid is false when the
// regression is undefined (fewer than three paired points or zero variance
// in x); the numeric fields are then NoData.
type Result struct {
	Slope    float64
	PValue   float64
	RSquared float64
	N        int
	Valid    bool
}

func noResult() Result {
	return Result{Slope: series.NoData, PValue: series.NoData, RSquared: series.NoData}
}

// Detrend removes the ordinary least-squares linear trend from values,
// fitted against the position index 0..n-1. NoData positions are excluded
// from the fit, keep their index, and remain NoData in the output. With
// fewer than three defined points no trend can be estimated; the output is
// the defined values centered at zero, a documented limitation rather than
// a silent extrapolation.
func Detrend(values []float64) []float64 {
	var xs, ys []float64
	for i, v := range values {
		if series.IsNoData(v) {
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, v)
	}

	out := make([]float64, len(values))
	if len(ys) < 3 {
		mean := stat.Mean(ys, nil)
		for i, v := range values {
			if series.IsNoData(v) {
				out[i] = series.NoData
			} else {
				out[i] = v - mean
			}
		}
		return out
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	for i, v := range values {
		if series.IsNoData(v) {
			out[i] = series.NoData
			continue
		}
		out[i] = v - (alpha + beta*float64(i))
	}
	return out
}

// DetrendSeries applies Detrend to a series' values, preserving dates.
func DetrendSeries(s series.Series) series.Series {
	out := s.Copy()
	copy(out.Values, Detrend(s.Values))
	return out
}

// SimpleRegression fits y on x by ordinary least squares and reports the
// slope, its two-tailed p-value, and the coefficient of determination.
// Pairs with NoData on either side are excluded. When detrend is set, both
// vectors are independently detrended first (see Detrend).
func SimpleRegression(x, y []float64, detrend bool) (Result, error) {
	if len(x) != len(y) {
		return noResult(), &LengthError{LenX: len(x), LenY: len(y)}
	}
	if detrend {
		x = Detrend(x)
		y = Detrend(y)
	}

	var xs, ys []float64
	for i := range x {
		if series.IsNoData(x[i]) || series.IsNoData(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}

	n := len(xs)
	if n < 3 {
		return noResult(), nil
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) {
		return noResult(), nil
	}

	meanX := stat.Mean(xs, nil)
	var sxx, sse float64
	for i := range xs {
		dx := xs[i] - meanX
		sxx += dx * dx
		resid := ys[i] - (alpha + beta*xs[i])
		sse += resid * resid
	}
	if sxx == 0 {
		return noResult(), nil
	}

	r2 := stat.RSquaredFrom(est(xs, alpha, beta), ys, nil)

	var p float64
	if sse == 0 {
		// Perfect fit: the slope test statistic diverges.
		p = 0
	} else {
		se := math.Sqrt(sse / float64(n-2) / sxx)
		p = StudentTPValue(beta/se, float64(n-2))
	}

	return Result{Slope: beta, PValue: p, RSquared: r2, N: n, Valid: true}, nil
}

func est(xs []float64, alpha, beta float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = alpha + beta*x
	}
	return out
}

// StudentTPValue returns the two-tailed p-value of a t statistic with the
// given degrees of freedom. Degrees of freedom are always taken from the
// actual sample size of the call, never from a precomputed constant.
func StudentTPValue(t, dof float64) float64 {
	if dof <= 0 || math.IsNaN(t) {
		return series.NoData
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}
	return 2 * dist.Survival(math.Abs(t))
}

// LengthError reports mismatched vector lengths passed to a regression.
type LengthError struct {
	LenX, LenY int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("regression inputs have mismatched lengths %d and %d", e.LenX, e.LenY)
}
