// Package correlate pairs two independently indexed series by austral summer
// and month-day key and computes Pearson correlations with significance:
// whole-series, per calendar day, and in running windows across summers.
//
// Alignment is the safety-critical step. Two series that pair incorrectly by
// date produce wrong but plausible-looking correlations, so any key mismatch
// is an AlignmentError and never absorbed.
package correlate

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/cryoclim/shelfmelt/pkg/calendar"
	"github.com/cryoclim/shelfmelt/pkg/regress"
	"github.com/cryoclim/shelfmelt/pkg/series"
)

// Result is a Pearson correlation with its two-tailed significance. Valid is
// false for degenerate inputs (zero variance or too small a sample); R and P
// are then NoData, which is distinguishable from a genuine r of zero.
type Result struct {
	R     float64
	P     float64
	N     int
	Valid bool
}

func noResult() Result {
	return Result{R: series.NoData, P: series.NoData}
}

// Options configures an alignment-correlation. LagDays shifts the second
// series back in time before matching, so a positive lag correlates a with
// an earlier b. Detrend removes each aligned vector's linear trend
// independently before correlating; interannual comparisons always set it.
type Options struct {
	Split   calendar.SplitMonth
	Detrend bool
	LagDays int
}

type key struct {
	summer   int
	monthDay string
}

func keysOf(s series.Series, split calendar.SplitMonth, lagDays int) (map[key]float64, []key) {
	m := make(map[key]float64, s.Len())
	order := make([]key, 0, s.Len())
	for i, d := range s.Dates {
		if lagDays != 0 {
			d = d.AddDays(-lagDays)
		}
		k := key{summer: split.SummerOf(d), monthDay: d.MonthDay()}
		if _, dup := m[k]; !dup {
			order = append(order, k)
		}
		m[k] = s.Values[i]
	}
	return m, order
}

// Correlate aligns a and b by (summer, month-day), with b's dates shifted
// back by LagDays, and returns the Pearson correlation of the aligned pairs.
// The two series must cover exactly the same keys; a mismatch is an
// AlignmentError. Pairs in which either side is NoData are excluded from the
// sample.
func Correlate(a, b series.Series, opts Options) (Result, error) {
	av, aorder := keysOf(a, opts.Split, 0)
	bv, _ := keysOf(b, opts.Split, opts.LagDays)

	if len(av) != len(bv) {
		return noResult(), &calendar.AlignmentError{
			Detail: fmt.Sprintf("%s has %d keys, %s has %d after lag %d",
				a.Unit, len(av), b.Unit, len(bv), opts.LagDays),
		}
	}
	for k := range av {
		if _, ok := bv[k]; !ok {
			return noResult(), &calendar.AlignmentError{
				Detail: fmt.Sprintf("key (%d, %s) present in %s but not in %s",
					k.summer, k.monthDay, a.Unit, b.Unit),
			}
		}
	}

	var xs, ys []float64
	for _, k := range aorder {
		x, y := av[k], bv[k]
		if series.IsNoData(x) || series.IsNoData(y) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return pearson(xs, ys, opts.Detrend), nil
}

// pearson computes r and its significance on already-aligned vectors,
// excluding pairs with NoData on either side.
func pearson(xs, ys []float64, detrend bool) Result {
	var fx, fy []float64
	for i := range xs {
		if series.IsNoData(xs[i]) || series.IsNoData(ys[i]) {
			continue
		}
		fx = append(fx, xs[i])
		fy = append(fy, ys[i])
	}
	xs, ys = fx, fy
	if detrend {
		xs = regress.Detrend(xs)
		ys = regress.Detrend(ys)
	}
	n := len(xs)
	if n < 3 {
		return noResult()
	}
	if stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		return noResult()
	}

	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return noResult()
	}

	var p float64
	if math.Abs(r) >= 1 {
		p = 0
	} else {
		t := r * math.Sqrt(float64(n-2)/(1-r*r))
		p = regress.StudentTPValue(t, float64(n-2))
	}
	return Result{R: r, P: p, N: n, Valid: true}
}

// PerCalendarDay correlates each unit's series with the index series
// independently for every month-day key: one correlation per (unit, day)
// across summers. The unit and day dimensions are fully independent. Keys
// with too few paired summers come back as invalid results, not errors.
func PerCalendarDay(perUnit map[string]series.Series, index series.Series, opts Options) (map[string]map[string]Result, error) {
	idx, _ := keysOf(index, opts.Split, opts.LagDays)

	out := make(map[string]map[string]Result, len(perUnit))
	for unit, s := range perUnit {
		av, _ := keysOf(s, opts.Split, 0)

		// Regroup both series by month-day, pairing by summer.
		type pairList struct{ xs, ys []float64 }
		byDay := make(map[string]*pairList)
		summers := make(map[string][]int)
		for k, x := range av {
			y, ok := idx[k]
			if !ok {
				return nil, &calendar.AlignmentError{
					Detail: fmt.Sprintf("unit %s key (%d, %s) missing from index %s",
						unit, k.summer, k.monthDay, index.Unit),
				}
			}
			pl := byDay[k.monthDay]
			if pl == nil {
				pl = &pairList{}
				byDay[k.monthDay] = pl
			}
			if series.IsNoData(x) || series.IsNoData(y) {
				continue
			}
			// Pairs must stay in summer order so detrending sees a
			// chronological sequence.
			summers[k.monthDay] = append(summers[k.monthDay], k.summer)
			pl.xs = append(pl.xs, x)
			pl.ys = append(pl.ys, y)
		}

		res := make(map[string]Result, len(byDay))
		for day, pl := range byDay {
			ord := summerOrder(summers[day])
			xs := reorder(pl.xs, ord)
			ys := reorder(pl.ys, ord)
			res[day] = pearson(xs, ys, opts.Detrend)
		}
		out[unit] = res
	}
	return out, nil
}

func summerOrder(summers []int) []int {
	ord := make([]int, len(summers))
	for i := range ord {
		ord[i] = i
	}
	sort.Slice(ord, func(a, b int) bool { return summers[ord[a]] < summers[ord[b]] })
	return ord
}

func reorder(vs []float64, ord []int) []float64 {
	out := make([]float64, len(vs))
	for i, j := range ord {
		out[i] = vs[j]
	}
	return out
}

// RunningCorrelation correlates two annual series inside a centered window
// of windowYears summers. Summers without the full symmetric window on both
// sides are invalid, mirroring the daily running mean's edge behavior, as are
// windows that span a gap of missing summers. The two series must cover
// identical summers.
func RunningCorrelation(a, b series.SummerSeries, windowYears int, detrend bool) ([]Result, error) {
	if windowYears < 1 || windowYears%2 == 0 {
		return nil, fmt.Errorf("running correlation window %d must be a positive odd number of years", windowYears)
	}
	if a.Len() != b.Len() {
		return nil, &calendar.AlignmentError{
			Detail: fmt.Sprintf("%s spans %d summers, %s spans %d", a.Unit, a.Len(), b.Unit, b.Len()),
		}
	}
	for i := range a.Summers {
		if a.Summers[i] != b.Summers[i] {
			return nil, &calendar.AlignmentError{
				Detail: fmt.Sprintf("summer %d in %s pairs with %d in %s", a.Summers[i], a.Unit, b.Summers[i], b.Unit),
			}
		}
	}

	side := (windowYears - 1) / 2
	out := make([]Result, a.Len())
	for i := range out {
		if i < side || i >= a.Len()-side {
			out[i] = noResult()
			continue
		}
		// A window whose span exceeds windowYears-1 crosses missing summers.
		if a.Summers[i+side]-a.Summers[i-side] != windowYears-1 {
			out[i] = noResult()
			continue
		}
		out[i] = pearson(a.Values[i-side:i+side+1], b.Values[i-side:i+side+1], detrend)
	}
	return out, nil
}
