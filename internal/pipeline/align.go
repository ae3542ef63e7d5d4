package pipeline

import (
	"sort"

	"github.com/cryoclim/shelfmelt/pkg/calendar"
	"github.com/cryoclim/shelfmelt/pkg/series"
)

// commonDates restricts two daily series to the dates they share, in a's
// order, so the correlator sees two series over an identical calendar.
func commonDates(a, b series.Series) (series.Series, series.Series) {
	bv := make(map[calendar.Date]float64, b.Len())
	for i, d := range b.Dates {
		bv[d] = b.Values[i]
	}
	x := series.New(a.Unit, 0)
	y := series.New(b.Unit, 0)
	for i, d := range a.Dates {
		v, ok := bv[d]
		if !ok {
			continue
		}
		x.Append(d, a.Values[i])
		y.Append(d, v)
	}
	return x, y
}

// commonSummers restricts two annual series to their shared summers, in
// chronological order.
func commonSummers(a, b series.SummerSeries) (series.SummerSeries, series.SummerSeries) {
	bv := make(map[int]float64, b.Len())
	for i, s := range b.Summers {
		bv[s] = b.Values[i]
	}
	x := series.SummerSeries{Unit: a.Unit}
	y := series.SummerSeries{Unit: b.Unit}
	for i, s := range a.Summers {
		v, ok := bv[s]
		if !ok {
			continue
		}
		x.Summers = append(x.Summers, s)
		x.Values = append(x.Values, a.Values[i])
		y.Summers = append(y.Summers, s)
		y.Values = append(y.Values, v)
	}
	return x, y
}

// sortMonthDays orders month-day keys chronologically within a summer.
func sortMonthDays(split calendar.SplitMonth, keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		return split.CompareMonthDays(keys[i], keys[j]) < 0
	})
}
