package series

import (
	"gonum.org/v1/gonum/stat"

	"github.com/cryoclim/shelfmelt/pkg/calendar"
)

// SummerMeans collapses a daily series to one mean per austral summer,
// ignoring NoData days. A summer with no defined day is NoData so the
// summer axis stays contiguous for interannual statistics.
func SummerMeans(s Series, split calendar.SplitMonth) SummerSeries {
	out := SummerSeries{Unit: s.Unit}
	for _, sl := range s.BySummer(split) {
		var vs []float64
		for _, v := range sl.Values {
			if !IsNoData(v) {
				vs = append(vs, v)
			}
		}
		out.Summers = append(out.Summers, sl.Summer)
		if len(vs) == 0 {
			out.Values = append(out.Values, NoData)
		} else {
			out.Values = append(out.Values, stat.Mean(vs, nil))
		}
	}
	return out
}

// RowMeans collapses summer-aligned monthly rows to one mean per summer,
// ignoring NoData months.
func RowMeans(rows []calendar.SummerRow, unit string) SummerSeries {
	out := SummerSeries{Unit: unit}
	for _, r := range rows {
		var vs []float64
		for _, v := range r.Months {
			if !IsNoData(v) {
				vs = append(vs, v)
			}
		}
		out.Summers = append(out.Summers, r.Summer)
		if len(vs) == 0 {
			out.Values = append(out.Values, NoData)
		} else {
			out.Values = append(out.Values, stat.Mean(vs, nil))
		}
	}
	return out
}
