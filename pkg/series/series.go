// Package series holds date-indexed value series for a single spatial unit
// and the windowed statistics computed over them: centered running means
// within an austral summer and per-calendar-day climatologies across summers.
package series

import (
	"math"
	"sort"

	"github.com/cryoclim/shelfmelt/pkg/calendar"
)

// NoData is the sentinel for a missing or undefined value. It propagates
// through every statistic; it is never an error.
var NoData = math.NaN()

// IsNoData reports whether v is the missing-value sentinel.
func IsNoData(v float64) bool {
	return math.IsNaN(v)
}

// Series is an ordered sequence of (date, value) observations for one unit
// (an ice shelf, a region, or a climate index). Dates and Values are
// parallel; within one summer the dates are contiguous and ascending.
type Series struct {
	Unit   string
	Dates  []calendar.Date
	Values []float64
}

// New creates an empty series for the named unit with room for n
// observations.
func New(unit string, n int) Series {
	return Series{
		Unit:   unit,
		Dates:  make([]calendar.Date, 0, n),
		Values: make([]float64, 0, n),
	}
}

// Append adds one observation. Missing observations are appended as NoData,
// never skipped.
func (s *Series) Append(d calendar.Date, v float64) {
	s.Dates = append(s.Dates, d)
	s.Values = append(s.Values, v)
}

// Len returns the number of observations, defined or not.
func (s Series) Len() int {
	return len(s.Values)
}

// Defined returns the number of observations that are not NoData.
func (s Series) Defined() int {
	n := 0
	for _, v := range s.Values {
		if !IsNoData(v) {
			n++
		}
	}
	return n
}

// Sort orders observations chronologically in place.
func (s Series) Sort() {
	idx := make([]int, s.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return s.Dates[idx[a]].Before(s.Dates[idx[b]])
	})
	dates := make([]calendar.Date, s.Len())
	values := make([]float64, s.Len())
	for i, j := range idx {
		dates[i] = s.Dates[j]
		values[i] = s.Values[j]
	}
	copy(s.Dates, dates)
	copy(s.Values, values)
}

// SummerSlice is the run of observations belonging to one austral summer.
type SummerSlice struct {
	Summer int
	Dates  []calendar.Date
	Values []float64
}

// BySummer partitions the series into summer slices in chronological order.
// The slices share backing storage with the series.
func (s Series) BySummer(split calendar.SplitMonth) []SummerSlice {
	var out []SummerSlice
	start := 0
	for i := 1; i <= s.Len(); i++ {
		if i == s.Len() || split.SummerOf(s.Dates[i]) != split.SummerOf(s.Dates[start]) {
			out = append(out, SummerSlice{
				Summer: split.SummerOf(s.Dates[start]),
				Dates:  s.Dates[start:i],
				Values: s.Values[start:i],
			})
			start = i
		}
	}
	return out
}

// Copy returns a deep copy of the series.
func (s Series) Copy() Series {
	c := Series{
		Unit:   s.Unit,
		Dates:  make([]calendar.Date, s.Len()),
		Values: make([]float64, s.Len()),
	}
	copy(c.Dates, s.Dates)
	copy(c.Values, s.Values)
	return c
}

// SummerSeries is a per-summer annual series: one value per austral summer.
// Used for interannual statistics such as running correlations across years.
type SummerSeries struct {
	Unit    string
	Summers []int
	Values  []float64
}

// Len returns the number of summers.
func (s SummerSeries) Len() int {
	return len(s.Values)
}
