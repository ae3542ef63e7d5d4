package calendar

import (
	"fmt"
	"math"
	"sort"
)

// YearRow is one calendar year of a monthly table. Months is indexed 0-11
// for January-December; missing months are NaN.
type YearRow struct {
	Year   int
	Months [MonthsPerSummer]float64
}

// SummerRow is one austral summer of a monthly table. Months is in
// chronological summer order: the post-split months of the preceding
// calendar year followed by the pre-split months of the labeled year
// (see SplitMonth.SummerMonths).
type SummerRow struct {
	Summer int
	Months [MonthsPerSummer]float64
}

// AlignmentError reports that two datasets failed to pair by summer or
// month-day key. Misaligned inputs corrupt every statistic computed
// downstream without visible symptoms, so this error must never be
// discarded.
type AlignmentError struct {
	Detail string
}

func (e *AlignmentError) Error() string {
	return "series misaligned: " + e.Detail
}

// AlignToSummers re-slices a year-indexed monthly table into summer-indexed
// rows. The first summer, which would need months from before the table
// starts, is dropped. The final summer, whose pre-split months lie beyond
// the table's last year, is emitted with those months as NaN.
//
// Input years must be contiguous; a gap would silently shift every later
// summer and is rejected.
func AlignToSummers(rows []YearRow, split SplitMonth) ([]SummerRow, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	sorted := make([]YearRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	byYear := make(map[int]YearRow, len(sorted))
	for i, r := range sorted {
		if i > 0 && r.Year != sorted[i-1].Year+1 {
			return nil, &AlignmentError{
				Detail: fmt.Sprintf("year gap between %d and %d", sorted[i-1].Year, r.Year),
			}
		}
		byYear[r.Year] = r
	}

	minYear := sorted[0].Year
	maxYear := sorted[len(sorted)-1].Year
	order := split.SummerMonths()

	var out []SummerRow
	for summer := minYear + 1; summer <= maxYear+1; summer++ {
		row := SummerRow{Summer: summer}
		prior := byYear[summer-1]
		current, haveCurrent := byYear[summer]
		for i, m := range order {
			switch {
			case m > int(split):
				row.Months[i] = prior.Months[m-1]
			case haveCurrent:
				row.Months[i] = current.Months[m-1]
			default:
				row.Months[i] = math.NaN()
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// FlattenSummers is the inverse of AlignToSummers: it redistributes
// summer-indexed rows back onto calendar years. Months not covered by any
// summer row (the pre-split months of the first recoverable year) are NaN.
func FlattenSummers(rows []SummerRow, split SplitMonth) []YearRow {
	if len(rows) == 0 {
		return nil
	}

	sorted := make([]SummerRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Summer < sorted[j].Summer })

	minYear := sorted[0].Summer - 1
	maxYear := sorted[len(sorted)-1].Summer
	byYear := make(map[int]*YearRow, maxYear-minYear+1)
	for y := minYear; y <= maxYear; y++ {
		row := &YearRow{Year: y}
		for i := range row.Months {
			row.Months[i] = math.NaN()
		}
		byYear[y] = row
	}

	order := split.SummerMonths()
	for _, sr := range sorted {
		for i, m := range order {
			if m > int(split) {
				byYear[sr.Summer-1].Months[m-1] = sr.Months[i]
			} else {
				byYear[sr.Summer].Months[m-1] = sr.Months[i]
			}
		}
	}

	out := make([]YearRow, 0, len(byYear))
	for y := minYear; y <= maxYear; y++ {
		out = append(out, *byYear[y])
	}
	return out
}
