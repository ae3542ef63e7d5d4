// Package calendar implements austral-summer calendar arithmetic: labeling
// dates with the melt season they belong to, year-independent month-day keys,
// and re-slicing year-indexed monthly tables into summer-indexed rows.
package calendar

import (
	"fmt"
	"time"
)

// DefaultSplitMonth is the month after which a date belongs to the following
// austral summer. With the default of 3, Jan-Mar of year Y and Apr-Dec of
// year Y-1 are both labeled summer Y.
const DefaultSplitMonth = 3

// Date is a plain calendar date. Month is 1-12, Day is 1-31.
type Date struct {
	Year  int
	Month int
	Day   int
}

// DateOf converts a time.Time to a Date, discarding the time of day.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// Time returns the date at midnight UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n calendar days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// MonthDay returns the year-independent key for this date, e.g. "Dec-15".
// "Feb-29" is a distinct key; consumers that need a stable sample size
// across summers drop it.
func (d Date) MonthDay() string {
	return fmt.Sprintf("%s-%02d", time.Month(d.Month).String()[:3], d.Day)
}

// IsLeapDay reports whether the date is February 29th.
func (d Date) IsLeapDay() bool {
	return d.Month == 2 && d.Day == 29
}

// SplitMonth selects which month ends an austral summer. It is validated at
// construction so downstream labeling can never fail.
type SplitMonth int

// NewSplitMonth validates m and returns it as a SplitMonth.
func NewSplitMonth(m int) (SplitMonth, error) {
	if m < 1 || m > 12 {
		return 0, fmt.Errorf("split month %d outside [1,12]", m)
	}
	return SplitMonth(m), nil
}

// SummerOf returns the austral-summer label for d: dates after the split
// month belong to the summer that peaks in the following calendar year.
func (s SplitMonth) SummerOf(d Date) int {
	if d.Month > int(s) {
		return d.Year + 1
	}
	return d.Year
}

// MonthsPerSummer is always 12: a summer row carries the post-split months of
// the preceding calendar year followed by the pre-split months of its own.
const MonthsPerSummer = 12

// SummerMonths returns the calendar months of one summer in chronological
// order: split+1..12 of the prior year, then 1..split.
func (s SplitMonth) SummerMonths() []int {
	months := make([]int, 0, MonthsPerSummer)
	for m := int(s) + 1; m <= 12; m++ {
		months = append(months, m)
	}
	for m := 1; m <= int(s); m++ {
		months = append(months, m)
	}
	return months
}

// CompareMonthDays orders two month-day keys by their position within a
// summer. Keys from months after the split sort before keys from months at
// or before it. Returns a negative value, zero, or a positive value.
func (s SplitMonth) CompareMonthDays(a, b string) int {
	am, ad, aerr := ParseMonthDay(a)
	bm, bd, berr := ParseMonthDay(b)
	if aerr != nil || berr != nil {
		// Unparseable keys sort last, stably.
		switch {
		case aerr == nil:
			return -1
		case berr == nil:
			return 1
		default:
			return 0
		}
	}
	ai := s.monthIndex(am)
	bi := s.monthIndex(bm)
	if ai != bi {
		return ai - bi
	}
	return ad - bd
}

func (s SplitMonth) monthIndex(m int) int {
	if m > int(s) {
		return m - int(s) - 1
	}
	return m + 12 - int(s) - 1
}

// ParseMonthDay parses a key produced by Date.MonthDay back into a month and
// day number.
func ParseMonthDay(key string) (month, day int, err error) {
	if len(key) != 6 || key[3] != '-' {
		return 0, 0, fmt.Errorf("malformed month-day key %q", key)
	}
	for m := time.January; m <= time.December; m++ {
		if m.String()[:3] == key[:3] {
			month = int(m)
			break
		}
	}
	if month == 0 {
		return 0, 0, fmt.Errorf("unknown month in key %q", key)
	}
	if _, err := fmt.Sscanf(key[4:], "%d", &day); err != nil || day < 1 || day > 31 {
		return 0, 0, fmt.Errorf("bad day in key %q", key)
	}
	return month, day, nil
}
