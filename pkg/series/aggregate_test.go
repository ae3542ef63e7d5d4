package series

import (
	"math"
	"testing"

	"github.com/cryoclim/shelfmelt/pkg/calendar"
)

func TestSummerMeans(t *testing.T) {
	split, _ := calendar.NewSplitMonth(calendar.DefaultSplitMonth)

	s := New("mm w.e. per day", 0)
	s.Append(calendar.Date{Year: 1990, Month: 12, Day: 30}, 2)
	s.Append(calendar.Date{Year: 1990, Month: 12, Day: 31}, 4)
	s.Append(calendar.Date{Year: 1991, Month: 12, Day: 31}, NoData)
	s.Append(calendar.Date{Year: 1992, Month: 1, Day: 1}, 6)

	out := SummerMeans(s, split)
	if len(out.Summers) != 2 {
		t.Fatalf("summers = %v, want 2 entries", out.Summers)
	}
	if out.Summers[0] != 1991 || out.Summers[1] != 1992 {
		t.Errorf("summers = %v", out.Summers)
	}
	if out.Values[0] != 3 {
		t.Errorf("1991 mean = %g, want 3", out.Values[0])
	}
	// The 1992 summer has one NoData day and one defined day.
	if out.Values[1] != 6 {
		t.Errorf("1992 mean = %g, want 6", out.Values[1])
	}
	if out.Unit != s.Unit {
		t.Errorf("unit = %q", out.Unit)
	}
}

func TestSummerMeansAllMissing(t *testing.T) {
	split, _ := calendar.NewSplitMonth(calendar.DefaultSplitMonth)
	s := New("sam", 0)
	s.Append(calendar.Date{Year: 1991, Month: 1, Day: 1}, NoData)
	out := SummerMeans(s, split)
	if !math.IsNaN(out.Values[0]) {
		t.Errorf("summer of only NoData days = %g, want NoData", out.Values[0])
	}
}

func TestRowMeans(t *testing.T) {
	rows := []calendar.SummerRow{
		{Summer: 1991, Months: [12]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}},
		{Summer: 1992, Months: [12]float64{2, 4, NoData, NoData, NoData, NoData, NoData, NoData, NoData, NoData, NoData, NoData}},
	}
	out := RowMeans(rows, "enso")
	if out.Values[0] != 6.5 {
		t.Errorf("1991 mean = %g, want 6.5", out.Values[0])
	}
	if out.Values[1] != 3 {
		t.Errorf("1992 mean = %g, want 3", out.Values[1])
	}
}
