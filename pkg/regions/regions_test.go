package regions

import (
	"math"
	"testing"

	"github.com/cryoclim/shelfmelt/pkg/calendar"
	"github.com/cryoclim/shelfmelt/pkg/series"
)

func TestDefaultSetIsConsistent(t *testing.T) {
	s := Default()
	if len(s.Shelves()) != 27 {
		t.Errorf("default shelf count = %d, want 27", len(s.Shelves()))
	}
	if len(s.Regions()) != 6 {
		t.Errorf("default region count = %d, want 6", len(s.Regions()))
	}
}

func TestNewRejectsUnknownShelf(t *testing.T) {
	_, err := New([]string{"X", "Y"}, []Region{{Name: "R", Shelves: []string{"X", "Z"}}})
	if err == nil {
		t.Fatal("unknown shelf in a region definition must be rejected at load")
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	if _, err := New([]string{"X", "X"}, nil); err == nil {
		t.Error("duplicate shelf accepted")
	}
	if _, err := New([]string{"X"}, []Region{{Name: "R"}, {Name: "R"}}); err == nil {
		t.Error("duplicate region accepted")
	}
}

func TestRegionalMean(t *testing.T) {
	set, err := New([]string{"X", "Y", "Z"}, []Region{{Name: "R", Shelves: []string{"X", "Y", "Z"}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t.Run("ignores NoData members", func(t *testing.T) {
		got, err := set.RegionalMean(map[string]float64{"X": 10, "Y": 20, "Z": series.NoData}, "R")
		if err != nil {
			t.Fatalf("RegionalMean: %v", err)
		}
		if math.Abs(got-15) > 1e-12 {
			t.Errorf("mean = %v, want 15", got)
		}
	})

	t.Run("no contributors is NoData", func(t *testing.T) {
		got, err := set.RegionalMean(map[string]float64{"X": series.NoData}, "R")
		if err != nil {
			t.Fatalf("RegionalMean: %v", err)
		}
		if !series.IsNoData(got) {
			t.Errorf("mean = %v, want NoData", got)
		}
	})

	t.Run("unknown region errors", func(t *testing.T) {
		if _, err := set.RegionalMean(nil, "Nowhere"); err == nil {
			t.Error("unknown region accepted")
		}
	})
}

func TestRegionalMeanSeries(t *testing.T) {
	set, err := New([]string{"X", "Y"}, []Region{{Name: "R", Shelves: []string{"X", "Y"}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := calendar.Date{Year: 2000, Month: 1, Day: 1}
	x := series.New("X", 3)
	y := series.New("Y", 3)
	for i, v := range []float64{1, 2, 3} {
		x.Append(start.AddDays(i), v)
	}
	for i, v := range []float64{3, series.NoData, 5} {
		y.Append(start.AddDays(i), v)
	}

	got, err := set.RegionalMeanSeries(map[string]series.Series{"X": x, "Y": y}, "R")
	if err != nil {
		t.Fatalf("RegionalMeanSeries: %v", err)
	}
	want := []float64{2, 2, 4}
	for i, w := range want {
		if math.Abs(got.Values[i]-w) > 1e-12 {
			t.Errorf("day %d: got %v, want %v", i, got.Values[i], w)
		}
	}
	if got.Unit != "R" {
		t.Errorf("unit = %q, want region name", got.Unit)
	}
}
