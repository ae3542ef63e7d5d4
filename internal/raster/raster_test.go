package raster

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/sparse"

	"github.com/cryoclim/shelfmelt/pkg/calendar"
	"github.com/cryoclim/shelfmelt/pkg/series"
)

// testGrid is a 4x4 grid with unit cells centered at 0.5..3.5 and two
// timesteps. Cell value at t=0 is iy*4+ix; t=1 adds 100.
func testGrid() *Grid {
	g := &Grid{
		Var:   "snowmelt",
		Unit:  "kg m-2 s-1",
		Times: []calendar.Date{{Year: 1991, Month: 1, Day: 1}, {Year: 1991, Month: 1, Day: 2}},
		Y:     []float64{0.5, 1.5, 2.5, 3.5},
		X:     []float64{0.5, 1.5, 2.5, 3.5},
		Data:  sparse.ZerosDense(2, 4, 4),
	}
	for iy := 0; iy < 4; iy++ {
		for ix := 0; ix < 4; ix++ {
			v := float64(iy*4 + ix)
			g.Data.Set(v, 0, iy, ix)
			g.Data.Set(v+100, 1, iy, ix)
		}
	}
	return g
}

func square(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
	}}
}

func writeShelfShapefile(t *testing.T) string {
	t.Helper()
	type shelfRow struct {
		geom.Polygon
		NAME string
	}
	path := filepath.Join(t.TempDir(), "shelves.shp")
	e, err := shp.NewEncoder(path, shelfRow{})
	if err != nil {
		t.Fatal(err)
	}
	rows := []shelfRow{
		{Polygon: square(0, 0, 2, 2), NAME: "Amery"},
		{Polygon: square(2, 2, 4, 4), NAME: "Totten"},
		{Polygon: square(0, 3, 1, 3.5), NAME: "Brunt"},
		{Polygon: square(0, 0, 4, 4), NAME: "Ignored"},
	}
	for _, r := range rows {
		if err := e.Encode(r); err != nil {
			t.Fatal(err)
		}
	}
	e.Close()
	return path
}

func buildTestMasks(t *testing.T, coverage float64) (*Grid, *MaskSet) {
	t.Helper()
	g := testGrid()
	ms, err := BuildMasks(writeShelfShapefile(t), g, []string{"Amery", "Totten", "Brunt", "Mertz"}, coverage)
	if err != nil {
		t.Fatal(err)
	}
	return g, ms
}

func TestBuildMasksFractions(t *testing.T) {
	_, ms := buildTestMasks(t, 0.5)

	if n := ms.CoveredCells("Amery"); n != 4 {
		t.Errorf("Amery covered cells = %d, want 4", n)
	}
	if f := ms.Fractions["Amery"].Get(0, 0); f != 1 {
		t.Errorf("Amery fraction(0,0) = %g, want 1", f)
	}
	if f := ms.Fractions["Amery"].Get(2, 2); f != 0 {
		t.Errorf("Amery fraction(2,2) = %g, want 0", f)
	}

	// Brunt covers exactly half of cell (3, 0); at threshold it is kept.
	if f := ms.Fractions["Brunt"].Get(3, 0); math.Abs(f-0.5) > 1e-12 {
		t.Errorf("Brunt fraction(3,0) = %g, want 0.5", f)
	}

	// A shelf missing from the shapefile gets an empty mask, not an error.
	if n := ms.CoveredCells("Mertz"); n != 0 {
		t.Errorf("Mertz covered cells = %d, want 0", n)
	}
}

func TestBuildMasksCoverageThreshold(t *testing.T) {
	_, ms := buildTestMasks(t, 0.6)
	if f := ms.Fractions["Brunt"].Get(3, 0); f != 0 {
		t.Errorf("half-covered cell above threshold 0.6 should be dropped, got %g", f)
	}
}

func TestExtractSeries(t *testing.T) {
	g, ms := buildTestMasks(t, 0.5)

	s, err := ExtractSeries(g, ms, "Amery")
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	// Cells (0,0) (0,1) (1,0) (1,1): values 0, 1, 4, 5 -> mean 2.5.
	if math.Abs(s.Values[0]-2.5) > 1e-12 {
		t.Errorf("t0 mean = %g, want 2.5", s.Values[0])
	}
	if math.Abs(s.Values[1]-102.5) > 1e-12 {
		t.Errorf("t1 mean = %g, want 102.5", s.Values[1])
	}
	if s.Unit != "kg m-2 s-1" {
		t.Errorf("unit = %q", s.Unit)
	}
}

func TestExtractSeriesSkipsMissingCells(t *testing.T) {
	g, ms := buildTestMasks(t, 0.5)
	g.Data.Set(math.NaN(), 0, 0, 0)

	s, err := ExtractSeries(g, ms, "Amery")
	if err != nil {
		t.Fatal(err)
	}
	// Remaining cells 1, 4, 5 with equal weight.
	want := (1.0 + 4 + 5) / 3
	if math.Abs(s.Values[0]-want) > 1e-12 {
		t.Errorf("mean with missing cell = %g, want %g", s.Values[0], want)
	}
}

func TestExtractSeriesNoCoverage(t *testing.T) {
	g, ms := buildTestMasks(t, 0.5)
	s, err := ExtractSeries(g, ms, "Mertz")
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range s.Values {
		if !series.IsNoData(v) {
			t.Errorf("value[%d] = %g, want NoData for uncovered shelf", i, v)
		}
	}
	if _, err := ExtractSeries(g, ms, "Ross East"); err == nil {
		t.Error("expected error for shelf with no mask built")
	}
}

func TestApplyOverTime(t *testing.T) {
	g := testGrid()
	g.ApplyOverTime(func(trace []float64) []float64 {
		out := make([]float64, len(trace))
		for i, v := range trace {
			out[i] = v * 2
		}
		return out
	})
	if got := g.At(1, 2, 3); got != 2*(100+11) {
		t.Errorf("At(1,2,3) = %g, want %g", got, 2*(100.0+11))
	}
}

func TestParseTimeUnits(t *testing.T) {
	epoch, err := parseTimeUnits("days since 1950-01-01 00:00:00")
	if err != nil {
		t.Fatal(err)
	}
	if epoch.Year() != 1950 || epoch.Month() != 1 || epoch.Day() != 1 {
		t.Errorf("epoch = %v", epoch)
	}
	if _, err := parseTimeUnits("hours since 1950-01-01"); err == nil {
		t.Error("expected error for non-day units")
	}
	epoch, err = parseTimeUnits("days since 1950-01-01 12:00:00")
	if err != nil {
		t.Fatal(err)
	}
	if epoch.Hour() != 12 {
		t.Errorf("epoch hour = %d, want 12", epoch.Hour())
	}
}

func TestOffsetDatesFractional(t *testing.T) {
	epoch := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	got := offsetDates(epoch, []float64{0, 0.5, 1.5, 30.99999999999, 31})
	want := []calendar.Date{
		{Year: 1990, Month: 1, Day: 1},
		{Year: 1990, Month: 1, Day: 1},
		{Year: 1990, Month: 1, Day: 2},
		{Year: 1990, Month: 2, Day: 1},
		{Year: 1990, Month: 2, Day: 1},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("offset %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFlatten(t *testing.T) {
	got, err := flatten([][]float32{{1, 2}, {3, 4}})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("flatten = %v, want %v", got, want)
		}
	}
	if _, err := flatten([]string{"x"}); err == nil {
		t.Error("expected error for non-numeric values")
	}
}
