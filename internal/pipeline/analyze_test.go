package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cryoclim/shelfmelt/internal/artifact"
	"github.com/cryoclim/shelfmelt/internal/catalog"
	"github.com/cryoclim/shelfmelt/pkg/calendar"
	"github.com/cryoclim/shelfmelt/pkg/config"
	"github.com/cryoclim/shelfmelt/pkg/series"
)

// shelfSeries builds five summers (1991-1995) of early-January melt with a
// deliberately non-linear interannual progression so detrended statistics
// keep their variance.
func shelfSeries(offset float64) series.Series {
	s := series.New("mm w.e. per day", 0)
	for year := 1991; year <= 1995; year++ {
		a := float64(year - 1990)
		for day := 1; day <= 5; day++ {
			s.Append(calendar.Date{Year: year, Month: 1, Day: day}, 0.5*a*a+0.1*float64(day)+offset)
		}
	}
	return s
}

func writeSAMDaily(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("year,month,day,value\n")
	for year := 1991; year <= 1995; year++ {
		a := float64(year - 1990)
		for day := 1; day <= 5; day++ {
			fmt.Fprintf(&b, "%d,1,%d,%g\n", year, day, a*a-0.2*float64(day))
		}
	}
	path := filepath.Join(dir, "sam_daily.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func writeENSOMonthly(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	for year := 1990; year <= 1995; year++ {
		a := float64(year - 1989)
		fmt.Fprintf(&b, "%d", year)
		for m := 1; m <= 12; m++ {
			fmt.Fprintf(&b, ",%g", a*a+0.1*float64(m))
		}
		b.WriteString("\n")
	}
	path := filepath.Join(dir, "enso_monthly.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func analyzerFixture(t *testing.T) (*config.Config, *catalog.Catalog) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		SplitMonth:              3,
		WindowDays:              3,
		RunningCorrelationYears: 3,
		IDRLow:                  0.1,
		IDRHigh:                 0.9,
		CoverageThreshold:       0.5,
		Workers:                 2,
		ArtifactDir:             filepath.Join(dir, "artifacts"),
		Datasets: config.DatasetsData{
			SAMDailyCSV:    writeSAMDaily(t, dir),
			ENSOMonthlyCSV: writeENSOMonthly(t, dir),
		},
		Variables: []config.VariableData{
			{Name: "snowmelt", NetCDFVar: "snowmelt", Quantity: "mass-flux"},
		},
		Shelves: []string{"Amery", "Totten"},
		Regions: []config.RegionData{{Name: "East", Shelves: []string{"Amery", "Totten"}}},
	}
	require.NoError(t, cfg.Validate())

	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	deriveRun, err := cat.BeginRun("derive")
	require.NoError(t, err)
	for i, shelf := range cfg.Shelves {
		s := shelfSeries(float64(i))
		meta := artifact.NewMetadata(deriveRun, KindRunningMean, "snowmelt", shelf)
		meta.Unit = s.Unit
		path, err := artifact.Write(cfg.ArtifactDir, &artifact.Artifact{
			Meta:  meta,
			Table: artifact.SeriesTable(s, "value"),
		})
		require.NoError(t, err)
		require.NoError(t, cat.RecordArtifact(meta, path))
	}
	require.NoError(t, cat.EndRun(deriveRun, "ok"))
	return cfg, cat
}

func TestAnalyzerEndToEnd(t *testing.T) {
	cfg, cat := analyzerFixture(t)
	a := NewAnalyzer(cfg, cat, zap.NewNop().Sugar())

	runID, err := a.Run()
	require.NoError(t, err)

	paths, err := cat.RunArtifacts(runID)
	require.NoError(t, err)
	// Per shelf: climatology, trend, overall/daily/running SAM correlations,
	// ENSO regression. Plus one regional mean.
	assert.Len(t, paths, 13)

	for _, kind := range []string{
		KindClimatology, KindTrend, KindSAMCorrelation,
		KindSAMDailyCorrelation, KindSAMRunningCorrelation, KindENSORegression,
	} {
		for _, shelf := range cfg.Shelves {
			if _, err := cat.LatestArtifact(kind, "snowmelt", shelf); err != nil {
				t.Errorf("missing %s for %s: %v", kind, shelf, err)
			}
		}
	}

	regionalPath, err := cat.LatestArtifact(KindRegionalMean, "snowmelt", "East")
	require.NoError(t, err)
	regional, err := artifact.Read(regionalPath)
	require.NoError(t, err)
	assert.Equal(t, 25, len(regional.Table.Labels), "one regional value per derived day")
	// Regional mean of the two shelves at the first day: offsets 0 and 1.
	assert.InDelta(t, 0.5+0.1+0.5, regional.Table.Rows[0][0], 1e-9)
}

func TestAnalyzerClimatologyArtifact(t *testing.T) {
	cfg, cat := analyzerFixture(t)
	a := NewAnalyzer(cfg, cat, zap.NewNop().Sugar())
	_, err := a.Run()
	require.NoError(t, err)

	path, err := cat.LatestArtifact(KindClimatology, "snowmelt", "Amery")
	require.NoError(t, err)
	art, err := artifact.Read(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"mean", "stdev", "median", "iqr", "idr"}, art.Table.Columns)
	assert.Equal(t, []string{"Jan-01", "Jan-02", "Jan-03", "Jan-04", "Jan-05"}, art.Table.Labels)
	for _, row := range art.Table.Rows {
		assert.False(t, series.IsNoData(row[0]), "means over five summers must be defined")
	}
}

func TestAnalyzerMissingDerivation(t *testing.T) {
	cfg, cat := analyzerFixture(t)
	cfg.Shelves = append(cfg.Shelves, "Mertz")
	cfg.Regions[0].Shelves = append(cfg.Regions[0].Shelves, "Mertz")

	a := NewAnalyzer(cfg, cat, zap.NewNop().Sugar())
	_, err := a.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mertz")
	assert.Contains(t, err.Error(), "missing input artifact")

	// The shelves that were derived still analyzed normally.
	_, err = cat.LatestArtifact(KindClimatology, "snowmelt", "Amery")
	assert.NoError(t, err)
}
