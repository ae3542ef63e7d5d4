package pipeline

import (
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/cryoclim/shelfmelt/internal/artifact"
	"github.com/cryoclim/shelfmelt/internal/catalog"
	"github.com/cryoclim/shelfmelt/internal/index"
	"github.com/cryoclim/shelfmelt/pkg/calendar"
	"github.com/cryoclim/shelfmelt/pkg/config"
	"github.com/cryoclim/shelfmelt/pkg/correlate"
	"github.com/cryoclim/shelfmelt/pkg/regions"
	"github.com/cryoclim/shelfmelt/pkg/regress"
	"github.com/cryoclim/shelfmelt/pkg/series"
)

// Artifact kinds written by the analysis stage.
const (
	KindClimatology           = "climatology"
	KindRegionalMean          = "regional_mean"
	KindSAMCorrelation        = "sam_correlation"
	KindSAMDailyCorrelation   = "sam_daily_correlation"
	KindSAMRunningCorrelation = "sam_running_correlation"
	KindENSORegression        = "enso_regression"
	KindTrend                 = "trend"
)

// Analyzer turns derived per-shelf series into climatology, correlation,
// regression, and regional artifacts.
type Analyzer struct {
	cfg *config.Config
	cat *catalog.Catalog
	log *zap.SugaredLogger

	mu sync.Mutex
}

// NewAnalyzer wires the analysis stage.
func NewAnalyzer(cfg *config.Config, cat *catalog.Catalog, logger *zap.SugaredLogger) *Analyzer {
	return &Analyzer{cfg: cfg, cat: cat, log: logger}
}

// indexData holds the loaded climate indices. Either index may be absent;
// the dependent products are then skipped.
type indexData struct {
	samDaily   series.Series
	samSummers series.SummerSeries
	ensoSummer series.SummerSeries
	hasSAM     bool
	hasENSO    bool
}

// Run analyzes every configured variable. Per-shelf failures are collected;
// siblings are unaffected.
func (a *Analyzer) Run() (string, error) {
	set, err := a.cfg.RegionSet()
	if err != nil {
		return "", err
	}
	runID, err := a.cat.BeginRun("analyze")
	if err != nil {
		return "", err
	}

	idx, err := a.loadIndices()
	if err != nil {
		a.cat.EndRun(runID, "failed")
		return runID, err
	}

	var firstErr error
	for _, v := range a.cfg.Variables {
		if err := a.analyzeVariable(runID, set, v, idx); err != nil {
			a.log.Errorf("variable %s: %v", v.Name, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("variable %s: %w", v.Name, err)
			}
		}
	}

	status := "ok"
	if firstErr != nil {
		status = "failed"
	}
	if err := a.cat.EndRun(runID, status); err != nil && firstErr == nil {
		firstErr = err
	}
	return runID, firstErr
}

// loadIndices reads the configured climate indices. The SAM annual series
// prefers the monthly export; without one it is collapsed from the daily
// series.
func (a *Analyzer) loadIndices() (indexData, error) {
	var idx indexData
	split := a.cfg.Split()
	ds := a.cfg.Datasets

	if ds.SAMDailyCSV != "" {
		s, err := index.ReadDailyCSV(ds.SAMDailyCSV, "sam")
		if err != nil {
			return idx, err
		}
		idx.samDaily = s
		idx.samSummers = series.SummerMeans(s, split)
		idx.hasSAM = true
	}
	if ds.SAMMonthlyCSV != "" {
		rows, err := index.ReadMonthlyCSV(ds.SAMMonthlyCSV)
		if err != nil {
			return idx, err
		}
		aligned, err := calendar.AlignToSummers(rows, split)
		if err != nil {
			return idx, err
		}
		idx.samSummers = series.RowMeans(aligned, "sam")
		idx.hasSAM = true
	}
	if ds.ENSOMonthlyCSV != "" {
		rows, err := index.ReadMonthlyCSV(ds.ENSOMonthlyCSV)
		if err != nil {
			return idx, err
		}
		aligned, err := calendar.AlignToSummers(rows, split)
		if err != nil {
			return idx, err
		}
		idx.ensoSummer = series.RowMeans(aligned, "enso")
		idx.hasENSO = true
	}
	return idx, nil
}

func (a *Analyzer) analyzeVariable(runID string, set *regions.Set, v config.VariableData, idx indexData) error {
	perShelf, loadErrs := a.loadShelfSeries(v.Name, set.Shelves())

	batchErr := runShelves(a.cfg.Workers, shelvesOf(perShelf), func(shelf string) error {
		return a.analyzeShelf(runID, v.Name, shelf, perShelf[shelf], idx)
	})

	if err := a.writeRegionalMeans(runID, set, v.Name, perShelf); err != nil {
		return err
	}

	failed := append(loadErrs, batchFailures(batchErr)...)
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

// loadShelfSeries resolves and reads the latest smoothed series per shelf.
// Shelves whose derivation artifact is missing become task failures; the
// rest of the batch proceeds.
func (a *Analyzer) loadShelfSeries(variable string, shelves []string) (map[string]series.Series, []TaskError) {
	perShelf := make(map[string]series.Series, len(shelves))
	var failed []TaskError
	for _, shelf := range shelves {
		path, err := a.cat.LatestArtifact(KindRunningMean, variable, shelf)
		if err != nil {
			failed = append(failed, TaskError{Shelf: shelf, Err: err})
			continue
		}
		art, err := artifact.Read(path)
		if err != nil {
			failed = append(failed, TaskError{Shelf: shelf, Err: err})
			continue
		}
		s, err := artifact.TableSeries(art.Table, art.Meta.Unit)
		if err != nil {
			failed = append(failed, TaskError{Shelf: shelf, Err: err})
			continue
		}
		perShelf[shelf] = s
	}
	return perShelf, failed
}

func (a *Analyzer) analyzeShelf(runID, variable, shelf string, s series.Series, idx indexData) error {
	split := a.cfg.Split()

	clim, err := series.Climatology(s, series.ClimOptions{
		Split:   split,
		IDRLow:  a.cfg.IDRLow,
		IDRHigh: a.cfg.IDRHigh,
		Round:   true,
	})
	if err != nil {
		return err
	}
	if err := a.write(runID, KindClimatology, variable, shelf, s.Unit, climTable(clim)); err != nil {
		return err
	}

	sm := series.SummerMeans(s, split)

	if err := a.writeTrend(runID, variable, shelf, sm); err != nil {
		return err
	}
	if idx.hasSAM {
		if err := a.analyzeSAM(runID, variable, shelf, s, sm, idx); err != nil {
			return err
		}
	}
	if idx.hasENSO {
		if err := a.analyzeENSO(runID, variable, shelf, sm, idx.ensoSummer); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) analyzeSAM(runID, variable, shelf string, s series.Series, sm series.SummerSeries, idx indexData) error {
	split := a.cfg.Split()
	opts := correlate.Options{Split: split, Detrend: true}

	if idx.samDaily.Len() > 0 {
		x, y := commonDates(s, idx.samDaily)
		res, err := correlate.Correlate(x, y, opts)
		if err != nil {
			return err
		}
		tbl := corrTable([]string{"all"}, []correlate.Result{res})
		if err := a.write(runID, KindSAMCorrelation, variable, shelf, s.Unit, tbl); err != nil {
			return err
		}

		perDay, err := correlate.PerCalendarDay(map[string]series.Series{shelf: x}, y, opts)
		if err != nil {
			return err
		}
		if err := a.write(runID, KindSAMDailyCorrelation, variable, shelf, s.Unit,
			perDayTable(split, perDay[shelf])); err != nil {
			return err
		}
	}

	av, bv := commonSummers(sm, idx.samSummers)
	if av.Len() < a.cfg.RunningCorrelationYears {
		a.log.Warnf("%s/%s: %d shared summers with SAM, need %d for running correlation",
			variable, shelf, av.Len(), a.cfg.RunningCorrelationYears)
		return nil
	}
	running, err := correlate.RunningCorrelation(av, bv, a.cfg.RunningCorrelationYears, true)
	if err != nil {
		return err
	}
	return a.write(runID, KindSAMRunningCorrelation, variable, shelf, s.Unit,
		corrTable(summerLabels(av.Summers), running))
}

func (a *Analyzer) analyzeENSO(runID, variable, shelf string, sm, enso series.SummerSeries) error {
	av, bv := commonSummers(sm, enso)
	if av.Len() == 0 {
		a.log.Warnf("%s/%s: no summers shared with ENSO", variable, shelf)
		return nil
	}
	res, err := regress.SimpleRegression(bv.Values, av.Values, true)
	if err != nil {
		return err
	}
	return a.write(runID, KindENSORegression, variable, shelf, av.Unit, regressTable(res))
}

// writeTrend regresses the summer means against the summer label itself:
// the interannual trend.
func (a *Analyzer) writeTrend(runID, variable, shelf string, sm series.SummerSeries) error {
	xs := make([]float64, sm.Len())
	for i, y := range sm.Summers {
		xs[i] = float64(y)
	}
	res, err := regress.SimpleRegression(xs, sm.Values, false)
	if err != nil {
		return err
	}
	return a.write(runID, KindTrend, variable, shelf, sm.Unit, regressTable(res))
}

func (a *Analyzer) writeRegionalMeans(runID string, set *regions.Set, variable string, perShelf map[string]series.Series) error {
	for _, region := range set.Regions() {
		rs, err := set.RegionalMeanSeries(perShelf, region.Name)
		if err != nil {
			return err
		}
		if rs.Len() == 0 {
			a.log.Warnf("%s/%s: no shelf series available for regional mean", variable, region.Name)
			continue
		}
		meta := artifact.NewMetadata(runID, KindRegionalMean, variable, region.Name)
		meta.Unit = rs.Unit
		art := &artifact.Artifact{Meta: meta, Table: artifact.SeriesTable(rs, "value")}
		path, err := artifact.Write(a.cfg.ArtifactDir, art)
		if err != nil {
			return err
		}
		a.mu.Lock()
		err = a.cat.RecordArtifact(meta, path)
		a.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) write(runID, kind, variable, shelf, unit string, tbl artifact.Table) error {
	meta := artifact.NewMetadata(runID, kind, variable, shelf)
	meta.Unit = unit
	art := &artifact.Artifact{Meta: meta, Table: tbl}
	path, err := artifact.Write(a.cfg.ArtifactDir, art)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cat.RecordArtifact(meta, path)
}

func climTable(c series.Clim) artifact.Table {
	rows := make([][]float64, len(c.MonthDays))
	for i := range c.MonthDays {
		rows[i] = []float64{c.Mean[i], c.StdDev[i], c.Median[i], c.IQR[i], c.IDR[i]}
	}
	return artifact.Table{
		Labels:  c.MonthDays,
		Columns: []string{"mean", "stdev", "median", "iqr", "idr"},
		Rows:    rows,
	}
}

func corrTable(labels []string, rs []correlate.Result) artifact.Table {
	rows := make([][]float64, len(rs))
	for i, r := range rs {
		rows[i] = []float64{r.R, r.P, float64(r.N)}
	}
	return artifact.Table{Labels: labels, Columns: []string{"r", "p", "n"}, Rows: rows}
}

func perDayTable(split calendar.SplitMonth, byDay map[string]correlate.Result) artifact.Table {
	labels := make([]string, 0, len(byDay))
	for day := range byDay {
		labels = append(labels, day)
	}
	sortMonthDays(split, labels)
	rs := make([]correlate.Result, len(labels))
	for i, day := range labels {
		rs[i] = byDay[day]
	}
	return corrTable(labels, rs)
}

func regressTable(r regress.Result) artifact.Table {
	return artifact.Table{
		Labels:  []string{"fit"},
		Columns: []string{"slope", "p", "r_squared", "n"},
		Rows:    [][]float64{{r.Slope, r.PValue, r.RSquared, float64(r.N)}},
	}
}

func summerLabels(summers []int) []string {
	out := make([]string, len(summers))
	for i, y := range summers {
		out[i] = strconv.Itoa(y)
	}
	return out
}

func shelvesOf(perShelf map[string]series.Series) []string {
	out := make([]string, 0, len(perShelf))
	for shelf := range perShelf {
		out = append(out, shelf)
	}
	return out
}

func batchFailures(err error) []TaskError {
	if err == nil {
		return nil
	}
	if be, ok := err.(*BatchError); ok {
		return be.Failed
	}
	return []TaskError{{Err: err}}
}
