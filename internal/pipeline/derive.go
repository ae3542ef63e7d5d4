package pipeline

import (
	"fmt"
	"math"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/cryoclim/shelfmelt/internal/artifact"
	"github.com/cryoclim/shelfmelt/internal/catalog"
	"github.com/cryoclim/shelfmelt/internal/raster"
	"github.com/cryoclim/shelfmelt/pkg/config"
	"github.com/cryoclim/shelfmelt/pkg/regions"
	"github.com/cryoclim/shelfmelt/pkg/series"
	"github.com/cryoclim/shelfmelt/pkg/solar"
)

// Artifact kinds written by the derivation stage.
const (
	KindDailySeries   = "daily_series"
	KindRunningMean   = "running_mean"
	KindDaylightHours = "daylight_hours"
	KindTOAInsolation = "toa_insolation"
)

// Deriver turns gridded model output into per-shelf daily series artifacts.
type Deriver struct {
	cfg *config.Config
	cat *catalog.Catalog
	log *zap.SugaredLogger

	mu sync.Mutex // serializes catalog writes from pool workers
}

// NewDeriver wires the derivation stage.
func NewDeriver(cfg *config.Config, cat *catalog.Catalog, logger *zap.SugaredLogger) *Deriver {
	return &Deriver{cfg: cfg, cat: cat, log: logger}
}

// Run derives every configured variable for every configured shelf. Failures
// are collected per shelf and variable; a failed task never stops its
// siblings.
func (d *Deriver) Run() (string, error) {
	set, err := d.cfg.RegionSet()
	if err != nil {
		return "", err
	}
	runID, err := d.cat.BeginRun("derive")
	if err != nil {
		return "", err
	}
	d.log.Infof("derive run %s: %d variables, %d shelves",
		runID, len(d.cfg.Variables), len(set.Shelves()))

	var firstErr error
	solarDone := false
	for _, v := range d.cfg.Variables {
		if err := d.deriveVariable(runID, set, v, &solarDone); err != nil {
			d.log.Errorf("variable %s: %v", v.Name, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("variable %s: %w", v.Name, err)
			}
		}
	}

	if d.cfg.Datasets.AMSRDir != "" {
		if err := d.deriveAMSR(runID, set); err != nil {
			d.log.Errorf("variable %s: %v", amsrVariable, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("variable %s: %w", amsrVariable, err)
			}
		}
	}

	status := "ok"
	if firstErr != nil {
		status = "failed"
	}
	if err := d.cat.EndRun(runID, status); err != nil && firstErr == nil {
		firstErr = err
	}
	return runID, firstErr
}

func (d *Deriver) deriveVariable(runID string, set *regions.Set, v config.VariableData, solarDone *bool) error {
	path := filepath.Join(d.cfg.Datasets.RACMODir, v.NetCDFVar+".nc")
	grid, err := raster.OpenGrid(path, v.NetCDFVar)
	if err != nil {
		return err
	}
	q, err := d.cfg.QuantityOf(v.Name)
	if err != nil {
		return err
	}
	grid.Scale(q.Convert)
	grid.Unit = q.Unit()
	d.log.Infof("loaded %s: %d timesteps, %dx%d cells", path, len(grid.Times), len(grid.Y), len(grid.X))

	masks, err := raster.BuildMasks(d.cfg.Datasets.ShelfShapefile, grid, set.Shelves(), d.cfg.CoverageThreshold)
	if err != nil {
		return err
	}

	window := series.Window{Length: d.cfg.WindowDays, Split: d.cfg.Split()}
	batchErr := runShelves(d.cfg.Workers, set.Shelves(), func(shelf string) error {
		s, err := raster.ExtractSeries(grid, masks, shelf)
		if err != nil {
			return err
		}
		if s.Defined() == 0 {
			d.log.Warnf("%s/%s: no grid coverage", v.Name, shelf)
		}
		if err := d.writeSeries(runID, KindDailySeries, v.Name, shelf, s); err != nil {
			return err
		}
		smoothed, err := series.RunningMean(s, window)
		if err != nil {
			return err
		}
		return d.writeSeries(runID, KindRunningMean, v.Name, shelf, smoothed)
	})
	if batchErr != nil {
		return batchErr
	}

	// Solar context series depend only on the grid's dates and the shelf
	// location, so they are derived once, alongside the first variable.
	if !*solarDone && latitudeAxis(grid.Y) {
		*solarDone = true
		if err := d.deriveSolar(runID, set, grid, masks); err != nil {
			return err
		}
	}
	return nil
}

// The satellite melt-presence observations ship as one file with a fixed
// variable name, outside the configured variable list.
const (
	amsrVariable = "amsr_melt"
	amsrFile     = "amsr_melt.nc"
)

// deriveAMSR extracts the observational melt-presence fraction per shelf.
// The values are dimensionless fractions, so no unit conversion applies.
func (d *Deriver) deriveAMSR(runID string, set *regions.Set) error {
	grid, err := raster.OpenGrid(filepath.Join(d.cfg.Datasets.AMSRDir, amsrFile), "melt")
	if err != nil {
		return err
	}
	masks, err := raster.BuildMasks(d.cfg.Datasets.ShelfShapefile, grid, set.Shelves(), d.cfg.CoverageThreshold)
	if err != nil {
		return err
	}
	window := series.Window{Length: d.cfg.WindowDays, Split: d.cfg.Split()}
	return runShelves(d.cfg.Workers, set.Shelves(), func(shelf string) error {
		s, err := raster.ExtractSeries(grid, masks, shelf)
		if err != nil {
			return err
		}
		if err := d.writeSeries(runID, KindDailySeries, amsrVariable, shelf, s); err != nil {
			return err
		}
		smoothed, err := series.RunningMean(s, window)
		if err != nil {
			return err
		}
		return d.writeSeries(runID, KindRunningMean, amsrVariable, shelf, smoothed)
	})
}

// latitudeAxis reports whether the y axis can be read as degrees latitude.
func latitudeAxis(y []float64) bool {
	for _, v := range y {
		if math.Abs(v) > 90 {
			return false
		}
	}
	return len(y) > 0
}

func (d *Deriver) deriveSolar(runID string, set *regions.Set, grid *raster.Grid, masks *raster.MaskSet) error {
	return runShelves(d.cfg.Workers, set.Shelves(), func(shelf string) error {
		_, lat, ok := masks.Centroid(grid, shelf)
		if !ok {
			d.log.Warnf("solar/%s: no grid coverage, skipping", shelf)
			return nil
		}
		daylight := series.New("hours", len(grid.Times))
		toa := series.New("W m-2", len(grid.Times))
		for _, date := range grid.Times {
			daylight.Append(date, solar.DaylightHours(date, lat))
			toa.Append(date, solar.TOAInsolation(date, lat))
		}
		if err := d.writeSeries(runID, KindDaylightHours, "solar", shelf, daylight); err != nil {
			return err
		}
		return d.writeSeries(runID, KindTOAInsolation, "solar", shelf, toa)
	})
}

func (d *Deriver) writeSeries(runID, kind, variable, shelf string, s series.Series) error {
	meta := artifact.NewMetadata(runID, kind, variable, shelf)
	meta.Unit = s.Unit
	a := &artifact.Artifact{Meta: meta, Table: artifact.SeriesTable(s, "value")}
	path, err := artifact.Write(d.cfg.ArtifactDir, a)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cat.RecordArtifact(meta, path)
}
