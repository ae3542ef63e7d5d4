// Package raster reads gridded model output from NetCDF files and reduces it
// to per-shelf daily series using fractional-area masks built from the shelf
// outline shapefile.
package raster

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/sparse"

	"github.com/cryoclim/shelfmelt/pkg/calendar"
	"github.com/cryoclim/shelfmelt/pkg/series"
)

// Grid is one variable loaded from a NetCDF file: a [time, y, x] cube with
// its coordinate axes. Missing cells are NaN.
type Grid struct {
	Var   string
	Unit  string
	Times []calendar.Date
	Y, X  []float64
	Data  *sparse.DenseArray
}

// candidate coordinate variable names, in preference order.
var (
	xNames = []string{"x", "rlon", "lon", "longitude"}
	yNames = []string{"y", "rlat", "lat", "latitude"}
)

// OpenGrid reads one variable and its axes from a NetCDF file. Fill values
// become NaN and scale_factor/add_offset packing is undone, so callers only
// ever see physical values.
func OpenGrid(path, varName string) (*Grid, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer nc.Close()

	times, err := readTimes(nc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	x, err := readAxis(nc, xNames)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	y, err := readAxis(nc, yNames)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	vr, err := nc.GetVariable(varName)
	if err != nil {
		return nil, fmt.Errorf("%s: variable %s: %w", path, varName, err)
	}
	vals, err := flatten(vr.Values)
	if err != nil {
		return nil, fmt.Errorf("%s: variable %s: %w", path, varName, err)
	}
	want := len(times) * len(y) * len(x)
	if len(vals) != want {
		return nil, fmt.Errorf("%s: variable %s has %d values, want %d (time=%d y=%d x=%d)",
			path, varName, len(vals), want, len(times), len(y), len(x))
	}

	unpack(vals, vr)

	data := sparse.ZerosDense(len(times), len(y), len(x))
	copy(data.Elements, vals)
	return &Grid{
		Var:   varName,
		Unit:  attrString(vr, "units"),
		Times: times,
		Y:     y,
		X:     x,
		Data:  data,
	}, nil
}

// At returns the value at one cell and timestep.
func (g *Grid) At(t, iy, ix int) float64 {
	return g.Data.Get(t, iy, ix)
}

// ApplyOverTime replaces every cell's time trace with fn(trace). fn must
// return a slice of the same length. Used for unit conversion and per-cell
// smoothing before regression against an index.
func (g *Grid) ApplyOverTime(fn func([]float64) []float64) {
	nt, ny, nx := len(g.Times), len(g.Y), len(g.X)
	trace := make([]float64, nt)
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			for t := 0; t < nt; t++ {
				trace[t] = g.Data.Get(t, iy, ix)
			}
			out := fn(trace)
			for t := 0; t < nt; t++ {
				g.Data.Set(out[t], t, iy, ix)
			}
		}
	}
}

// Scale multiplies every value in place, skipping missing cells.
func (g *Grid) Scale(fn func(float64) float64) {
	for i, v := range g.Data.Elements {
		if !series.IsNoData(v) {
			g.Data.Elements[i] = fn(v)
		}
	}
}

func readTimes(nc api.Group) ([]calendar.Date, error) {
	vr, err := nc.GetVariable("time")
	if err != nil {
		return nil, fmt.Errorf("variable time: %w", err)
	}
	offsets, err := flatten(vr.Values)
	if err != nil {
		return nil, fmt.Errorf("variable time: %w", err)
	}
	epoch, err := parseTimeUnits(attrString(vr, "units"))
	if err != nil {
		return nil, err
	}
	return offsetDates(epoch, offsets), nil
}

// offsetDates resolves fractional day offsets against the epoch at one-second
// resolution. Daily-mean files often stamp day n at offset n+0.5, and stored
// offsets can land a float ulp shy of a day boundary; truncating to whole
// days mislabels both.
func offsetDates(epoch time.Time, offsets []float64) []calendar.Date {
	dates := make([]calendar.Date, len(offsets))
	for i, off := range offsets {
		sec := time.Duration(math.Round(off*86400)) * time.Second
		dates[i] = calendar.DateOf(epoch.Add(sec))
	}
	return dates
}

// parseTimeUnits handles the CF "days since YYYY-MM-DD[ hh:mm:ss]" form.
func parseTimeUnits(units string) (time.Time, error) {
	fields := strings.Fields(units)
	if len(fields) < 3 || fields[0] != "days" || fields[1] != "since" {
		return time.Time{}, fmt.Errorf("unsupported time units %q", units)
	}
	epoch, err := time.Parse("2006-1-2", fields[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("unsupported time units %q: %w", units, err)
	}
	if len(fields) >= 4 {
		if withTime, err := time.Parse("2006-1-2 15:04:05", fields[2]+" "+fields[3]); err == nil {
			epoch = withTime
		}
	}
	return epoch, nil
}

func readAxis(nc api.Group, names []string) ([]float64, error) {
	for _, name := range names {
		vr, err := nc.GetVariable(name)
		if err != nil {
			continue
		}
		return flatten(vr.Values)
	}
	return nil, fmt.Errorf("no coordinate variable found (tried %s)", strings.Join(names, ", "))
}

// unpack applies CF packing attributes in place: fill values become NaN,
// then scale_factor and add_offset are applied.
func unpack(vals []float64, vr *api.Variable) {
	if fill, ok := attrFloat(vr, "_FillValue"); ok {
		for i, v := range vals {
			if v == fill {
				vals[i] = math.NaN()
			}
		}
	}
	if missing, ok := attrFloat(vr, "missing_value"); ok {
		for i, v := range vals {
			if v == missing {
				vals[i] = math.NaN()
			}
		}
	}
	scale, hasScale := attrFloat(vr, "scale_factor")
	offset, hasOffset := attrFloat(vr, "add_offset")
	if !hasScale && !hasOffset {
		return
	}
	if !hasScale {
		scale = 1
	}
	for i, v := range vals {
		if !math.IsNaN(v) {
			vals[i] = v*scale + offset
		}
	}
}

func attrString(vr *api.Variable, name string) string {
	if vr.Attributes == nil {
		return ""
	}
	v, has := vr.Attributes.Get(name)
	if !has {
		return ""
	}
	s, _ := v.(string)
	return s
}

func attrFloat(vr *api.Variable, name string) (float64, bool) {
	if vr.Attributes == nil {
		return 0, false
	}
	v, has := vr.Attributes.Get(name)
	if !has {
		return 0, false
	}
	out, err := toFloat(v)
	if err != nil {
		return 0, false
	}
	return out, true
}

// flatten converts the possibly nested slices returned by the NetCDF reader
// into a flat []float64 in row-major order.
func flatten(values interface{}) ([]float64, error) {
	var out []float64
	if err := appendFlat(&out, reflect.ValueOf(values)); err != nil {
		return nil, err
	}
	return out, nil
}

func appendFlat(out *[]float64, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := appendFlat(out, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Float32, reflect.Float64:
		*out = append(*out, v.Float())
		return nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		*out = append(*out, float64(v.Int()))
		return nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		*out = append(*out, float64(v.Uint()))
		return nil
	case reflect.Interface:
		return appendFlat(out, v.Elem())
	default:
		return fmt.Errorf("unsupported NetCDF value kind %s", v.Kind())
	}
}

func toFloat(v interface{}) (float64, error) {
	vals, err := flatten(v)
	if err != nil {
		return 0, err
	}
	if len(vals) != 1 {
		return 0, fmt.Errorf("expected scalar, got %d values", len(vals))
	}
	return vals[0], nil
}
