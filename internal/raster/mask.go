package raster

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/sparse"

	"github.com/cryoclim/shelfmelt/pkg/series"
)

// nameField is the attribute column naming each shelf in the outline
// shapefile.
const nameField = "NAME"

type shelfShape struct {
	geom.Polygonal
	name string
}

// MaskSet holds per-shelf fractional-coverage masks on one grid. A mask cell
// holds the fraction of the cell's area covered by the shelf outline; cells
// below the coverage threshold are zeroed so partially-touched cells at the
// calving front do not dilute the shelf mean.
type MaskSet struct {
	Fractions map[string]*sparse.DenseArray
}

// BuildMasks intersects every shelf outline with the grid's cells. Shelves
// absent from the shapefile get an empty mask rather than an error; the
// extraction stage reports them as having no coverage.
func BuildMasks(shapefile string, g *Grid, shelves []string, coverage float64) (*MaskSet, error) {
	dec, err := shp.NewDecoder(shapefile)
	if err != nil {
		return nil, fmt.Errorf("opening shelf shapefile %s: %w", shapefile, err)
	}
	defer dec.Close()

	wanted := make(map[string]bool, len(shelves))
	for _, s := range shelves {
		wanted[s] = true
	}

	tree := rtree.NewTree(25, 50)
	for {
		gm, fields, more := dec.DecodeRowFields(nameField)
		if !more {
			break
		}
		name, ok := fields[nameField]
		if !ok {
			return nil, fmt.Errorf("shelf shapefile %s: missing attribute column %s", shapefile, nameField)
		}
		if !wanted[name] {
			continue
		}
		poly, ok := gm.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("shelf shapefile %s: %s is not a polygon", shapefile, name)
		}
		tree.Insert(&shelfShape{Polygonal: poly, name: name})
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("reading shelf shapefile %s: %w", shapefile, err)
	}

	ms := &MaskSet{Fractions: make(map[string]*sparse.DenseArray, len(shelves))}
	for _, s := range shelves {
		ms.Fractions[s] = sparse.ZerosDense(len(g.Y), len(g.X))
	}

	ny, nx := len(g.Y), len(g.X)
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			cell := cellPolygon(g, iy, ix)
			cellArea := cell.Area()
			if cellArea == 0 {
				continue
			}
			for _, item := range tree.SearchIntersect(cell.Bounds()) {
				s := item.(*shelfShape)
				isect := cell.Intersection(s.Polygonal)
				if isect == nil {
					continue
				}
				frac := isect.Area() / cellArea
				if frac < coverage {
					continue
				}
				if frac > 1 {
					frac = 1
				}
				ms.Fractions[s.name].Set(frac, iy, ix)
			}
		}
	}
	return ms, nil
}

// Centroid returns the mask-weighted center of a shelf's covered cells in
// axis coordinates. ok is false when the shelf has no coverage.
func (ms *MaskSet) Centroid(g *Grid, shelf string) (x, y float64, ok bool) {
	m, found := ms.Fractions[shelf]
	if !found {
		return 0, 0, false
	}
	var sx, sy, w float64
	for iy := range g.Y {
		for ix := range g.X {
			f := m.Get(iy, ix)
			if f == 0 {
				continue
			}
			sx += f * g.X[ix]
			sy += f * g.Y[iy]
			w += f
		}
	}
	if w == 0 {
		return 0, 0, false
	}
	return sx / w, sy / w, true
}

// CoveredCells reports how many cells contribute to a shelf's mask.
func (ms *MaskSet) CoveredCells(shelf string) int {
	m, ok := ms.Fractions[shelf]
	if !ok {
		return 0
	}
	n := 0
	for _, f := range m.Elements {
		if f > 0 {
			n++
		}
	}
	return n
}

// cellPolygon builds the rectangle for cell (iy, ix) from the axis centers,
// assuming locally uniform spacing.
func cellPolygon(g *Grid, iy, ix int) geom.Polygon {
	x0, x1 := cellEdges(g.X, ix)
	y0, y1 := cellEdges(g.Y, iy)
	return geom.Polygon{{
		{X: x0, Y: y0},
		{X: x1, Y: y0},
		{X: x1, Y: y1},
		{X: x0, Y: y1},
	}}
}

func cellEdges(axis []float64, i int) (lo, hi float64) {
	var step float64
	switch {
	case len(axis) == 1:
		step = 1
	case i == len(axis)-1:
		step = axis[i] - axis[i-1]
	default:
		step = axis[i+1] - axis[i]
	}
	return axis[i] - step/2, axis[i] + step/2
}

// ExtractSeries reduces a grid to one shelf's area-weighted daily series.
// Missing cells drop out of the weighting per timestep; a timestep with no
// defined covered cell is NoData.
func ExtractSeries(g *Grid, ms *MaskSet, shelf string) (series.Series, error) {
	mask, ok := ms.Fractions[shelf]
	if !ok {
		return series.Series{}, fmt.Errorf("no mask built for shelf %q", shelf)
	}

	s := series.New(g.Unit, len(g.Times))
	ny, nx := len(g.Y), len(g.X)
	for t := range g.Times {
		var sum, weight float64
		for iy := 0; iy < ny; iy++ {
			for ix := 0; ix < nx; ix++ {
				f := mask.Get(iy, ix)
				if f == 0 {
					continue
				}
				v := g.Data.Get(t, iy, ix)
				if series.IsNoData(v) {
					continue
				}
				sum += f * v
				weight += f
			}
		}
		if weight == 0 {
			s.Append(g.Times[t], series.NoData)
		} else {
			s.Append(g.Times[t], sum/weight)
		}
	}
	return s, nil
}
