package regress

import (
	"fmt"

	"github.com/ctessum/sparse"

	"github.com/cryoclim/shelfmelt/pkg/series"
)

// GridResult holds one regression statistic per spatial cell. The arrays
// share the spatial shape of the input grid with the leading time dimension
// removed.
type GridResult struct {
	Slope    *sparse.DenseArray
	PValue   *sparse.DenseArray
	RSquared *sparse.DenseArray
}

// GridRegression regresses every spatial cell of grid on x over the shared
// leading time dimension. grid must have shape [len(x), ...spatial]; each
// cell is regressed independently and cells with too few defined samples
// come back as NoData. Detrending follows SimpleRegression.
func GridRegression(x []float64, grid *sparse.DenseArray, detrend bool) (GridResult, error) {
	if len(grid.Shape) < 2 {
		return GridResult{}, fmt.Errorf("grid regression needs a time dimension plus at least one spatial dimension, got shape %v", grid.Shape)
	}
	nt := grid.Shape[0]
	if nt != len(x) {
		return GridResult{}, &LengthError{LenX: len(x), LenY: nt}
	}

	spatial := grid.Shape[1:]
	ncell := 1
	for _, d := range spatial {
		ncell *= d
	}

	out := GridResult{
		Slope:    sparse.ZerosDense(spatial...),
		PValue:   sparse.ZerosDense(spatial...),
		RSquared: sparse.ZerosDense(spatial...),
	}

	y := make([]float64, nt)
	for cell := 0; cell < ncell; cell++ {
		for t := 0; t < nt; t++ {
			y[t] = grid.Elements[t*ncell+cell]
		}
		res, err := SimpleRegression(x, y, detrend)
		if err != nil {
			return GridResult{}, err
		}
		if !res.Valid {
			out.Slope.Elements[cell] = series.NoData
			out.PValue.Elements[cell] = series.NoData
			out.RSquared.Elements[cell] = series.NoData
			continue
		}
		out.Slope.Elements[cell] = res.Slope
		out.PValue.Elements[cell] = res.PValue
		out.RSquared.Elements[cell] = res.RSquared
	}
	return out, nil
}
