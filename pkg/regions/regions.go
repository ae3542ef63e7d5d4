// Package regions defines the fixed ice-shelf and region reference lists and
// the shelf-to-region aggregation. The lists are static configuration loaded
// once at startup; nothing here mutates after validation.
package regions

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/cryoclim/shelfmelt/pkg/series"
)

// DefaultShelves is the fixed list of 27 named ice shelves tracked by the
// boundary dataset.
var DefaultShelves = []string{
	"Larsen C", "Ronne", "Filchner", "Brunt", "Riiser-Larsen",
	"Fimbul", "Jelbart", "Ekstrom", "Lazarev", "Baudouin", "Prince Harald",
	"Amery", "West",
	"Shackleton", "Totten", "Moscow University", "Holmes", "Dibble", "Mertz",
	"Cook", "Rennick", "Mariner", "Nansen", "Drygalski",
	"Ross East", "Ross West", "Sulzberger",
}

// Region is a named, fixed grouping of shelves.
type Region struct {
	Name    string
	Shelves []string
}

// DefaultRegions groups the default shelves into the six analysis regions.
var DefaultRegions = []Region{
	{Name: "Weddell", Shelves: []string{"Larsen C", "Ronne", "Filchner", "Brunt", "Riiser-Larsen"}},
	{Name: "DML", Shelves: []string{"Fimbul", "Jelbart", "Ekstrom", "Lazarev", "Baudouin", "Prince Harald"}},
	{Name: "Amery", Shelves: []string{"Amery", "West"}},
	{Name: "Wilkes", Shelves: []string{"Shackleton", "Totten", "Moscow University", "Holmes", "Dibble", "Mertz"}},
	{Name: "Oates", Shelves: []string{"Cook", "Rennick", "Mariner", "Nansen", "Drygalski"}},
	{Name: "Ross", Shelves: []string{"Ross East", "Ross West", "Sulzberger"}},
}

// Set is a validated shelf list with its region groupings, immutable after
// construction.
type Set struct {
	shelves []string
	regions []Region
	byName  map[string]Region
}

// New validates that every region references only known shelves and returns
// the set. Unknown names are a configuration mistake caught here, at
// startup, never at aggregation time.
func New(shelves []string, regs []Region) (*Set, error) {
	known := make(map[string]bool, len(shelves))
	for _, s := range shelves {
		if known[s] {
			return nil, fmt.Errorf("duplicate shelf name %q", s)
		}
		known[s] = true
	}

	byName := make(map[string]Region, len(regs))
	for _, r := range regs {
		if _, dup := byName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate region name %q", r.Name)
		}
		for _, s := range r.Shelves {
			if !known[s] {
				return nil, fmt.Errorf("region %q references unknown shelf %q", r.Name, s)
			}
		}
		byName[r.Name] = r
	}

	return &Set{shelves: shelves, regions: regs, byName: byName}, nil
}

// Default returns the built-in 27-shelf, 6-region set.
func Default() *Set {
	s, err := New(DefaultShelves, DefaultRegions)
	if err != nil {
		panic(err) // the built-in lists are consistent
	}
	return s
}

// Shelves returns the shelf names in definition order.
func (s *Set) Shelves() []string {
	out := make([]string, len(s.shelves))
	copy(out, s.shelves)
	return out
}

// Regions returns the region definitions in definition order.
func (s *Set) Regions() []Region {
	out := make([]Region, len(s.regions))
	copy(out, s.regions)
	return out
}

// RegionalMean reduces per-shelf values to the arithmetic mean over the
// named region's shelves, ignoring NoData members. Shelves absent from
// perUnit count as NoData. With no contributing shelf the result is NoData.
func (s *Set) RegionalMean(perUnit map[string]float64, region string) (float64, error) {
	r, ok := s.byName[region]
	if !ok {
		return series.NoData, fmt.Errorf("unknown region %q", region)
	}

	var vs []float64
	for _, shelf := range r.Shelves {
		v, ok := perUnit[shelf]
		if !ok || series.IsNoData(v) {
			continue
		}
		vs = append(vs, v)
	}
	if len(vs) == 0 {
		return series.NoData, nil
	}
	return stat.Mean(vs, nil), nil
}

// RegionalMeanSeries applies RegionalMean date-wise across per-shelf series
// that share an identical date index, producing one series per region.
func (s *Set) RegionalMeanSeries(perUnit map[string]series.Series, region string) (series.Series, error) {
	r, ok := s.byName[region]
	if !ok {
		return series.Series{}, fmt.Errorf("unknown region %q", region)
	}

	var ref series.Series
	for _, shelf := range r.Shelves {
		if sh, ok := perUnit[shelf]; ok {
			ref = sh
			break
		}
	}
	if ref.Len() == 0 {
		return series.Series{}, fmt.Errorf("region %q has no shelf series", region)
	}

	out := series.New(region, ref.Len())
	for i, d := range ref.Dates {
		vals := make(map[string]float64, len(r.Shelves))
		for _, shelf := range r.Shelves {
			sh, ok := perUnit[shelf]
			if !ok {
				continue
			}
			if sh.Len() != ref.Len() || sh.Dates[i] != d {
				return series.Series{}, fmt.Errorf("shelf %q series does not share the region date index", shelf)
			}
			vals[shelf] = sh.Values[i]
		}
		m, err := s.RegionalMean(vals, region)
		if err != nil {
			return series.Series{}, err
		}
		out.Append(d, m)
	}
	return out, nil
}
