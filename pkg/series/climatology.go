package series

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/cryoclim/shelfmelt/pkg/calendar"
)

// ClimOptions configures a per-calendar-day climatology. IDRLow and IDRHigh
// are the inter-decile quantile bounds; zero values select the 10th and 90th
// percentiles. When Round is set, outputs are rounded to the precision
// implied by the sample's standard deviation (see DecimalsFor).
type ClimOptions struct {
	Split   calendar.SplitMonth
	IDRLow  float64
	IDRHigh float64
	Round   bool
}

// Clim is a per-calendar-day climatology for one unit, aggregated across all
// available summers. MonthDays is in chronological summer order and the
// statistic slices are parallel to it.
//
// Spread statistics (StdDev, Median, IQR, IDR) use the sample convention
// (n-1) and need at least two defined summers per day; otherwise they are
// NoData. Mean is defined from one. Feb-29 occurs in at most one summer in
// four and is excluded from the spread statistics.
type Clim struct {
	Unit      string
	MonthDays []string
	Mean      []float64
	StdDev    []float64
	Median    []float64
	IQR       []float64
	IDR       []float64
}

// Climatology groups the series' values by month-day key across summers and
// computes the climatological statistics for every key present.
func Climatology(s Series, o ClimOptions) (Clim, error) {
	low, high := o.IDRLow, o.IDRHigh
	if low == 0 && high == 0 {
		low, high = 0.1, 0.9
	}
	if low <= 0 || high >= 1 || low >= high {
		return Clim{}, fmt.Errorf("inter-decile bounds (%g, %g) outside (0,1) or inverted", low, high)
	}

	grouped := make(map[string][]float64)
	leap := make(map[string]bool)
	for i, d := range s.Dates {
		key := d.MonthDay()
		if IsNoData(s.Values[i]) {
			continue
		}
		grouped[key] = append(grouped[key], s.Values[i])
		if d.IsLeapDay() {
			leap[key] = true
		}
	}

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return o.Split.CompareMonthDays(keys[i], keys[j]) < 0
	})

	decimals := -1
	if o.Round {
		var all []float64
		for _, vs := range grouped {
			all = append(all, vs...)
		}
		decimals = DecimalsFor(stat.StdDev(all, nil))
	}

	c := Clim{
		Unit:      s.Unit,
		MonthDays: keys,
		Mean:      make([]float64, len(keys)),
		StdDev:    make([]float64, len(keys)),
		Median:    make([]float64, len(keys)),
		IQR:       make([]float64, len(keys)),
		IDR:       make([]float64, len(keys)),
	}
	for i, k := range keys {
		vs := grouped[k]
		c.Mean[i] = stat.Mean(vs, nil)
		if len(vs) < 2 || leap[k] {
			c.StdDev[i] = NoData
			c.Median[i] = NoData
			c.IQR[i] = NoData
			c.IDR[i] = NoData
		} else {
			sorted := make([]float64, len(vs))
			copy(sorted, vs)
			sort.Float64s(sorted)
			c.StdDev[i] = stat.StdDev(vs, nil)
			c.Median[i] = stat.Quantile(0.5, stat.Empirical, sorted, nil)
			c.IQR[i] = stat.Quantile(0.75, stat.Empirical, sorted, nil) - stat.Quantile(0.25, stat.Empirical, sorted, nil)
			c.IDR[i] = stat.Quantile(high, stat.Empirical, sorted, nil) - stat.Quantile(low, stat.Empirical, sorted, nil)
		}
		if decimals >= 0 {
			c.Mean[i] = RoundTo(c.Mean[i], decimals)
			c.StdDev[i] = RoundTo(c.StdDev[i], decimals)
			c.Median[i] = RoundTo(c.Median[i], decimals)
			c.IQR[i] = RoundTo(c.IQR[i], decimals)
			c.IDR[i] = RoundTo(c.IDR[i], decimals)
		}
	}
	return c, nil
}
