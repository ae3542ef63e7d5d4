package pipeline

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryoclim/shelfmelt/pkg/calendar"
	"github.com/cryoclim/shelfmelt/pkg/series"
)

func TestRunShelvesCollectsFailures(t *testing.T) {
	var ran int32
	err := runShelves(2, []string{"Amery", "Totten", "Mertz", "Brunt"}, func(shelf string) error {
		atomic.AddInt32(&ran, 1)
		if shelf == "Totten" || shelf == "Brunt" {
			return fmt.Errorf("no coverage for %s", shelf)
		}
		return nil
	})

	assert.Equal(t, int32(4), ran, "siblings of a failed task must still run")

	var be *BatchError
	require.ErrorAs(t, err, &be)
	require.Len(t, be.Failed, 2)
	assert.Equal(t, "Brunt", be.Failed[0].Shelf)
	assert.Equal(t, "Totten", be.Failed[1].Shelf)
	assert.Contains(t, err.Error(), "2 task(s) failed")
}

func TestRunShelvesAllOK(t *testing.T) {
	err := runShelves(0, []string{"Amery", "Totten"}, func(string) error { return nil })
	assert.NoError(t, err)
}

func TestCommonDates(t *testing.T) {
	a := series.New("melt", 0)
	b := series.New("sam", 0)
	for day := 1; day <= 5; day++ {
		a.Append(calendar.Date{Year: 1991, Month: 1, Day: day}, float64(day))
	}
	for day := 3; day <= 7; day++ {
		b.Append(calendar.Date{Year: 1991, Month: 1, Day: day}, float64(10 * day))
	}

	x, y := commonDates(a, b)
	require.Equal(t, 3, x.Len())
	assert.Equal(t, x.Dates, y.Dates)
	assert.Equal(t, []float64{3, 4, 5}, x.Values)
	assert.Equal(t, []float64{30, 40, 50}, y.Values)
}

func TestCommonSummers(t *testing.T) {
	a := series.SummerSeries{Unit: "melt", Summers: []int{1991, 1992, 1993}, Values: []float64{1, 2, 3}}
	b := series.SummerSeries{Unit: "enso", Summers: []int{1992, 1993, 1994}, Values: []float64{20, 30, 40}}

	x, y := commonSummers(a, b)
	assert.Equal(t, []int{1992, 1993}, x.Summers)
	assert.Equal(t, []float64{2, 3}, x.Values)
	assert.Equal(t, []float64{20, 30}, y.Values)
}

func TestSortMonthDays(t *testing.T) {
	split, err := calendar.NewSplitMonth(calendar.DefaultSplitMonth)
	require.NoError(t, err)
	keys := []string{"Jan-02", "Dec-31", "Feb-01", "Dec-01"}
	sortMonthDays(split, keys)
	assert.Equal(t, []string{"Dec-01", "Dec-31", "Jan-02", "Feb-01"}, keys)
}

func TestBatchFailures(t *testing.T) {
	assert.Nil(t, batchFailures(nil))

	be := &BatchError{Failed: []TaskError{{Shelf: "Amery", Err: errors.New("x")}}}
	assert.Equal(t, be.Failed, batchFailures(be))

	plain := errors.New("pool exhausted")
	fs := batchFailures(plain)
	require.Len(t, fs, 1)
	assert.Equal(t, plain, fs[0].Err)
}

func TestLatitudeAxis(t *testing.T) {
	assert.True(t, latitudeAxis([]float64{-75.5, -75.0, -74.5}))
	assert.False(t, latitudeAxis([]float64{1.2e6, 1.25e6}), "projected meters are not latitudes")
	assert.False(t, latitudeAxis(nil))
}
