// Package index reads large-scale climate index records (SAM, ENSO) from
// the CSV exports published alongside the reanalysis data, into the daily
// and monthly series forms used by the correlation stages.
package index

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/cryoclim/shelfmelt/pkg/calendar"
	"github.com/cryoclim/shelfmelt/pkg/series"
)

// sentinel value used by the index providers for missing observations.
const missingSentinel = -9999

// ReadDailyCSV reads a daily climate index from a CSV file with columns
// year, month, day, value. A header row is skipped if present. Missing
// observations (empty fields or the -9999 sentinel) are kept as NoData so
// the series stays contiguous for window and alignment logic.
func ReadDailyCSV(path, unit string) (series.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return series.Series{}, fmt.Errorf("opening daily index %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 4
	r.TrimLeadingSpace = true

	s := series.New(unit, 0)
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return series.Series{}, fmt.Errorf("reading daily index %s: %w", path, err)
		}
		line++
		if line == 1 && !numeric(rec[0]) {
			continue
		}
		year, err := strconv.Atoi(rec[0])
		if err != nil {
			return series.Series{}, fmt.Errorf("%s line %d: bad year %q", path, line, rec[0])
		}
		month, err := strconv.Atoi(rec[1])
		if err != nil {
			return series.Series{}, fmt.Errorf("%s line %d: bad month %q", path, line, rec[1])
		}
		day, err := strconv.Atoi(rec[2])
		if err != nil {
			return series.Series{}, fmt.Errorf("%s line %d: bad day %q", path, line, rec[2])
		}
		v, err := parseValue(rec[3])
		if err != nil {
			return series.Series{}, fmt.Errorf("%s line %d: bad value %q", path, line, rec[3])
		}
		s.Append(calendar.Date{Year: year, Month: month, Day: day}, v)
	}
	s.Sort()
	return s, nil
}

// ReadMonthlyCSV reads a monthly climate index from a CSV file with one row
// per year: year, then twelve monthly values January through December.
// Missing months are kept as NoData.
func ReadMonthlyCSV(path string) ([]calendar.YearRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening monthly index %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 13
	r.TrimLeadingSpace = true

	var rows []calendar.YearRow
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading monthly index %s: %w", path, err)
		}
		line++
		if line == 1 && !numeric(rec[0]) {
			continue
		}
		year, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad year %q", path, line, rec[0])
		}
		row := calendar.YearRow{Year: year}
		for m := 0; m < 12; m++ {
			v, err := parseValue(rec[m+1])
			if err != nil {
				return nil, fmt.Errorf("%s line %d: bad value %q", path, line, rec[m+1])
			}
			row.Months[m] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseValue(field string) (float64, error) {
	if field == "" {
		return series.NoData, nil
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, err
	}
	if v == missingSentinel || math.IsNaN(v) {
		return series.NoData, nil
	}
	return v, nil
}

func numeric(field string) bool {
	_, err := strconv.ParseFloat(field, 64)
	return err == nil
}
