// Package artifact persists derived statistical products. Every product is
// written as a JSON document holding its provenance metadata and a value
// table, plus a msgpack sidecar that later stages load instead of re-parsing
// JSON. JSON is the interchange form; the sidecar is a cache and is
// regenerated whenever it is stale or absent.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/cryoclim/shelfmelt/pkg/calendar"
	"github.com/cryoclim/shelfmelt/pkg/series"
)

// MissingInputError reports a required upstream product that has not been
// derived yet. Callers treat it as "run the earlier stage first", not as a
// corrupt store.
type MissingInputError struct {
	Path string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input artifact: %s", e.Path)
}

// Metadata identifies one derived product and the run that produced it.
type Metadata struct {
	RunID     string            `json:"run_id" msgpack:"run_id"`
	Kind      string            `json:"kind" msgpack:"kind"`
	Variable  string            `json:"variable" msgpack:"variable"`
	Shelf     string            `json:"shelf,omitempty" msgpack:"shelf"`
	Unit      string            `json:"unit,omitempty" msgpack:"unit"`
	CreatedAt time.Time         `json:"created_at" msgpack:"created_at"`
	Params    map[string]string `json:"params,omitempty" msgpack:"params"`
}

// NewMetadata stamps a product with a fresh identity under the given run.
func NewMetadata(runID, kind, variable, shelf string) Metadata {
	if runID == "" {
		runID = uuid.NewString()
	}
	return Metadata{
		RunID:     runID,
		Kind:      kind,
		Variable:  variable,
		Shelf:     shelf,
		CreatedAt: time.Now().UTC(),
	}
}

// Table is a rectangular value table. Labels name the rows (dates, month-day
// keys, or summer labels depending on the product kind); Columns name the
// value columns. Missing values round-trip through JSON as null.
type Table struct {
	Labels  []string    `json:"labels" msgpack:"labels"`
	Columns []string    `json:"columns" msgpack:"columns"`
	Rows    [][]float64 `json:"rows" msgpack:"rows"`
}

// Artifact is one persisted product.
type Artifact struct {
	Meta  Metadata `json:"meta" msgpack:"meta"`
	Table Table    `json:"table" msgpack:"table"`
}

// jsonTable mirrors Table with nullable cells for interchange.
type jsonTable struct {
	Labels  []string     `json:"labels"`
	Columns []string     `json:"columns"`
	Rows    [][]*float64 `json:"rows"`
}

// MarshalJSON writes missing values as null rather than the non-standard NaN.
func (t Table) MarshalJSON() ([]byte, error) {
	jt := jsonTable{Labels: t.Labels, Columns: t.Columns, Rows: make([][]*float64, len(t.Rows))}
	for i, row := range t.Rows {
		jt.Rows[i] = make([]*float64, len(row))
		for j := range row {
			if !series.IsNoData(row[j]) {
				v := row[j]
				jt.Rows[i][j] = &v
			}
		}
	}
	return json.Marshal(jt)
}

func (t *Table) UnmarshalJSON(data []byte) error {
	var jt jsonTable
	if err := json.Unmarshal(data, &jt); err != nil {
		return err
	}
	t.Labels = jt.Labels
	t.Columns = jt.Columns
	t.Rows = make([][]float64, len(jt.Rows))
	for i, row := range jt.Rows {
		t.Rows[i] = make([]float64, len(row))
		for j, cell := range row {
			if cell == nil {
				t.Rows[i][j] = series.NoData
			} else {
				t.Rows[i][j] = *cell
			}
		}
	}
	return nil
}

// Filename builds the canonical relative filename for a product.
func Filename(m Metadata) string {
	parts := []string{m.Kind, m.Variable}
	if m.Shelf != "" {
		parts = append(parts, m.Shelf)
	}
	name := strings.Join(parts, "_")
	name = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/':
			return '-'
		}
		return r
	}, name)
	return strings.ToLower(name) + ".json"
}

// Write persists the artifact under dir and refreshes its msgpack sidecar.
// The JSON file is written atomically so readers never observe a partial
// document.
func Write(dir string, a *Artifact) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifact dir: %w", err)
	}
	path := filepath.Join(dir, Filename(a.Meta))

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return "", fmt.Errorf("encoding artifact %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing artifact %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("writing artifact %s: %w", path, err)
	}

	if err := writeSidecar(path, a); err != nil {
		return "", err
	}
	return path, nil
}

// Read loads an artifact, preferring the msgpack sidecar when it is at least
// as new as the JSON file. An absent artifact is a MissingInputError.
func Read(path string) (*Artifact, error) {
	jsonInfo, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &MissingInputError{Path: path}
	} else if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", path, err)
	}

	sidecar := sidecarPath(path)
	if scInfo, err := os.Stat(sidecar); err == nil && !scInfo.ModTime().Before(jsonInfo.ModTime()) {
		if a, err := readSidecar(sidecar); err == nil {
			return a, nil
		}
		// A corrupt sidecar falls through to JSON and gets rewritten.
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", path, err)
	}
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decoding artifact %s: %w", path, err)
	}
	if err := writeSidecar(path, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func sidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".msgpack"
}

func writeSidecar(jsonPath string, a *Artifact) error {
	raw, err := msgpack.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding sidecar for %s: %w", jsonPath, err)
	}
	path := sidecarPath(jsonPath)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing sidecar %s: %w", path, err)
	}
	return nil
}

func readSidecar(path string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a Artifact
	if err := msgpack.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SeriesTable converts a daily series into a one-column table.
func SeriesTable(s series.Series, column string) Table {
	t := Table{
		Labels:  make([]string, s.Len()),
		Columns: []string{column},
		Rows:    make([][]float64, s.Len()),
	}
	for i := range s.Dates {
		t.Labels[i] = s.Dates[i].String()
		t.Rows[i] = []float64{s.Values[i]}
	}
	return t
}

// TableSeries converts a one-column table back into a daily series.
func TableSeries(t Table, unit string) (series.Series, error) {
	s := series.New(unit, len(t.Labels))
	for i, label := range t.Labels {
		if len(t.Rows[i]) != 1 {
			return series.Series{}, fmt.Errorf("row %d has %d columns, want 1", i, len(t.Rows[i]))
		}
		d, err := parseDate(label)
		if err != nil {
			return series.Series{}, err
		}
		s.Append(d, t.Rows[i][0])
	}
	return s, nil
}

func parseDate(label string) (calendar.Date, error) {
	t, err := time.Parse("2006-01-02", label)
	if err != nil {
		return calendar.Date{}, fmt.Errorf("bad date label %q: %w", label, err)
	}
	return calendar.DateOf(t), nil
}
