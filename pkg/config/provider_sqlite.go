package config

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"
)

// SQLiteProvider implements Provider for SQLite configuration databases, the
// format produced by the config-convert tool for deployments that manage
// configuration centrally.
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider.
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	return &SQLiteProvider{db: db, dbPath: dbPath}, nil
}

// LoadConfig loads the complete configuration from the database.
func (s *SQLiteProvider) LoadConfig() (*Config, error) {
	cfg := &Config{}

	settings, err := s.settings()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := applySettings(cfg, settings); err != nil {
		return nil, err
	}

	cfg.Datasets, err = s.datasets()
	if err != nil {
		return nil, fmt.Errorf("failed to load datasets: %w", err)
	}
	cfg.Variables, err = s.variables()
	if err != nil {
		return nil, fmt.Errorf("failed to load variables: %w", err)
	}
	cfg.Shelves, err = s.shelves()
	if err != nil {
		return nil, fmt.Errorf("failed to load shelves: %w", err)
	}
	cfg.Regions, err = s.regions()
	if err != nil {
		return nil, fmt.Errorf("failed to load regions: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *SQLiteProvider) settings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func applySettings(cfg *Config, settings map[string]string) error {
	intFields := map[string]*int{
		"split_month":               &cfg.SplitMonth,
		"window_days":               &cfg.WindowDays,
		"running_correlation_years": &cfg.RunningCorrelationYears,
		"workers":                   &cfg.Workers,
	}
	floatFields := map[string]*float64{
		"idr_low":            &cfg.IDRLow,
		"idr_high":           &cfg.IDRHigh,
		"coverage_threshold": &cfg.CoverageThreshold,
	}
	stringFields := map[string]*string{
		"artifact_dir": &cfg.ArtifactDir,
		"catalog_path": &cfg.CatalogPath,
	}

	for key, val := range settings {
		switch {
		case intFields[key] != nil:
			n, err := strconv.Atoi(val)
			if err != nil {
				return &ConfigError{Field: key, Msg: fmt.Sprintf("not an integer: %q", val)}
			}
			*intFields[key] = n
		case floatFields[key] != nil:
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return &ConfigError{Field: key, Msg: fmt.Sprintf("not a number: %q", val)}
			}
			*floatFields[key] = f
		case stringFields[key] != nil:
			*stringFields[key] = val
		}
	}
	return nil
}

func (s *SQLiteProvider) datasets() (DatasetsData, error) {
	rows, err := s.db.Query(`SELECT name, path FROM datasets`)
	if err != nil {
		return DatasetsData{}, err
	}
	defer rows.Close()

	var d DatasetsData
	for rows.Next() {
		var name, path string
		if err := rows.Scan(&name, &path); err != nil {
			return DatasetsData{}, err
		}
		switch name {
		case "racmo_dir":
			d.RACMODir = path
		case "amsr_dir":
			d.AMSRDir = path
		case "shelf_shapefile":
			d.ShelfShapefile = path
		case "sam_daily_csv":
			d.SAMDailyCSV = path
		case "sam_monthly_csv":
			d.SAMMonthlyCSV = path
		case "enso_monthly_csv":
			d.ENSOMonthlyCSV = path
		}
	}
	return d, rows.Err()
}

func (s *SQLiteProvider) variables() ([]VariableData, error) {
	rows, err := s.db.Query(`SELECT name, netcdf_var, quantity FROM variables ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VariableData
	for rows.Next() {
		var v VariableData
		if err := rows.Scan(&v.Name, &v.NetCDFVar, &v.Quantity); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteProvider) shelves() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM shelves ORDER BY ordinal`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *SQLiteProvider) regions() ([]RegionData, error) {
	rows, err := s.db.Query(`SELECT region, shelf FROM region_shelves ORDER BY region, shelf`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := make(map[string]*RegionData)
	var order []string
	for rows.Next() {
		var region, shelf string
		if err := rows.Scan(&region, &shelf); err != nil {
			return nil, err
		}
		r := byName[region]
		if r == nil {
			r = &RegionData{Name: region}
			byName[region] = r
			order = append(order, region)
		}
		r.Shelves = append(r.Shelves, shelf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]RegionData, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

// IsReadOnly reports whether the database supports writes.
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection.
func (s *SQLiteProvider) Close() error {
	return s.db.Close()
}
