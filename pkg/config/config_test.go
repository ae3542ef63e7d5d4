package config

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryoclim/shelfmelt/pkg/units"
)

const minimalYAML = `
artifact_dir: /var/lib/shelfmelt/artifacts
datasets:
  racmo_dir: /data/racmo
  shelf_shapefile: /data/shelves/shelves.shp
variables:
  - name: snowmelt
    netcdf_var: snowmelt
    quantity: mass-flux
  - name: t2m
    netcdf_var: t2m
    quantity: temperature
`

func writeTempYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestYAMLProviderDefaults(t *testing.T) {
	p := NewYAMLProvider(writeTempYAML(t, minimalYAML))
	defer p.Close()

	cfg, err := p.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.SplitMonth)
	assert.Equal(t, 15, cfg.WindowDays)
	assert.Equal(t, 11, cfg.RunningCorrelationYears)
	assert.Equal(t, 0.1, cfg.IDRLow)
	assert.Equal(t, 0.9, cfg.IDRHigh)
	assert.Equal(t, 0.5, cfg.CoverageThreshold)
	assert.Len(t, cfg.Shelves, 27)
	assert.Len(t, cfg.Regions, 6)
	assert.True(t, p.IsReadOnly())

	set, err := cfg.RegionSet()
	require.NoError(t, err)
	assert.Len(t, set.Shelves(), 27)
}

func TestYAMLProviderOverrides(t *testing.T) {
	body := minimalYAML + `
split_month: 4
window_days: 31
idr_low: 0.25
idr_high: 0.75
shelves: [Amery, Totten]
regions:
  - name: East
    shelves: [Amery, Totten]
`
	p := NewYAMLProvider(writeTempYAML(t, body))
	cfg, err := p.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.SplitMonth)
	assert.Equal(t, 31, cfg.WindowDays)
	assert.Equal(t, 0.25, cfg.IDRLow)
	assert.Equal(t, []string{"Amery", "Totten"}, cfg.Shelves)
	require.Len(t, cfg.Regions, 1)
	assert.Equal(t, "East", cfg.Regions[0].Name)
}

func TestValidateRejectsBadParameters(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"even window", func(c *Config) { c.WindowDays = 10 }, "window_days"},
		{"even correlation window", func(c *Config) { c.RunningCorrelationYears = 4 }, "running_correlation_years"},
		{"inverted idr", func(c *Config) { c.IDRLow, c.IDRHigh = 0.9, 0.1 }, "idr_bounds"},
		{"split month out of range", func(c *Config) { c.SplitMonth = 13 }, "split_month"},
		{"coverage above one", func(c *Config) { c.CoverageThreshold = 1.5 }, "coverage_threshold"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers"},
		{"missing artifact dir", func(c *Config) { c.ArtifactDir = "" }, "artifact_dir"},
		{"no variables", func(c *Config) { c.Variables = nil }, "variables"},
		{"duplicate variable", func(c *Config) {
			c.Variables = append(c.Variables, c.Variables[0])
		}, "variables"},
		{"unknown quantity", func(c *Config) { c.Variables[0].Quantity = "vorticity" }, "variables"},
		{"unknown region shelf", func(c *Config) {
			c.Regions = []RegionData{{Name: "Bad", Shelves: []string{"Atlantis"}}}
		}, "regions"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tc.field, cerr.Field)
		})
	}
}

func validConfig() *Config {
	cfg := &Config{
		ArtifactDir: "/tmp/artifacts",
		Variables: []VariableData{
			{Name: "snowmelt", NetCDFVar: "snowmelt", Quantity: "mass-flux"},
		},
	}
	cfg.applyDefaults()
	return cfg
}

func TestQuantityOf(t *testing.T) {
	cfg := validConfig()
	q, err := cfg.QuantityOf("snowmelt")
	require.NoError(t, err)
	assert.Equal(t, units.MassFlux, q)

	_, err = cfg.QuantityOf("vorticity")
	var cerr *ConfigError
	assert.True(t, errors.As(err, &cerr))
}

func TestSQLiteProviderLoad(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "config.db")
	seedConfigDB(t, dbPath)

	p, err := NewSQLiteProvider(dbPath)
	require.NoError(t, err)
	defer p.Close()

	cfg, err := p.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.SplitMonth)
	assert.Equal(t, 31, cfg.WindowDays)
	assert.Equal(t, "/data/racmo", cfg.Datasets.RACMODir)
	assert.Equal(t, "/data/shelves/shelves.shp", cfg.Datasets.ShelfShapefile)
	require.Len(t, cfg.Variables, 1)
	assert.Equal(t, "snowmelt", cfg.Variables[0].Name)
	assert.Equal(t, []string{"Amery", "Totten"}, cfg.Shelves)
	require.Len(t, cfg.Regions, 1)
	assert.Equal(t, RegionData{Name: "East", Shelves: []string{"Amery", "Totten"}}, cfg.Regions[0])
	assert.False(t, p.IsReadOnly())
}

func seedConfigDB(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE settings (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE datasets (name TEXT PRIMARY KEY, path TEXT NOT NULL)`,
		`CREATE TABLE variables (name TEXT PRIMARY KEY, netcdf_var TEXT NOT NULL, quantity TEXT NOT NULL)`,
		`CREATE TABLE shelves (name TEXT PRIMARY KEY, ordinal INTEGER NOT NULL)`,
		`CREATE TABLE region_shelves (region TEXT NOT NULL, shelf TEXT NOT NULL)`,
		`INSERT INTO settings VALUES ('window_days', '31'), ('artifact_dir', '/tmp/artifacts')`,
		`INSERT INTO datasets VALUES ('racmo_dir', '/data/racmo'), ('shelf_shapefile', '/data/shelves/shelves.shp')`,
		`INSERT INTO variables VALUES ('snowmelt', 'snowmelt', 'mass-flux')`,
		`INSERT INTO shelves VALUES ('Amery', 1), ('Totten', 2)`,
		`INSERT INTO region_shelves VALUES ('East', 'Amery'), ('East', 'Totten')`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
}
