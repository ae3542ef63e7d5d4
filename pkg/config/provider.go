// Package config loads and validates the pipeline's static configuration:
// dataset locations, the analyzed variables with their quantity categories,
// the shelf and region reference lists, and the statistical parameters.
// Everything is validated once at load; components receive the validated
// structures explicitly and never consult ambient globals.
package config

import (
	"fmt"

	"github.com/cryoclim/shelfmelt/pkg/calendar"
	"github.com/cryoclim/shelfmelt/pkg/regions"
	"github.com/cryoclim/shelfmelt/pkg/units"
)

// Provider defines the interface for configuration data sources.
type Provider interface {
	// LoadConfig loads, defaults, and validates the complete configuration.
	LoadConfig() (*Config, error)

	IsReadOnly() bool
	Close() error
}

// ConfigError reports a bad static parameter. It is fatal and reported
// immediately; nothing retries a bad configuration.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Msg)
}

// Config is the complete validated configuration.
type Config struct {
	SplitMonth              int     `json:"split_month"`
	WindowDays              int     `json:"window_days"`
	RunningCorrelationYears int     `json:"running_correlation_years"`
	IDRLow                  float64 `json:"idr_low"`
	IDRHigh                 float64 `json:"idr_high"`
	CoverageThreshold       float64 `json:"coverage_threshold"`
	Workers                 int     `json:"workers,omitempty"`

	ArtifactDir string `json:"artifact_dir"`
	CatalogPath string `json:"catalog_path,omitempty"`

	Datasets  DatasetsData   `json:"datasets"`
	Variables []VariableData `json:"variables"`
	Shelves   []string       `json:"shelves,omitempty"`
	Regions   []RegionData   `json:"regions,omitempty"`
}

// DatasetsData locates the external input datasets.
type DatasetsData struct {
	RACMODir       string `json:"racmo_dir"`
	AMSRDir        string `json:"amsr_dir,omitempty"`
	ShelfShapefile string `json:"shelf_shapefile"`
	SAMDailyCSV    string `json:"sam_daily_csv,omitempty"`
	SAMMonthlyCSV  string `json:"sam_monthly_csv,omitempty"`
	ENSOMonthlyCSV string `json:"enso_monthly_csv,omitempty"`
}

// VariableData describes one derived variable: its analysis name, the
// NetCDF variable it is read from, and its physical-quantity category.
type VariableData struct {
	Name      string `json:"name"`
	NetCDFVar string `json:"netcdf_var"`
	Quantity  string `json:"quantity"`
}

// RegionData is a named multi-shelf grouping.
type RegionData struct {
	Name    string   `json:"name"`
	Shelves []string `json:"shelves"`
}

// applyDefaults fills unset statistical parameters with the conventional
// values and falls back to the built-in shelf and region lists.
func (c *Config) applyDefaults() {
	if c.SplitMonth == 0 {
		c.SplitMonth = calendar.DefaultSplitMonth
	}
	if c.WindowDays == 0 {
		c.WindowDays = 15
	}
	if c.RunningCorrelationYears == 0 {
		c.RunningCorrelationYears = 11
	}
	if c.IDRLow == 0 && c.IDRHigh == 0 {
		c.IDRLow, c.IDRHigh = 0.1, 0.9
	}
	if c.CoverageThreshold == 0 {
		c.CoverageThreshold = 0.5
	}
	if len(c.Shelves) == 0 {
		c.Shelves = regions.DefaultShelves
	}
	if len(c.Regions) == 0 {
		for _, r := range regions.DefaultRegions {
			c.Regions = append(c.Regions, RegionData{Name: r.Name, Shelves: r.Shelves})
		}
	}
}

// Validate checks every static parameter and returns a ConfigError for the
// first problem found.
func (c *Config) Validate() error {
	if _, err := calendar.NewSplitMonth(c.SplitMonth); err != nil {
		return &ConfigError{Field: "split_month", Msg: err.Error()}
	}
	if c.WindowDays < 1 || c.WindowDays%2 == 0 {
		return &ConfigError{Field: "window_days", Msg: fmt.Sprintf("%d is not a positive odd integer", c.WindowDays)}
	}
	if c.RunningCorrelationYears < 1 || c.RunningCorrelationYears%2 == 0 {
		return &ConfigError{Field: "running_correlation_years", Msg: fmt.Sprintf("%d is not a positive odd integer", c.RunningCorrelationYears)}
	}
	if c.IDRLow <= 0 || c.IDRHigh >= 1 || c.IDRLow >= c.IDRHigh {
		return &ConfigError{Field: "idr_bounds", Msg: fmt.Sprintf("(%g, %g) outside (0,1) or inverted", c.IDRLow, c.IDRHigh)}
	}
	if c.CoverageThreshold < 0 || c.CoverageThreshold > 1 {
		return &ConfigError{Field: "coverage_threshold", Msg: fmt.Sprintf("%g outside [0,1]", c.CoverageThreshold)}
	}
	if c.Workers < 0 {
		return &ConfigError{Field: "workers", Msg: "must not be negative"}
	}
	if c.ArtifactDir == "" {
		return &ConfigError{Field: "artifact_dir", Msg: "is required"}
	}

	if len(c.Variables) == 0 {
		return &ConfigError{Field: "variables", Msg: "at least one variable is required"}
	}
	seen := make(map[string]bool, len(c.Variables))
	for _, v := range c.Variables {
		if v.Name == "" || v.NetCDFVar == "" {
			return &ConfigError{Field: "variables", Msg: "name and netcdf_var are required"}
		}
		if seen[v.Name] {
			return &ConfigError{Field: "variables", Msg: fmt.Sprintf("duplicate variable %q", v.Name)}
		}
		seen[v.Name] = true
		if _, err := units.Parse(v.Quantity); err != nil {
			return &ConfigError{Field: "variables", Msg: err.Error()}
		}
	}

	if _, err := c.RegionSet(); err != nil {
		return &ConfigError{Field: "regions", Msg: err.Error()}
	}
	return nil
}

// Split returns the validated split month.
func (c *Config) Split() calendar.SplitMonth {
	s, _ := calendar.NewSplitMonth(c.SplitMonth)
	return s
}

// RegionSet builds the validated shelf/region set.
func (c *Config) RegionSet() (*regions.Set, error) {
	regs := make([]regions.Region, len(c.Regions))
	for i, r := range c.Regions {
		regs[i] = regions.Region{Name: r.Name, Shelves: r.Shelves}
	}
	return regions.New(c.Shelves, regs)
}

// QuantityOf resolves a configured variable's quantity category.
func (c *Config) QuantityOf(variable string) (units.Quantity, error) {
	for _, v := range c.Variables {
		if v.Name == variable {
			return units.Parse(v.Quantity)
		}
	}
	return 0, &ConfigError{Field: "variables", Msg: fmt.Sprintf("unknown variable %q", variable)}
}
