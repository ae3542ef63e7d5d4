package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements Provider for YAML configuration files.
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a new YAML configuration provider.
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{filename: filename}
}

// yamlConfig mirrors Config with YAML tags.
type yamlConfig struct {
	SplitMonth              int     `yaml:"split_month"`
	WindowDays              int     `yaml:"window_days"`
	RunningCorrelationYears int     `yaml:"running_correlation_years"`
	IDRLow                  float64 `yaml:"idr_low"`
	IDRHigh                 float64 `yaml:"idr_high"`
	CoverageThreshold       float64 `yaml:"coverage_threshold"`
	Workers                 int     `yaml:"workers"`

	ArtifactDir string `yaml:"artifact_dir"`
	CatalogPath string `yaml:"catalog_path"`

	Datasets struct {
		RACMODir       string `yaml:"racmo_dir"`
		AMSRDir        string `yaml:"amsr_dir"`
		ShelfShapefile string `yaml:"shelf_shapefile"`
		SAMDailyCSV    string `yaml:"sam_daily_csv"`
		SAMMonthlyCSV  string `yaml:"sam_monthly_csv"`
		ENSOMonthlyCSV string `yaml:"enso_monthly_csv"`
	} `yaml:"datasets"`

	Variables []struct {
		Name      string `yaml:"name"`
		NetCDFVar string `yaml:"netcdf_var"`
		Quantity  string `yaml:"quantity"`
	} `yaml:"variables"`

	Shelves []string `yaml:"shelves"`
	Regions []struct {
		Name    string   `yaml:"name"`
		Shelves []string `yaml:"shelves"`
	} `yaml:"regions"`
}

// LoadConfig loads the complete configuration from the YAML file.
func (y *YAMLProvider) LoadConfig() (*Config, error) {
	raw, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		SplitMonth:              yc.SplitMonth,
		WindowDays:              yc.WindowDays,
		RunningCorrelationYears: yc.RunningCorrelationYears,
		IDRLow:                  yc.IDRLow,
		IDRHigh:                 yc.IDRHigh,
		CoverageThreshold:       yc.CoverageThreshold,
		Workers:                 yc.Workers,
		ArtifactDir:             yc.ArtifactDir,
		CatalogPath:             yc.CatalogPath,
		Datasets: DatasetsData{
			RACMODir:       yc.Datasets.RACMODir,
			AMSRDir:        yc.Datasets.AMSRDir,
			ShelfShapefile: yc.Datasets.ShelfShapefile,
			SAMDailyCSV:    yc.Datasets.SAMDailyCSV,
			SAMMonthlyCSV:  yc.Datasets.SAMMonthlyCSV,
			ENSOMonthlyCSV: yc.Datasets.ENSOMonthlyCSV,
		},
		Shelves: yc.Shelves,
	}
	for _, v := range yc.Variables {
		cfg.Variables = append(cfg.Variables, VariableData{
			Name:      v.Name,
			NetCDFVar: v.NetCDFVar,
			Quantity:  v.Quantity,
		})
	}
	for _, r := range yc.Regions {
		cfg.Regions = append(cfg.Regions, RegionData{Name: r.Name, Shelves: r.Shelves})
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsReadOnly reports that YAML files are not editable through the provider.
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for file-based configuration.
func (y *YAMLProvider) Close() error {
	return nil
}
