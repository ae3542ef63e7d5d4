// config-test loads the same configuration from a YAML file and a SQLite
// database and compares them, to verify a config-convert migration.
package main

import (
	"flag"
	"fmt"
	"os"
	"reflect"
	"sort"

	"github.com/cryoclim/shelfmelt/pkg/config"
)

// normalize orders the list-valued sections, whose order the SQLite backend
// does not preserve.
func normalize(cfg *config.Config) {
	sort.Slice(cfg.Variables, func(i, j int) bool { return cfg.Variables[i].Name < cfg.Variables[j].Name })
	sort.Slice(cfg.Regions, func(i, j int) bool { return cfg.Regions[i].Name < cfg.Regions[j].Name })
	for _, r := range cfg.Regions {
		sort.Strings(r.Shelves)
	}
}

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite configuration file")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	yamlCfg, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loading SQLite configuration: %s\n", *sqliteFile)
	provider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite provider: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()
	sqliteCfg, err := provider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading SQLite config: %v\n", err)
		os.Exit(1)
	}

	normalize(yamlCfg)
	normalize(sqliteCfg)

	ok := true
	check := func(name string, a, b interface{}) {
		if reflect.DeepEqual(a, b) {
			fmt.Printf("  ok    %s\n", name)
			return
		}
		ok = false
		fmt.Printf("  DIFF  %s:\n    yaml:   %v\n    sqlite: %v\n", name, a, b)
	}

	fmt.Println("Comparison:")
	check("split_month", yamlCfg.SplitMonth, sqliteCfg.SplitMonth)
	check("window_days", yamlCfg.WindowDays, sqliteCfg.WindowDays)
	check("running_correlation_years", yamlCfg.RunningCorrelationYears, sqliteCfg.RunningCorrelationYears)
	check("idr_low", yamlCfg.IDRLow, sqliteCfg.IDRLow)
	check("idr_high", yamlCfg.IDRHigh, sqliteCfg.IDRHigh)
	check("coverage_threshold", yamlCfg.CoverageThreshold, sqliteCfg.CoverageThreshold)
	check("workers", yamlCfg.Workers, sqliteCfg.Workers)
	check("artifact_dir", yamlCfg.ArtifactDir, sqliteCfg.ArtifactDir)
	check("catalog_path", yamlCfg.CatalogPath, sqliteCfg.CatalogPath)
	check("datasets", yamlCfg.Datasets, sqliteCfg.Datasets)
	check("variables", yamlCfg.Variables, sqliteCfg.Variables)
	check("shelves", yamlCfg.Shelves, sqliteCfg.Shelves)
	check("regions", yamlCfg.Regions, sqliteCfg.Regions)

	if !ok {
		fmt.Println("Configurations differ")
		os.Exit(1)
	}
	fmt.Println("Configurations match")
}
