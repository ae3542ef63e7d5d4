// config-convert migrates a YAML configuration file into the SQLite backend
// consumed with -config-backend sqlite.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/cryoclim/shelfmelt/pkg/config"
)

const schema = `
CREATE TABLE settings (key TEXT PRIMARY KEY, value TEXT NOT NULL);
CREATE TABLE datasets (name TEXT PRIMARY KEY, path TEXT NOT NULL);
CREATE TABLE variables (name TEXT PRIMARY KEY, netcdf_var TEXT NOT NULL, quantity TEXT NOT NULL);
CREATE TABLE shelves (name TEXT PRIMARY KEY, ordinal INTEGER NOT NULL);
CREATE TABLE region_shelves (region TEXT NOT NULL, shelf TEXT NOT NULL);
`

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Validate and summarize without writing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d variables, %d shelves, %d regions\n",
		len(cfg.Variables), len(cfg.Shelves), len(cfg.Regions))

	if *dryRun {
		fmt.Println("DRY RUN complete - no database created")
		return
	}

	if _, err := os.Stat(*sqliteFile); err == nil {
		if !*force {
			fmt.Fprintf(os.Stderr, "Error: SQLite file already exists: %s (use -force to overwrite)\n", *sqliteFile)
			os.Exit(1)
		}
		if err := os.Remove(*sqliteFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error removing existing SQLite file: %v\n", err)
			os.Exit(1)
		}
	}

	if err := writeDatabase(*sqliteFile, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing SQLite database: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Conversion complete: %s\n", *sqliteFile)
}

func writeDatabase(path string, cfg *config.Config) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	settings := map[string]string{
		"split_month":               strconv.Itoa(cfg.SplitMonth),
		"window_days":               strconv.Itoa(cfg.WindowDays),
		"running_correlation_years": strconv.Itoa(cfg.RunningCorrelationYears),
		"workers":                   strconv.Itoa(cfg.Workers),
		"idr_low":                   strconv.FormatFloat(cfg.IDRLow, 'g', -1, 64),
		"idr_high":                  strconv.FormatFloat(cfg.IDRHigh, 'g', -1, 64),
		"coverage_threshold":        strconv.FormatFloat(cfg.CoverageThreshold, 'g', -1, 64),
		"artifact_dir":              cfg.ArtifactDir,
		"catalog_path":              cfg.CatalogPath,
	}
	for k, v := range settings {
		if _, err := tx.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)`, k, v); err != nil {
			return err
		}
	}

	datasets := map[string]string{
		"racmo_dir":        cfg.Datasets.RACMODir,
		"amsr_dir":         cfg.Datasets.AMSRDir,
		"shelf_shapefile":  cfg.Datasets.ShelfShapefile,
		"sam_daily_csv":    cfg.Datasets.SAMDailyCSV,
		"sam_monthly_csv":  cfg.Datasets.SAMMonthlyCSV,
		"enso_monthly_csv": cfg.Datasets.ENSOMonthlyCSV,
	}
	for name, p := range datasets {
		if p == "" {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO datasets (name, path) VALUES (?, ?)`, name, p); err != nil {
			return err
		}
	}

	for _, v := range cfg.Variables {
		if _, err := tx.Exec(
			`INSERT INTO variables (name, netcdf_var, quantity) VALUES (?, ?, ?)`,
			v.Name, v.NetCDFVar, v.Quantity,
		); err != nil {
			return err
		}
	}
	for i, shelf := range cfg.Shelves {
		if _, err := tx.Exec(`INSERT INTO shelves (name, ordinal) VALUES (?, ?)`, shelf, i); err != nil {
			return err
		}
	}
	for _, r := range cfg.Regions {
		for _, shelf := range r.Shelves {
			if _, err := tx.Exec(
				`INSERT INTO region_shelves (region, shelf) VALUES (?, ?)`, r.Name, shelf,
			); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}
