package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/cryoclim/shelfmelt/internal/catalog"
	"github.com/cryoclim/shelfmelt/internal/log"
	"github.com/cryoclim/shelfmelt/internal/pipeline"
	"github.com/cryoclim/shelfmelt/pkg/config"
)

const version = "1.2-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to configuration source (YAML file or SQLite database)")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("melt-derive %s\n", version)
		os.Exit(0)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := loadConfig(*cfgFile, *cfgBackend)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	cat, err := catalog.Open(catalogPath(cfg))
	if err != nil {
		log.Errorf("Failed to open run catalog: %v", err)
		os.Exit(1)
	}
	defer cat.Close()

	deriver := pipeline.NewDeriver(cfg, cat, log.GetSugaredLogger())
	runID, err := deriver.Run()
	if err != nil {
		log.Errorf("Derivation run %s failed: %v", runID, err)
		os.Exit(1)
	}
	log.Infof("Derivation run %s complete", runID)
}

func catalogPath(cfg *config.Config) string {
	if cfg.CatalogPath != "" {
		return cfg.CatalogPath
	}
	return filepath.Join(cfg.ArtifactDir, "catalog.db")
}

func loadConfig(cfgFile, cfgBackend string) (*config.Config, error) {
	filename, _ := filepath.Abs(cfgFile)

	var provider config.Provider
	var err error

	switch cfgBackend {
	case "yaml":
		provider = config.NewYAMLProvider(filename)
	case "sqlite":
		provider, err = config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	return cfg, nil
}
