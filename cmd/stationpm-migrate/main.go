// stationpm-migrate is the one-time ETL for the legacy job-management
// export. It lands customer and site CSVs in the stationpm database so
// historical account data survives the cut-over. Matching is by legacy
// reference, so the command can be re-run against a corrected export.
//
// Usage:
//
//	stationpm-migrate -customers customers.csv -sites sites.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	_ "github.com/fieldline/stationpm/migrations"

	"github.com/fieldline/stationpm/internal/infrastructure/config"
	"github.com/fieldline/stationpm/internal/infrastructure/database"
	"github.com/fieldline/stationpm/internal/infrastructure/logging"
	"github.com/fieldline/stationpm/internal/legacy"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("stationpm-migrate", flag.ContinueOnError)
	customersPath := flags.String("customers", "", "path to the legacy customer export CSV")
	sitesPath := flags.String("sites", "", "path to the legacy site export CSV")
	configPath := flags.String("config", "", "path to config.yaml (default: STATIONPM_CONFIG or configs/config.yaml)")
	dryRun := flags.Bool("dry-run", false, "parse and report without writing to the database")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *customersPath == "" && *sitesPath == "" {
		return fmt.Errorf("nothing to do: pass -customers and/or -sites")
	}

	log := logging.Default()

	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var customers []legacy.Customer
	if *customersPath != "" {
		customers, err = parseCustomers(*customersPath)
		if err != nil {
			return err
		}
		log.Info("customer export parsed", "path", *customersPath, "records", len(customers))
	}

	var sites []legacy.Site
	if *sitesPath != "" {
		sites, err = parseSites(*sitesPath)
		if err != nil {
			return err
		}
		log.Info("site export parsed", "path", *sitesPath, "records", len(sites))
	}

	if *dryRun {
		log.Info("dry run, nothing written", "customers", len(customers), "sites", len(sites))
		return nil
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	repo := legacy.NewSQLiteRepository(db.DB)

	if len(customers) > 0 {
		result, err := repo.UpsertCustomers(ctx, customers)
		if err != nil {
			return fmt.Errorf("importing customers: %w", err)
		}
		log.Info("customers imported", "inserted", result.Inserted, "updated", result.Updated)
	}

	if len(sites) > 0 {
		result, err := repo.UpsertSites(ctx, sites)
		if err != nil {
			return fmt.Errorf("importing sites: %w", err)
		}
		log.Info("sites imported", "inserted", result.Inserted, "updated", result.Updated)
	}

	return nil
}

// resolveConfigPath picks the explicit flag, then the environment
// variable, then the default path.
func resolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if path := os.Getenv("STATIONPM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func parseCustomers(path string) ([]legacy.Customer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening customer export: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	customers, err := legacy.ParseCustomersCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parsing customer export: %w", err)
	}
	return customers, nil
}

func parseSites(path string) ([]legacy.Site, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening site export: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	sites, err := legacy.ParseSitesCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parsing site export: %w", err)
	}
	return sites, nil
}
