// Station PM - Preventive Maintenance for Building Automation Controllers
//
// This is the main entry point for the Station PM backend. Station PM
// keeps an inventory of Niagara controllers, ingests their diagnostic
// exports (platform details, device lists, resource usage), and tracks
// the maintenance visits carried out against them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/fieldline/stationpm/migrations"

	"github.com/fieldline/stationpm/internal/api"
	"github.com/fieldline/stationpm/internal/audit"
	"github.com/fieldline/stationpm/internal/auth"
	"github.com/fieldline/stationpm/internal/infrastructure/config"
	"github.com/fieldline/stationpm/internal/infrastructure/database"
	"github.com/fieldline/stationpm/internal/infrastructure/influxdb"
	"github.com/fieldline/stationpm/internal/infrastructure/logging"
	"github.com/fieldline/stationpm/internal/infrastructure/mqtt"
	"github.com/fieldline/stationpm/internal/inventory"
	"github.com/fieldline/stationpm/internal/resource"
	"github.com/fieldline/stationpm/internal/snapshot"
	"github.com/fieldline/stationpm/internal/visit"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,cyclop // startup sequencing reads better flat than split
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Station PM",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	userRepo := auth.NewUserRepository(db.DB)

	// First boot: create the initial admin account and print its password.
	seedPassword, err := auth.SeedAdmin(ctx, userRepo, log.Logger)
	if err != nil {
		return fmt.Errorf("seeding admin user: %w", err)
	}
	if seedPassword != "" {
		fmt.Printf("\n  Initial admin password: %s\n  Change it immediately via POST /api/v1/users/{id}/password\n\n", seedPassword)
	}

	// Connect to MQTT broker (optional). Without it, import events are
	// only delivered over WebSocket.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled, events delivered over WebSocket only")
	}

	// Connect to InfluxDB (optional). Without it, only the latest resource
	// readings in SQLite are available.
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled, metric history unavailable")
	}

	server, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Security:     cfg.Security,
		Imports:      cfg.Imports,
		Logger:       log,
		UserRepo:     userRepo,
		TokenRepo:    auth.NewTokenRepository(db.DB),
		SnapshotRepo: snapshot.NewSQLiteRepository(db.DB),
		DeviceRepo:   inventory.NewSQLiteRepository(db.DB),
		ResourceRepo: resource.NewSQLiteRepository(db.DB),
		VisitRepo:    visit.NewSQLiteRepository(db.DB),
		AuditRepo:    audit.NewSQLiteRepository(db.DB),
		MQTT:         mqttClient,
		Influx:       influxClient,
		MaxUpload:    cfg.MaxUploadBytes(),
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server listening",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
		"tls", cfg.API.TLS.Enabled,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("Station PM stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses STATIONPM_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("STATIONPM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
