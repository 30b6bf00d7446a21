// Package cmdutil holds the flags and setup shared by the migrate and verify
// sub-commands.
package cmdutil

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chirino/console-migrate/internal/config"
	registrymigrate "github.com/chirino/console-migrate/internal/registry/migrate"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/urfave/cli/v3"

	// Import plugins to trigger init() registration.
	_ "github.com/chirino/console-migrate/internal/plugin/store/memory"
	_ "github.com/chirino/console-migrate/internal/plugin/store/mongo"
	_ "github.com/chirino/console-migrate/internal/plugin/store/postgres"
	_ "github.com/chirino/console-migrate/internal/plugin/store/sqlite"
)

// StoreFlags returns the database and logging flags bound to cfg.
func StoreFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{

		// ── Database ──────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "db-url",
			Category:    "Database:",
			Sources:     cli.EnvVars("CONSOLE_MIGRATE_DB_URL"),
			Destination: &cfg.DBURL,
			Usage:       "Database connection URL (sqlite: file path)",
		},
		&cli.StringFlag{
			Name:        "db-kind",
			Category:    "Database:",
			Sources:     cli.EnvVars("CONSOLE_MIGRATE_DB_KIND"),
			Destination: &cfg.DatastoreType,
			Value:       cfg.DatastoreType,
			Usage:       "Store backend (" + strings.Join(registrystore.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "db-name",
			Category:    "Database:",
			Sources:     cli.EnvVars("CONSOLE_MIGRATE_DB_NAME"),
			Destination: &cfg.DBName,
			Value:       cfg.DBName,
			Usage:       "Mongo database holding the console configuration",
		},
		&cli.IntFlag{
			Name:        "db-max-open-conns",
			Category:    "Database:",
			Sources:     cli.EnvVars("CONSOLE_MIGRATE_DB_MAX_OPEN_CONNS"),
			Destination: &cfg.DBMaxOpenConns,
			Value:       cfg.DBMaxOpenConns,
			Usage:       "Maximum open database connections",
		},
		&cli.IntFlag{
			Name:        "db-max-idle-conns",
			Category:    "Database:",
			Sources:     cli.EnvVars("CONSOLE_MIGRATE_DB_MAX_IDLE_CONNS"),
			Destination: &cfg.DBMaxIdleConns,
			Value:       cfg.DBMaxIdleConns,
			Usage:       "Maximum idle database connections",
		},
		&cli.BoolFlag{
			Name:        "schema-migrate",
			Category:    "Database:",
			Sources:     cli.EnvVars("CONSOLE_MIGRATE_SCHEMA_MIGRATE"),
			Destination: &cfg.SchemaMigrate,
			Value:       cfg.SchemaMigrate,
			Usage:       "Create indexes and tables before running",
		},

		// ── Logging ───────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "log-level",
			Category:    "Logging:",
			Sources:     cli.EnvVars("CONSOLE_MIGRATE_LOG_LEVEL"),
			Destination: &cfg.LogLevel,
			Value:       cfg.LogLevel,
			Usage:       "Log level (debug|info|warn|error)",
		},
		&cli.StringFlag{
			Name:        "log-format",
			Category:    "Logging:",
			Sources:     cli.EnvVars("CONSOLE_MIGRATE_LOG_FORMAT"),
			Destination: &cfg.LogFormat,
			Value:       cfg.LogFormat,
			Usage:       "Log format (text|json|logfmt)",
		},
	}
}

// SetupLogging configures the default charm logger from cfg.
func SetupLogging(cfg *config.Config) error {
	if cfg.LogLevel != "" {
		level, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		log.SetLevel(level)
	}
	switch cfg.LogFormat {
	case "json":
		log.SetFormatter(log.JSONFormatter)
	case "logfmt":
		log.SetFormatter(log.LogfmtFormatter)
	default:
		log.SetFormatter(log.TextFormatter)
	}
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(true)
	return nil
}

// OpenStore runs the registered schema migrators for the configured backend
// and then loads its DocumentStore. ctx must carry cfg.
func OpenStore(ctx context.Context, cfg *config.Config) (registrystore.DocumentStore, error) {
	if err := registrymigrate.RunAll(ctx); err != nil {
		return nil, err
	}
	loader, err := registrystore.Select(cfg.DatastoreType)
	if err != nil {
		return nil, err
	}
	store, err := loader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.DatastoreType, err)
	}
	return store, nil
}
