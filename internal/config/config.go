package config

import (
	"context"
	"fmt"
	"strings"
)

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

// Config holds all configuration for a migration run.
type Config struct {
	// Database
	DBURL string
	// DBName is the Mongo database holding the configuration collections.
	DBName string

	// Datastore backend type
	DatastoreType string // "mongo", "postgres", "sqlite", or "memory"

	// Create indexes/tables before running.
	SchemaMigrate bool

	// DB pool
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Lost-and-found owners for orphaned caches, IGFS and domain models.
	FallbackClusterName string
	FallbackCacheName   string

	// DryRun runs against an in-memory copy and prints the would-be changes.
	DryRun bool

	// Report output
	ReportFile   string // "" or "-" for stdout
	ReportFormat string // "text", "json", or "yaml"
	ReportQuery  string // optional jq expression over the JSON report

	// MetricsLabels is a comma-separated list of key=value pairs added as
	// constant labels to all Prometheus metrics. Values support ${VAR} expansion.
	MetricsLabels string
	// MetricsTextfile is where the run's metrics are written in textfile
	// collector format. Empty disables it.
	MetricsTextfile string

	// Logging
	LogLevel  string
	LogFormat string // "text", "json", or "logfmt"
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DBName:              "console",
		DatastoreType:       "mongo",
		SchemaMigrate:       true,
		DBMaxOpenConns:      10,
		DBMaxIdleConns:      2,
		FallbackClusterName: "ClusterForMigration",
		FallbackCacheName:   "CacheForMigration",
		ReportFormat:        "text",
		MetricsLabels:       "service=console-migrate",
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatastoreType) == "" {
		return fmt.Errorf("datastore type is required")
	}
	if c.DatastoreType != "memory" && strings.TrimSpace(c.DBURL) == "" {
		return fmt.Errorf("database URL is required for the %s datastore", c.DatastoreType)
	}
	if strings.TrimSpace(c.FallbackClusterName) == "" || strings.TrimSpace(c.FallbackCacheName) == "" {
		return fmt.Errorf("fallback cluster and cache names must not be empty")
	}
	switch c.ReportFormat {
	case "", "text", "json", "yaml":
	default:
		return fmt.Errorf("invalid report format %q; valid: text, json, yaml", c.ReportFormat)
	}
	switch c.LogFormat {
	case "", "text", "json", "logfmt":
	default:
		return fmt.Errorf("invalid log format %q; valid: text, json, logfmt", c.LogFormat)
	}
	return nil
}

// ReportToStdout reports whether the report goes to standard output.
func (c *Config) ReportToStdout() bool {
	return c == nil || c.ReportFile == "" || c.ReportFile == "-"
}
