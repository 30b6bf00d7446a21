package migrate

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/chirino/console-migrate/internal/cmd/cmdutil"
	"github.com/chirino/console-migrate/internal/config"
	"github.com/chirino/console-migrate/internal/metrics"
	"github.com/chirino/console-migrate/internal/migration"
	"github.com/chirino/console-migrate/internal/model"
	"github.com/chirino/console-migrate/internal/plugin/store/memory"
	storemetrics "github.com/chirino/console-migrate/internal/plugin/store/metrics"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/chirino/console-migrate/internal/report"
	"github.com/urfave/cli/v3"
)

// Command returns the migrate sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	return &cli.Command{
		Name:  "migrate",
		Usage: "Normalize cluster, cache, domain model and IGFS ownership",
		Flags: append(cmdutil.StoreFlags(&cfg), flags(&cfg)...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cmdutil.SetupLogging(&cfg); err != nil {
				return err
			}
			return run(config.WithContext(ctx, &cfg), &cfg)
		},
	}
}

func flags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{

		// ── Migration ─────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "fallback-cluster-name",
			Category:    "Migration:",
			Sources:     cli.EnvVars("CONSOLE_MIGRATE_FALLBACK_CLUSTER_NAME"),
			Destination: &cfg.FallbackClusterName,
			Value:       cfg.FallbackClusterName,
			Usage:       "Name of the cluster that adopts orphaned caches, IGFS and domain models",
		},
		&cli.StringFlag{
			Name:        "fallback-cache-name",
			Category:    "Migration:",
			Sources:     cli.EnvVars("CONSOLE_MIGRATE_FALLBACK_CACHE_NAME"),
			Destination: &cfg.FallbackCacheName,
			Value:       cfg.FallbackCacheName,
			Usage:       "Name of the cache that adopts orphaned domain models",
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Category:    "Migration:",
			Sources:     cli.EnvVars("CONSOLE_MIGRATE_DRY_RUN"),
			Destination: &cfg.DryRun,
			Usage:       "Run against an in-memory copy and print a diff instead of writing",
		},

		// ── Report ────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "report-file",
			Category:    "Report:",
			Sources:     cli.EnvVars("CONSOLE_MIGRATE_REPORT_FILE"),
			Destination: &cfg.ReportFile,
			Usage:       "Write the run report to this file (default stdout)",
		},
		&cli.StringFlag{
			Name:        "report-format",
			Category:    "Report:",
			Sources:     cli.EnvVars("CONSOLE_MIGRATE_REPORT_FORMAT"),
			Destination: &cfg.ReportFormat,
			Value:       cfg.ReportFormat,
			Usage:       "Report format (text|json|yaml)",
		},
		&cli.StringFlag{
			Name:        "report-query",
			Category:    "Report:",
			Sources:     cli.EnvVars("CONSOLE_MIGRATE_REPORT_QUERY"),
			Destination: &cfg.ReportQuery,
			Usage:       "jq expression evaluated over the JSON report instead of rendering it",
		},

		// ── Monitoring ────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "metrics-labels",
			Category:    "Monitoring:",
			Sources:     cli.EnvVars("CONSOLE_MIGRATE_METRICS_LABELS"),
			Destination: &cfg.MetricsLabels,
			Value:       cfg.MetricsLabels,
			Usage:       "Comma-separated key=value pairs added as constant labels to all Prometheus metrics. Supports ${VAR} expansion.",
		},
		&cli.StringFlag{
			Name:        "metrics-textfile",
			Category:    "Monitoring:",
			Sources:     cli.EnvVars("CONSOLE_MIGRATE_METRICS_TEXTFILE"),
			Destination: &cfg.MetricsTextfile,
			Usage:       "Write run metrics in node-exporter textfile format to this path",
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	labels, err := metrics.ParseMetricsLabels(cfg.MetricsLabels)
	if err != nil {
		return err
	}
	metrics.InitMetrics(labels)

	if cfg.DryRun {
		// Leave the source untouched, indexes and tables included.
		cfg.SchemaMigrate = false
	}
	src, err := cmdutil.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close(context.Background())

	target := src
	var dry *memory.Store
	var before report.Snapshot
	if cfg.DryRun {
		dry, before, err = copyToMemory(ctx, src)
		if err != nil {
			return err
		}
		target = dry
		log.Info("Dry run: changes are applied to an in-memory copy", "datastore", cfg.DatastoreType)
	}

	engine := migration.New(storemetrics.Wrap(target), migration.Options{
		FallbackClusterName: cfg.FallbackClusterName,
		FallbackCacheName:   cfg.FallbackCacheName,
		Logger:              log.Default(),
	})
	rep, runErr := engine.Run(ctx)
	if rep != nil {
		rep.DryRun = cfg.DryRun
		if err := writeReport(cfg, rep); err != nil {
			log.Error("Failed to write report", "err", err)
		}
		metrics.ObserveReport(rep)
	}
	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Error("Failed to write metrics textfile", "path", cfg.MetricsTextfile, "err", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("migration aborted: %w", runErr)
	}

	if dry != nil {
		after, err := dry.Snapshot()
		if err != nil {
			return err
		}
		diff, err := report.Diff(before, after)
		if err != nil {
			return err
		}
		if diff == "" {
			log.Info("Dry run: no changes")
		} else {
			fmt.Fprint(os.Stdout, diff)
		}
	}

	if rep.HasFailures() {
		return fmt.Errorf("%d item(s) could not be migrated; see the report", len(rep.Failures))
	}
	return nil
}

// copyToMemory loads every configuration collection from src into a fresh
// memory store. Ids for inserted documents are still minted by src so that a
// dry run shows keys in the backend's native format.
func copyToMemory(ctx context.Context, src registrystore.DocumentStore) (*memory.Store, report.Snapshot, error) {
	dst := memory.New(memory.WithIDGenerator(src.NewID))
	for _, coll := range model.Collections {
		docs, err := src.FindAll(ctx, coll)
		if err != nil {
			return nil, nil, fmt.Errorf("dry run: failed to read %s: %w", coll, err)
		}
		if err := dst.Seed(coll, docs...); err != nil {
			return nil, nil, fmt.Errorf("dry run: failed to copy %s: %w", coll, err)
		}
	}
	before, err := dst.Snapshot()
	if err != nil {
		return nil, nil, err
	}
	return dst, before, nil
}

func writeReport(cfg *config.Config, rep *report.RunReport) error {
	var w io.Writer = os.Stdout
	if !cfg.ReportToStdout() {
		f, err := os.Create(cfg.ReportFile)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if cfg.ReportQuery != "" {
		return rep.Query(w, cfg.ReportQuery)
	}
	return rep.Render(w, cfg.ReportFormat)
}
