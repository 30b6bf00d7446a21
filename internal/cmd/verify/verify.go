package verify

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/chirino/console-migrate/internal/cmd/cmdutil"
	"github.com/chirino/console-migrate/internal/config"
	"github.com/chirino/console-migrate/internal/verify"
	"github.com/urfave/cli/v3"
)

// Command returns the verify sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	// verify is read-only; index and table creation is opt-in here.
	cfg.SchemaMigrate = false
	return &cli.Command{
		Name:  "verify",
		Usage: "Check that every cache, IGFS and domain model has exactly one owning cluster",
		Flags: append(cmdutil.StoreFlags(&cfg),
			&cli.StringFlag{
				Name:        "report-format",
				Category:    "Report:",
				Sources:     cli.EnvVars("CONSOLE_MIGRATE_REPORT_FORMAT"),
				Destination: &cfg.ReportFormat,
				Value:       cfg.ReportFormat,
				Usage:       "Violation output format (text|json|yaml)",
			},
		),
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

func run(ctx context.Context, cfg *config.Config) error {
	store, err := cmdutil.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	snap, err := verify.Load(ctx, store)
	if err != nil {
		return err
	}
	violations := verify.Check(snap)

	if err := verify.Render(os.Stdout, violations, cfg.ReportFormat); err != nil {
		return err
	}

	if len(violations) > 0 {
		return fmt.Errorf("found %d violation(s)", len(violations))
	}
	log.Info("Configuration is consistent", "datastore", cfg.DatastoreType)
	return nil
}
