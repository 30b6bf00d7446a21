package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/chirino/console-migrate/internal/cmd/migrate"
	"github.com/chirino/console-migrate/internal/cmd/verify"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "console-migrate",
		Usage: "Normalize the console's cluster configuration to single ownership",
		Commands: []*cli.Command{
			migrate.Command(),
			verify.Command(),
		},
	}
	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
