// Package migration drives the configuration normalization run: deduplicate
// relationship arrays, provision the lost-and-found owners, then give every
// cache, IGFS and domain model a single owning cluster.
//
// The run is strictly sequential and assumes it is the only writer.
package migration

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/console-migrate/internal/model"
	"github.com/chirino/console-migrate/internal/normalize"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/chirino/console-migrate/internal/report"
)

const (
	DefaultFallbackClusterName = "ClusterForMigration"
	DefaultFallbackCacheName   = "CacheForMigration"
)

// Options configures an Engine.
type Options struct {
	FallbackClusterName string
	FallbackCacheName   string
	Logger              *log.Logger
}

// Engine runs the migration against a DocumentStore.
type Engine struct {
	store registrystore.DocumentStore
	opts  Options
	log   *log.Logger
}

// New returns an Engine. Zero-valued options fall back to defaults.
func New(store registrystore.DocumentStore, opts Options) *Engine {
	if opts.FallbackClusterName == "" {
		opts.FallbackClusterName = DefaultFallbackClusterName
	}
	if opts.FallbackCacheName == "" {
		opts.FallbackCacheName = DefaultFallbackCacheName
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{store: store, opts: opts, log: logger}
}

// Run executes every step in dependency order. Per-item failures are logged
// and recorded in the report; only faults that make the rest of the run
// meaningless (listing a collection, provisioning fallbacks, cancellation)
// are returned as errors, together with the partial report.
func (e *Engine) Run(ctx context.Context) (*report.RunReport, error) {
	rep := report.New()
	e.log.Info("Configuration migration started")

	for _, f := range model.DedupeFields {
		if err := e.deduplicate(ctx, rep, f); err != nil {
			return rep, err
		}
	}

	fallbacks, err := e.provisionFallbacks(ctx, rep)
	if err != nil {
		return rep, err
	}

	if err := e.migrateCaches(ctx, rep, fallbacks); err != nil {
		return rep, err
	}
	if err := e.migrateFilesystems(ctx, rep, fallbacks); err != nil {
		return rep, err
	}
	if err := e.migrateDomainModels(ctx, rep, fallbacks); err != nil {
		return rep, err
	}

	rep.Finish()
	e.log.Info("Configuration migration finished", "summary", rep.Summary())
	return rep, nil
}

func (e *Engine) deduplicate(ctx context.Context, rep *report.RunReport, f model.RefField) error {
	docs, err := e.store.FindAll(ctx, f.Collection)
	if err != nil {
		return fmt.Errorf("deduplication of %s: %w", f.Title, err)
	}
	e.log.Info("Deduplication started", "of", f.Title)

	cnt := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		deduped, changed := normalize.Dedupe(doc, f.Field)
		if !changed {
			continue
		}
		if err := e.store.UpdateFields(ctx, f.Collection, doc.ID(), registrystore.SetField(f.Field, deduped)); err != nil {
			e.log.Error("Failed to deduplicate", "of", f.Title, "id", doc.ID(), "err", err)
			rep.AddFailure(f.Collection, doc.ID(), fmt.Errorf("deduplicate %s: %w", f.Field, err))
			continue
		}
		cnt++
		rep.Counts(f.Collection).Deduplicated++
		rep.AddRepair(f.Collection, doc.ID(), doc.Name(), "dedupe",
			fmt.Sprintf("%s: %d -> %d", f.Field, len(doc.Refs(f.Field)), len(deduped)))
	}
	e.log.Info("Deduplication finished", "of", f.Title, "count", cnt)
	return nil
}
