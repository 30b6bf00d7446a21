package migration

import (
	"context"
	"fmt"

	"github.com/chirino/console-migrate/internal/model"
	"github.com/chirino/console-migrate/internal/normalize"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/chirino/console-migrate/internal/report"
)

func (e *Engine) migrateCaches(ctx context.Context, rep *report.RunReport, fb normalize.Fallbacks) error {
	e.log.Info("Caches migration started")
	caches, err := e.store.FindAll(ctx, model.Caches)
	if err != nil {
		return fmt.Errorf("caches migration: %w", err)
	}
	e.log.Info("Caches to migrate", "count", len(caches))

	for _, cache := range caches {
		if err := ctx.Err(); err != nil {
			return err
		}
		in := normalize.CacheInput{Fallbacks: fb, NewID: e.store.NewID}
		if normalize.Classify(cache.Refs(model.FieldClusters)) == normalize.MultiOwner {
			in.Domains = e.loadDomains(ctx, rep, cache)
		}
		plan, err := normalize.PlanCache(cache, in)
		if err != nil {
			e.log.Error("Failed to plan cache migration", "cache", cache.Label(), "err", err)
			rep.AddFailure(model.Caches, cache.ID(), err)
			continue
		}
		e.execute(ctx, rep, plan)
	}
	e.log.Info("Caches migration finished")
	return nil
}

// loadDomains reads the domain models a cache links to. Missing ones are
// left out; the planner reports them.
func (e *Engine) loadDomains(ctx context.Context, rep *report.RunReport, cache model.Document) map[string]model.Document {
	out := map[string]model.Document{}
	for _, id := range cache.Refs(model.FieldDomains) {
		doc, err := e.store.FindOne(ctx, model.DomainModels, registrystore.ByID(id))
		if err != nil {
			if !registrystore.IsNotFound(err) {
				e.log.Error("Failed to read domain model", "domain", id, "cache", cache.Label(), "err", err)
				rep.AddFailure(model.DomainModels, id, fmt.Errorf("read for cache %s: %w", cache.Label(), err))
				// Recorded here; keep the planner from reporting it again.
				out[id] = nil
			}
			continue
		}
		out[id] = doc
	}
	return out
}

func (e *Engine) migrateFilesystems(ctx context.Context, rep *report.RunReport, fb normalize.Fallbacks) error {
	e.log.Info("IGFS migration started")
	igfss, err := e.store.FindAll(ctx, model.Filesystems)
	if err != nil {
		return fmt.Errorf("IGFS migration: %w", err)
	}
	e.log.Info("IGFS to migrate", "count", len(igfss))

	for _, fs := range igfss {
		if err := ctx.Err(); err != nil {
			return err
		}
		plan, err := normalize.PlanFilesystem(fs, fb, e.store.NewID)
		if err != nil {
			e.log.Error("Failed to plan IGFS migration", "igfs", fs.Label(), "err", err)
			rep.AddFailure(model.Filesystems, fs.ID(), err)
			continue
		}
		e.execute(ctx, rep, plan)
	}
	e.log.Info("IGFS migration finished")
	return nil
}

func (e *Engine) migrateDomainModels(ctx context.Context, rep *report.RunReport, fb normalize.Fallbacks) error {
	e.log.Info("Domain models migration started")
	domains, err := e.store.FindAll(ctx, model.DomainModels)
	if err != nil {
		return fmt.Errorf("domain models migration: %w", err)
	}
	e.log.Info("Domain models to migrate", "count", len(domains))

	for _, domain := range domains {
		if err := ctx.Err(); err != nil {
			return err
		}
		var lookupErr error
		lookup := func(id string) (model.Document, bool) {
			cache, err := e.store.FindOne(ctx, model.Caches, registrystore.ByID(id))
			if err != nil {
				if !registrystore.IsNotFound(err) {
					lookupErr = err
				}
				return nil, false
			}
			return cache, true
		}
		plan := normalize.PlanDomainModel(domain, fb, lookup)
		if lookupErr != nil {
			e.log.Error("Failed to read cache of domain model", "domain", domain.ID(), "err", lookupErr)
			rep.AddFailure(model.DomainModels, domain.ID(), fmt.Errorf("read cache: %w", lookupErr))
			continue
		}
		e.execute(ctx, rep, plan)
	}
	e.log.Info("Domain models migration finished")
	return nil
}
