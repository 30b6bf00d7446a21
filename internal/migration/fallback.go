package migration

import (
	"context"
	"fmt"

	"github.com/chirino/console-migrate/internal/model"
	"github.com/chirino/console-migrate/internal/normalize"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/chirino/console-migrate/internal/report"
)

// provisionFallbacks finds or creates the lost-and-found cluster and cache.
// They are matched by name, so running it again reuses them.
func (e *Engine) provisionFallbacks(ctx context.Context, rep *report.RunReport) (normalize.Fallbacks, error) {
	fb := normalize.Fallbacks{
		ClusterName: e.opts.FallbackClusterName,
		CacheName:   e.opts.FallbackCacheName,
	}

	cluster, err := e.ensure(ctx, rep, model.Clusters, fb.ClusterName, func(id string) model.Document {
		return model.Document{
			model.FieldID:     id,
			model.FieldName:   fb.ClusterName,
			"discovery":       map[string]any{"kind": "Multicast"},
			model.FieldCaches: []string{},
			model.FieldIgfss:  []string{},
			model.FieldModels: []string{},
		}
	})
	if err != nil {
		return fb, err
	}
	fb.ClusterID = cluster.ID()

	cache, err := e.ensure(ctx, rep, model.Caches, fb.CacheName, func(id string) model.Document {
		return model.Document{
			model.FieldID:       id,
			model.FieldName:     fb.CacheName,
			"cacheMode":         "PARTITIONED",
			"atomicityMode":     "ATOMIC",
			model.FieldClusters: []string{fb.ClusterID},
			model.FieldDomains:  []string{},
		}
	})
	if err != nil {
		return fb, err
	}
	fb.CacheID = cache.ID()

	if !contains(cluster.Refs(model.FieldCaches), fb.CacheID) && contains(cache.Refs(model.FieldClusters), fb.ClusterID) {
		if err := e.store.UpdateFields(ctx, model.Clusters, fb.ClusterID, registrystore.AddToSet(model.FieldCaches, fb.CacheID)); err != nil {
			return fb, fmt.Errorf("link fallback cache to fallback cluster: %w", err)
		}
	}
	return fb, nil
}

func (e *Engine) ensure(ctx context.Context, rep *report.RunReport, coll model.Collection, name string, build func(id string) model.Document) (model.Document, error) {
	doc, err := e.store.FindOne(ctx, coll, registrystore.ByName(name))
	if err == nil {
		e.log.Debug("Using existing fallback", "entity", coll.Entity(), "name", name, "id", doc.ID())
		return doc, nil
	}
	if !registrystore.IsNotFound(err) {
		return nil, fmt.Errorf("look up fallback %s %q: %w", coll.Entity(), name, err)
	}

	doc = build(e.store.NewID())
	id, err := e.store.Insert(ctx, coll, doc)
	if err != nil {
		return nil, fmt.Errorf("create fallback %s %q: %w", coll.Entity(), name, err)
	}
	doc[model.FieldID] = id
	e.log.Info("Created fallback", "entity", coll.Entity(), "name", name, "id", id)
	rep.Counts(coll).Provisioned++
	rep.AddRepair(coll, id, name, "provision", "lost-and-found")
	return doc, nil
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
