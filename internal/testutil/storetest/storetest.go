// Package storetest is a behavioural suite every DocumentStore backend must
// pass, ending with a full migration run checked by the verifier.
package storetest

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/chirino/console-migrate/internal/migration"
	"github.com/chirino/console-migrate/internal/model"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/chirino/console-migrate/internal/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Opener returns an empty store. It is called once per sub-test.
type Opener func(t *testing.T) registrystore.DocumentStore

// Run executes the suite against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("InsertAndFind", func(t *testing.T) { testInsertAndFind(t, open(t)) })
	t.Run("Patch", func(t *testing.T) { testPatch(t, open(t)) })
	t.Run("Errors", func(t *testing.T) { testErrors(t, open(t)) })
	t.Run("Migration", func(t *testing.T) { testMigration(t, open(t)) })
}

func testInsertAndFind(t *testing.T, s registrystore.DocumentStore) {
	ctx := context.Background()
	id := s.NewID()
	require.NotEmpty(t, id)

	got, err := s.Insert(ctx, model.Caches, model.Document{
		model.FieldID:       id,
		model.FieldName:     "orders",
		model.FieldClusters: []string{},
		"cacheMode":         "PARTITIONED",
		"cacheStoreFactory": map[string]any{"kind": "CacheJdbcPojoStoreFactory"},
	})
	require.NoError(t, err)
	require.Equal(t, id, got)

	generated, err := s.Insert(ctx, model.Caches, model.Document{model.FieldName: "invoices"})
	require.NoError(t, err)
	require.NotEmpty(t, generated)
	require.NotEqual(t, id, generated)

	docs, err := s.FindAll(ctx, model.Caches)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	byID, err := s.FindOne(ctx, model.Caches, registrystore.ByID(id))
	require.NoError(t, err)
	assert.Equal(t, "orders", byID.Name())
	assert.Equal(t, "PARTITIONED", byID["cacheMode"])
	assert.Equal(t, "CacheJdbcPojoStoreFactory", byID["cacheStoreFactory"].(map[string]any)["kind"])
	assert.Empty(t, byID.Refs(model.FieldClusters))

	byName, err := s.FindOne(ctx, model.Caches, registrystore.ByName("invoices"))
	require.NoError(t, err)
	assert.Equal(t, generated, byName.ID())
}

func testPatch(t *testing.T, s registrystore.DocumentStore) {
	ctx := context.Background()
	cluster, c1, c2 := s.NewID(), s.NewID(), s.NewID()

	_, err := s.Insert(ctx, model.Clusters, model.Document{
		model.FieldID:     cluster,
		model.FieldName:   "prod",
		model.FieldCaches: []string{c1, c1},
	})
	require.NoError(t, err)

	require.NoError(t, s.UpdateFields(ctx, model.Clusters, cluster, registrystore.SetField(model.FieldCaches, []string{c1})))
	require.NoError(t, s.UpdateFields(ctx, model.Clusters, cluster, registrystore.AddToSet(model.FieldCaches, c1, c2)))

	doc, err := s.FindOne(ctx, model.Clusters, registrystore.ByID(cluster))
	require.NoError(t, err)
	require.Equal(t, []string{c1, c2}, doc.Refs(model.FieldCaches))

	require.NoError(t, s.UpdateFields(ctx, model.Clusters, cluster, registrystore.Pull(model.FieldCaches, c1)))
	require.NoError(t, s.UpdateFields(ctx, model.Clusters, cluster, registrystore.AddToSet(model.FieldModels, c2)))

	doc, err = s.FindOne(ctx, model.Clusters, registrystore.ByID(cluster))
	require.NoError(t, err)
	require.Equal(t, []string{c2}, doc.Refs(model.FieldCaches))
	require.Equal(t, []string{c2}, doc.Refs(model.FieldModels))
	require.Equal(t, "prod", doc.Name())
}

func testErrors(t *testing.T, s registrystore.DocumentStore) {
	ctx := context.Background()
	missing := s.NewID()

	_, err := s.FindOne(ctx, model.Clusters, registrystore.ByID(missing))
	require.True(t, registrystore.IsNotFound(err), "got %v", err)

	_, err = s.FindOne(ctx, model.Clusters, registrystore.ByName("nope"))
	require.True(t, registrystore.IsNotFound(err), "got %v", err)

	err = s.UpdateFields(ctx, model.Clusters, missing, registrystore.AddToSet(model.FieldCaches, s.NewID()))
	require.True(t, registrystore.IsNotFound(err), "got %v", err)

	id := s.NewID()
	_, err = s.Insert(ctx, model.Clusters, model.Document{model.FieldID: id})
	require.NoError(t, err)
	_, err = s.Insert(ctx, model.Clusters, model.Document{model.FieldID: id})
	var conflict *registrystore.ConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
}

func testMigration(t *testing.T, s registrystore.DocumentStore) {
	ctx := context.Background()
	a, b := s.NewID(), s.NewID()
	orphan, shared := s.NewID(), s.NewID()
	d1 := s.NewID()
	fs := s.NewID()

	insert := func(c model.Collection, doc model.Document) {
		t.Helper()
		_, err := s.Insert(ctx, c, doc)
		require.NoError(t, err)
	}
	insert(model.Clusters, model.Document{model.FieldID: a, model.FieldName: "A",
		model.FieldCaches: []string{shared, shared}, model.FieldIgfss: []string{fs}, model.FieldModels: []string{d1}})
	insert(model.Clusters, model.Document{model.FieldID: b, model.FieldName: "B",
		model.FieldCaches: []string{shared}, model.FieldIgfss: []string{fs}})
	insert(model.Caches, model.Document{model.FieldID: orphan, model.FieldName: "orphan", model.FieldClusters: []string{}})
	insert(model.Caches, model.Document{model.FieldID: shared, model.FieldName: "shared",
		model.FieldClusters: []string{a, b}, model.FieldDomains: []string{d1}, "cacheMode": "REPLICATED"})
	insert(model.DomainModels, model.Document{model.FieldID: d1, "valueType": "Order",
		model.FieldCaches: []string{shared}, model.FieldClusters: []string{a}})
	insert(model.Filesystems, model.Document{model.FieldID: fs, model.FieldName: "igfs", model.FieldClusters: []string{a, b}})

	engine := migration.New(s, migration.Options{Logger: log.New(io.Discard)})
	rep, err := engine.Run(ctx)
	require.NoError(t, err)
	require.False(t, rep.HasFailures(), "failures: %v", rep.Failures)
	assert.Equal(t, 1, rep.Counts(model.Caches).Attached)
	assert.Equal(t, 1, rep.Counts(model.Caches).Cloned)
	assert.Equal(t, 1, rep.Counts(model.DomainModels).Cloned)
	assert.Equal(t, 1, rep.Counts(model.Filesystems).Cloned)
	assert.Equal(t, 1, rep.Counts(model.Clusters).Deduplicated)

	snap, err := verify.Load(ctx, s)
	require.NoError(t, err)
	require.Empty(t, verify.Check(snap))

	again, err := engine.Run(ctx)
	require.NoError(t, err)
	require.Empty(t, again.Repairs, "second run must be a no-op")
}
