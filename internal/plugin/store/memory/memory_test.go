package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/chirino/console-migrate/internal/model"
	"github.com/chirino/console-migrate/internal/plugin/store/memory"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/stretchr/testify/require"
)

func TestInsertAndFind(t *testing.T) {
	ctx := context.Background()
	s := memory.New(memory.WithIDGenerator(func() string { return "generated" }))

	id, err := s.Insert(ctx, model.Caches, model.Document{"name": "orders"})
	require.NoError(t, err)
	require.Equal(t, "generated", id)

	doc, err := s.FindOne(ctx, model.Caches, registrystore.ByName("orders"))
	require.NoError(t, err)
	require.Equal(t, "generated", doc.ID())

	_, err = s.Insert(ctx, model.Caches, model.Document{"_id": "generated"})
	var conflict *registrystore.ConflictError
	require.True(t, errors.As(err, &conflict))

	_, err = s.FindOne(ctx, model.Caches, registrystore.ByID("missing"))
	require.True(t, registrystore.IsNotFound(err))
}

func TestDocumentsAreCopied(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	doc := model.Document{"_id": "c1", "clusters": []any{"A"}}
	require.NoError(t, s.Seed(model.Caches, doc))

	doc["clusters"].([]any)[0] = "mutated"
	got, err := s.FindOne(ctx, model.Caches, registrystore.ByID("c1"))
	require.NoError(t, err)
	require.Equal(t, []string{"A"}, got.Refs(model.FieldClusters))

	got["clusters"] = []any{"B"}
	require.Equal(t, []string{"A"}, s.Get(model.Caches, "c1").Refs(model.FieldClusters))
}

func TestUpdateFields(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Seed(model.Clusters, model.Document{"_id": "A", "caches": []any{"c1"}}))

	require.NoError(t, s.UpdateFields(ctx, model.Clusters, "A", registrystore.AddToSet(model.FieldCaches, "c1", "c2")))
	require.NoError(t, s.UpdateFields(ctx, model.Clusters, "A", registrystore.Pull(model.FieldCaches, "c1")))
	require.Equal(t, []string{"c2"}, s.Get(model.Clusters, "A").Refs(model.FieldCaches))

	err := s.UpdateFields(ctx, model.Clusters, "missing", registrystore.SetField("name", "x"))
	require.True(t, registrystore.IsNotFound(err))
}

func TestFindAllKeepsInsertionOrder(t *testing.T) {
	s := memory.New()
	require.NoError(t, s.Seed(model.Caches,
		model.Document{"_id": "z"},
		model.Document{"_id": "a"},
		model.Document{"_id": "m"},
	))
	docs, err := s.FindAll(context.Background(), model.Caches)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	require.Equal(t, "z", docs[0].ID())
	require.Equal(t, "a", docs[1].ID())
	require.Equal(t, "m", docs[2].ID())
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := memory.New().FindAll(ctx, model.Caches)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRegistered(t *testing.T) {
	loader, err := registrystore.Select("memory")
	require.NoError(t, err)
	s, err := loader(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, s.NewID())
}
