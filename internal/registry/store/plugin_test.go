package store_test

import (
	"fmt"
	"testing"

	"github.com/chirino/console-migrate/internal/model"
	"github.com/chirino/console-migrate/internal/registry/store"
	"github.com/stretchr/testify/require"
)

func TestPatchApply(t *testing.T) {
	doc := model.Document{
		model.FieldID:     "A",
		model.FieldCaches: []any{"c1", "c2"},
	}

	store.AddToSet(model.FieldCaches, "c2", "c3").Apply(doc)
	require.Equal(t, []string{"c1", "c2", "c3"}, doc.Refs(model.FieldCaches))

	store.Pull(model.FieldCaches, "c1", "missing").Apply(doc)
	require.Equal(t, []string{"c2", "c3"}, doc.Refs(model.FieldCaches))

	store.AddToSet(model.FieldModels, "d1").Apply(doc)
	require.Equal(t, []string{"d1"}, doc.Refs(model.FieldModels))

	store.SetField(model.FieldName, "renamed").Apply(doc)
	require.Equal(t, "renamed", doc.Name())
}

func TestPatchIsEmpty(t *testing.T) {
	require.True(t, store.Patch{}.IsEmpty())
	require.False(t, store.Pull(model.FieldCaches, "c1").IsEmpty())
}

func TestErrors(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &store.NotFoundError{Collection: model.Caches, ID: "c1"})
	require.True(t, store.IsNotFound(err))
	require.EqualError(t, &store.NotFoundError{Collection: model.Caches, ID: "c1"}, "cache not found: c1")
	require.False(t, store.IsNotFound(&store.ConflictError{Collection: model.Caches, ID: "c1"}))
}

func TestSelectUnknown(t *testing.T) {
	_, err := store.Select("does-not-exist")
	require.Error(t, err)
}
