package model_test

import (
	"testing"

	"github.com/chirino/console-migrate/internal/model"
	"github.com/stretchr/testify/require"
)

func TestDocumentRefs(t *testing.T) {
	doc := model.Document{
		model.FieldID:       "c1",
		model.FieldClusters: []any{"A", nil, "B"},
		model.FieldDomains:  []string{"d1"},
	}
	require.Equal(t, []string{"A", "B"}, doc.Refs(model.FieldClusters))
	require.Equal(t, []string{"d1"}, doc.Refs(model.FieldDomains))
	require.Equal(t, []string{}, doc.Refs(model.FieldCaches))
	require.Equal(t, "c1", doc.Label())

	doc[model.FieldName] = "orders"
	require.Equal(t, "orders", doc.Label())
}

func TestDocumentCloneIsDeep(t *testing.T) {
	doc := model.Document{
		model.FieldID:           "c1",
		model.FieldClusters:     []any{"A"},
		model.FieldStoreFactory: map[string]any{"kind": "CacheJdbcPojoStoreFactory"},
	}
	clone, err := doc.Clone()
	require.NoError(t, err)
	require.Equal(t, doc, clone)

	clone[model.FieldClusters].([]any)[0] = "B"
	clone[model.FieldStoreFactory].(map[string]any)["kind"] = "other"
	require.Equal(t, []string{"A"}, doc.Refs(model.FieldClusters))
	require.Equal(t, "CacheJdbcPojoStoreFactory", doc[model.FieldStoreFactory].(map[string]any)["kind"])
}

func TestStripNullStoreFactoryKind(t *testing.T) {
	doc := model.Document{model.FieldStoreFactory: map[string]any{"kind": nil, "jdbc": map[string]any{}}}
	require.True(t, model.StripNullStoreFactoryKind(doc))
	require.NotContains(t, doc[model.FieldStoreFactory], "kind")
	require.Contains(t, doc[model.FieldStoreFactory], "jdbc")

	doc = model.Document{model.FieldStoreFactory: map[string]any{"kind": "CacheHibernateBlobStoreFactory"}}
	require.False(t, model.StripNullStoreFactoryKind(doc))
	require.Contains(t, doc[model.FieldStoreFactory], "kind")

	require.False(t, model.StripNullStoreFactoryKind(model.Document{}))
}

func TestIsRefField(t *testing.T) {
	require.True(t, model.IsRefField(model.FieldID))
	require.True(t, model.IsRefField(model.FieldModels))
	require.False(t, model.IsRefField(model.FieldName))
}
