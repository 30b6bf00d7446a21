package metrics_test

import (
	"context"
	"testing"

	appmetrics "github.com/chirino/console-migrate/internal/metrics"
	"github.com/chirino/console-migrate/internal/model"
	"github.com/chirino/console-migrate/internal/plugin/store/memory"
	"github.com/chirino/console-migrate/internal/plugin/store/metrics"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestWrapRecordsLatency(t *testing.T) {
	appmetrics.InitMetrics(nil)
	ctx := context.Background()
	store := metrics.Wrap(memory.New())

	before := testutil.CollectAndCount(appmetrics.StoreLatency)

	id, err := store.Insert(ctx, model.Caches, model.Document{"name": "orders"})
	require.NoError(t, err)
	_, err = store.FindAll(ctx, model.Caches)
	require.NoError(t, err)
	require.NoError(t, store.UpdateFields(ctx, model.Caches, id, registrystore.SetField("name", "renamed")))
	doc, err := store.FindOne(ctx, model.Caches, registrystore.ByID(id))
	require.NoError(t, err)
	require.Equal(t, "renamed", doc.Name())

	// One series per (operation, collection).
	require.Equal(t, before+4, testutil.CollectAndCount(appmetrics.StoreLatency))
}
