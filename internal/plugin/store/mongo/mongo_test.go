package mongo_test

import (
	"context"
	"testing"

	"github.com/chirino/console-migrate/internal/config"
	"github.com/chirino/console-migrate/internal/plugin/store/mongo"
	registrymigrate "github.com/chirino/console-migrate/internal/registry/migrate"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/chirino/console-migrate/internal/testutil/storetest"
	"github.com/chirino/console-migrate/internal/testutil/testmongo"
	"github.com/stretchr/testify/require"
)

func TestMongoStore(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	uri := testmongo.StartMongo(t)

	// Ensure mongo store plugin is registered
	_ = mongo.ForceImport

	storetest.Run(t, func(t *testing.T) registrystore.DocumentStore {
		cfg := config.DefaultConfig()
		cfg.DBURL = uri
		cfg.DBName = testmongo.DatabaseName()
		cfg.DatastoreType = "mongo"
		ctx := config.WithContext(context.Background(), &cfg)

		require.NoError(t, registrymigrate.RunAll(ctx))

		loader, err := registrystore.Select("mongo")
		require.NoError(t, err)
		store, err := loader(ctx)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close(context.Background()) })
		return store
	})
}
