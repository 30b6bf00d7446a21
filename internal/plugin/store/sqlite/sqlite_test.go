package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chirino/console-migrate/internal/config"
	"github.com/chirino/console-migrate/internal/plugin/store/sqlite"
	registrymigrate "github.com/chirino/console-migrate/internal/registry/migrate"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/chirino/console-migrate/internal/testutil/storetest"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	_ = sqlite.ForceImport

	storetest.Run(t, func(t *testing.T) registrystore.DocumentStore {
		cfg := config.DefaultConfig()
		cfg.DatastoreType = "sqlite"
		cfg.DBURL = filepath.Join(t.TempDir(), "console.db")
		ctx := config.WithContext(context.Background(), &cfg)

		require.NoError(t, registrymigrate.RunAll(ctx))

		loader, err := registrystore.Select("sqlite")
		require.NoError(t, err)
		store, err := loader(ctx)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close(context.Background()) })
		return store
	})
}

func TestSchemaMigrateDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DatastoreType = "sqlite"
	cfg.SchemaMigrate = false
	cfg.DBURL = filepath.Join(t.TempDir(), "console.db")
	ctx := config.WithContext(context.Background(), &cfg)
	require.NoError(t, registrymigrate.RunAll(ctx))

	loader, err := registrystore.Select("sqlite")
	require.NoError(t, err)
	store, err := loader(ctx)
	require.NoError(t, err)
	defer store.Close(ctx)

	_, err = store.FindAll(ctx, "caches")
	require.Error(t, err, "table must not exist without the schema migration")
}
