package postgres_test

import (
	"context"
	"testing"

	"github.com/chirino/console-migrate/internal/config"
	"github.com/chirino/console-migrate/internal/plugin/store/postgres"
	registrymigrate "github.com/chirino/console-migrate/internal/registry/migrate"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/chirino/console-migrate/internal/testutil/storetest"
	"github.com/chirino/console-migrate/internal/testutil/testpg"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T, cfg *config.Config) registrystore.DocumentStore {
	t.Helper()
	ctx := config.WithContext(context.Background(), cfg)

	testpg.Truncate(t, cfg.DBURL, "config_documents")

	loader, err := registrystore.Select("postgres")
	require.NoError(t, err)
	store, err := loader(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	dbURL := testpg.StartPostgres(t)

	cfg := config.DefaultConfig()
	cfg.DBURL = dbURL
	cfg.DatastoreType = "postgres"
	ctx := config.WithContext(context.Background(), &cfg)

	// Ensure postgres store plugin is registered
	_ = postgres.ForceImport

	// Run migrations twice: the schema must be re-runnable.
	require.NoError(t, registrymigrate.RunAll(ctx))
	require.NoError(t, registrymigrate.RunAll(ctx))

	storetest.Run(t, func(t *testing.T) registrystore.DocumentStore {
		return setupTestStore(t, &cfg)
	})
}
