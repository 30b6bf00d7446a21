package bdd

import (
	"context"
	"testing"

	"github.com/chirino/console-migrate/internal/config"
	"github.com/chirino/console-migrate/internal/plugin/store/mongo"
	registrymigrate "github.com/chirino/console-migrate/internal/registry/migrate"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/chirino/console-migrate/internal/testutil/testmongo"
)

func TestFeaturesMongo(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	_ = mongo.ForceImport

	uri := testmongo.StartMongo(t)

	runFeatures(t, func(ctx context.Context) (registrystore.DocumentStore, error) {
		// Each scenario gets its own database.
		cfg := config.DefaultConfig()
		cfg.DBURL = uri
		cfg.DBName = testmongo.DatabaseName()
		cfg.DatastoreType = "mongo"
		ctx = config.WithContext(ctx, &cfg)
		if err := registrymigrate.RunAll(ctx); err != nil {
			return nil, err
		}
		loader, err := registrystore.Select("mongo")
		if err != nil {
			return nil, err
		}
		return loader(ctx)
	}, uri)
}
