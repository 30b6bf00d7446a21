package bdd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chirino/console-migrate/internal/plugin/store/memory"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/chirino/console-migrate/internal/testutil/cucumber"
	"github.com/cucumber/godog"
	"github.com/stretchr/testify/require"
)

func TestFeatures(t *testing.T) {
	runFeatures(t, func(ctx context.Context) (registrystore.DocumentStore, error) {
		return memory.New(), nil
	}, nil)
}

func runFeatures(t *testing.T, open cucumber.OpenStore, appContext interface{}) {
	featureFiles, err := filepath.Glob(filepath.Join("features", "*.feature"))
	require.NoError(t, err)
	require.NotEmpty(t, featureFiles, "No feature files found in features/")

	// Configure godog options
	opts := cucumber.DefaultOptions()
	for _, arg := range os.Args[1:] {
		if arg == "-test.v=true" || arg == "-test.v" || arg == "-v" {
			opts.Format = "pretty"
		}
	}

	for _, featurePath := range featureFiles {
		name := strings.TrimSuffix(filepath.Base(featurePath), ".feature")
		t.Run(name, func(t *testing.T) {
			o := opts
			o.TestingT = t
			o.Paths = []string{featurePath}
			defer cucumber.ApplyReportOptions(&o, t.Name())()

			suite := cucumber.NewTestSuite()
			suite.TestingT = t
			suite.Context = appContext
			suite.Open = open

			status := godog.TestSuite{
				Name:                name,
				Options:             &o,
				ScenarioInitializer: suite.InitializeScenario,
			}.Run()
			if status != 0 {
				t.Fail()
			}
		})
	}
}
