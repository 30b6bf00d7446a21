package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingMigrator struct {
	name string
	ran  *[]string
	err  error
}

func (m *recordingMigrator) Name() string { return m.name }
func (m *recordingMigrator) Migrate(context.Context) error {
	*m.ran = append(*m.ran, m.name)
	return m.err
}

func withPlugins(t *testing.T, ps ...Plugin) {
	saved := plugins
	plugins = ps
	t.Cleanup(func() { plugins = saved })
}

func TestRunAllRunsInOrder(t *testing.T) {
	var ran []string
	withPlugins(t,
		Plugin{Order: 200, Migrator: &recordingMigrator{name: "indexes", ran: &ran}},
		Plugin{Order: 100, Migrator: &recordingMigrator{name: "tables", ran: &ran}},
	)

	require.NoError(t, RunAll(context.Background()))
	require.Equal(t, []string{"tables", "indexes"}, ran)
	require.Equal(t, []string{"tables", "indexes"}, Names())
}

func TestRunAllStopsAtFirstError(t *testing.T) {
	var ran []string
	withPlugins(t,
		Plugin{Order: 1, Migrator: &recordingMigrator{name: "broken", ran: &ran, err: errors.New("no connection")}},
		Plugin{Order: 2, Migrator: &recordingMigrator{name: "after", ran: &ran}},
	)

	err := RunAll(context.Background())
	require.ErrorContains(t, err, "migration broken failed: no connection")
	require.Equal(t, []string{"broken"}, ran)
}
