package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/chirino/console-migrate/internal/model"
	"github.com/chirino/console-migrate/internal/report"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sample() *report.RunReport {
	r := report.New()
	r.Counts(model.Caches).Attached++
	r.AddRepair(model.Caches, "c1", "orders", "attach", "lost-and-found")
	r.Counts(model.Caches).Cloned++
	r.AddRepair(model.Caches, "c9", "invoices", "clone", "copy of c2 for cluster B")
	r.AddFailure(model.Filesystems, "f1", errors.New("write timeout"))
	r.Finish()
	return r
}

func TestAddFailureCounts(t *testing.T) {
	r := sample()
	require.True(t, r.HasFailures())
	require.Equal(t, 1, r.Counts(model.Filesystems).Failed)
	require.Contains(t, r.Summary(), "attached=1")
	require.Contains(t, r.Summary(), "failures=1")
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sample().Render(&buf, report.FormatText))
	out := buf.String()
	require.Contains(t, out, "COLLECTION")
	require.Contains(t, out, "orders")
	require.Contains(t, out, "write timeout")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sample().Render(&buf, report.FormatJSON))

	var decoded struct {
		Collections map[string]report.Counts `json:"collections"`
		Failures    []report.Failure          `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, 1, decoded.Collections["caches"].Attached)
	require.Len(t, decoded.Failures, 1)
	require.Equal(t, "f1", decoded.Failures[0].EntityID)
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sample().Render(&buf, report.FormatYAML))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Contains(t, decoded, "repairs")
}

func TestRenderUnknownFormat(t *testing.T) {
	require.Error(t, sample().Render(&bytes.Buffer{}, "xml"))
}

func TestQuery(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sample().Query(&buf, `[.repairs[] | select(.action == "clone") | .entityId]`))
	require.Equal(t, `["c9"]`, strings.TrimSpace(buf.String()))

	buf.Reset()
	require.NoError(t, sample().Query(&buf, `.collections.caches.cloned`))
	require.Equal(t, "1", strings.TrimSpace(buf.String()))

	require.Error(t, sample().Query(&buf, `.[`))
}

func TestDiff(t *testing.T) {
	before := report.Snapshot{
		model.Caches: {
			{"_id": "c1", "name": "orders", "clusters": []any{"A", "B"}},
			{"_id": "c2", "name": "same", "clusters": []any{"A"}},
		},
	}
	after := report.Snapshot{
		model.Caches: {
			{"_id": "c1", "name": "orders", "clusters": []any{"A"}},
			{"_id": "c2", "name": "same", "clusters": []any{"A"}},
			{"_id": "c3", "name": "orders", "clusters": []any{"B"}},
		},
	}
	diff, err := report.Diff(before, after)
	require.NoError(t, err)
	require.Contains(t, diff, "--- a/caches/c1")
	require.Contains(t, diff, "+++ b/caches/c1")
	require.Contains(t, diff, "--- /dev/null")
	require.Contains(t, diff, "+++ b/caches/c3")
	require.NotContains(t, diff, "caches/c2")

	diff, err = report.Diff(before, before)
	require.NoError(t, err)
	require.Empty(t, diff)
}
