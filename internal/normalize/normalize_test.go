package normalize_test

import (
	"fmt"
	"testing"

	"github.com/chirino/console-migrate/internal/model"
	"github.com/chirino/console-migrate/internal/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fallbacks = normalize.Fallbacks{
	ClusterID:   "fb-cluster",
	ClusterName: "ClusterForMigration",
	CacheID:     "fb-cache",
	CacheName:   "CacheForMigration",
}

// sequence returns an id generator yielding new-1, new-2, ...
func sequence() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
}

func refs(ids ...string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func TestClassify(t *testing.T) {
	require.Equal(t, normalize.Unlinked, normalize.Classify(nil))
	require.Equal(t, normalize.SingleOwner, normalize.Classify([]string{"a"}))
	require.Equal(t, normalize.MultiOwner, normalize.Classify([]string{"a", "b"}))
	require.Equal(t, "multi-owner", normalize.MultiOwner.String())
}

func TestDedupe(t *testing.T) {
	doc := model.Document{model.FieldID: "c1", model.FieldCaches: refs("A", "A", "B", "A")}
	deduped, changed := normalize.Dedupe(doc, model.FieldCaches)
	require.True(t, changed)
	require.Equal(t, []string{"A", "B"}, deduped)

	doc = model.Document{model.FieldID: "c1", model.FieldCaches: refs("A", "B")}
	_, changed = normalize.Dedupe(doc, model.FieldCaches)
	require.False(t, changed, "already unique arrays must not be rewritten")

	_, changed = normalize.Dedupe(model.Document{model.FieldID: "c1"}, model.FieldCaches)
	require.False(t, changed)
}

func TestPlanCacheSingleOwnerIsNoop(t *testing.T) {
	cache := model.Document{model.FieldID: "c1", model.FieldClusters: refs("A")}
	plan, err := normalize.PlanCache(cache, normalize.CacheInput{Fallbacks: fallbacks, NewID: sequence()})
	require.NoError(t, err)
	require.True(t, plan.IsNoop())
	require.Equal(t, normalize.SingleOwner, plan.State)
	require.Equal(t, normalize.ActionNone, plan.Action)
}

func TestPlanCacheUnlinkedAttachesToFallback(t *testing.T) {
	cache := model.Document{
		model.FieldID:      "c1",
		model.FieldName:    "orders",
		model.FieldDomains: refs("d1"),
	}
	plan, err := normalize.PlanCache(cache, normalize.CacheInput{Fallbacks: fallbacks, NewID: sequence()})
	require.NoError(t, err)
	require.Equal(t, normalize.ActionAttach, plan.Action)
	require.Equal(t, "orders", plan.Name)
	require.Len(t, plan.Branches, 1)

	steps := plan.Branches[0].Steps
	require.Len(t, steps, 2)
	assert.Equal(t, model.Clusters, steps[0].Collection)
	assert.Equal(t, "fb-cluster", steps[0].ID)
	assert.Equal(t, []string{"c1"}, steps[0].Patch.AddToSet[model.FieldCaches])
	assert.Equal(t, []string{"fb-cluster"}, steps[1].Patch.Set[model.FieldClusters])

	// Domain models follow in their own branches so one bad id cannot undo the attach.
	require.Len(t, plan.Branches[0].Children, 1)
	child := plan.Branches[0].Children[0]
	assert.Equal(t, "d1", child.Target)
	require.Len(t, child.Steps, 2)
	assert.Equal(t, model.DomainModels, child.Steps[0].Collection)
	assert.Equal(t, []string{"fb-cluster"}, child.Steps[0].Patch.AddToSet[model.FieldClusters])
	assert.Equal(t, []string{"d1"}, child.Steps[1].Patch.AddToSet[model.FieldModels])
}

func TestPlanCacheMultiOwnerClonesPerCluster(t *testing.T) {
	cache := model.Document{
		model.FieldID:       "c2",
		model.FieldName:     "orders",
		model.FieldClusters: refs("A", "B", "C"),
		model.FieldDomains:  refs("d1"),
		"cacheMode":         "PARTITIONED",
		model.FieldStoreFactory: map[string]any{
			model.FieldKind: nil,
			"jdbc":          map[string]any{"dataSourceBean": "ds"},
		},
	}
	domain := model.Document{
		model.FieldID:       "d1",
		"valueType":         "Order",
		model.FieldCaches:   refs("c2"),
		model.FieldClusters: refs("A"),
	}
	in := normalize.CacheInput{
		Fallbacks: fallbacks,
		Domains:   map[string]model.Document{"d1": domain},
		NewID:     sequence(),
	}

	plan, err := normalize.PlanCache(cache, in)
	require.NoError(t, err)
	require.Equal(t, normalize.MultiOwner, plan.State)
	require.Equal(t, normalize.ActionClone, plan.Action)
	require.Empty(t, plan.Anomalies)
	require.Len(t, plan.Branches, 3)

	primary := plan.Branches[0]
	require.Equal(t, "A", primary.Owner)
	require.Equal(t, "c2", primary.Target)
	require.True(t, primary.Gate)
	require.Len(t, primary.Steps, 1)
	require.Equal(t, []string{"A"}, primary.Steps[0].Patch.Set[model.FieldClusters])

	for i, cluster := range []string{"B", "C"} {
		b := plan.Branches[i+1]
		require.Equal(t, cluster, b.Owner)
		require.Equal(t, "c2", b.Source)
		require.Equal(t, 1, b.Inserts())
		require.Len(t, b.Steps, 3)

		require.Equal(t, []string{"c2"}, b.Steps[0].Patch.Pull[model.FieldCaches])
		clone := b.Steps[1].Insert
		require.NotNil(t, clone)
		require.Equal(t, b.Target, clone.ID())
		require.Equal(t, []string{cluster}, clone.Refs(model.FieldClusters))
		require.Empty(t, clone.Refs(model.FieldDomains))
		require.Equal(t, "orders", clone.Name())
		require.Equal(t, "PARTITIONED", clone["cacheMode"])
		factory := clone[model.FieldStoreFactory].(map[string]any)
		require.NotContains(t, factory, model.FieldKind)
		require.Contains(t, factory, "jdbc")
		require.Equal(t, []string{b.Target}, b.Steps[2].Patch.AddToSet[model.FieldCaches])

		require.Len(t, b.Children, 1)
		child := b.Children[0]
		require.Equal(t, "d1", child.Source)
		dclone := child.Steps[0].Insert
		require.Equal(t, "Order", dclone["valueType"])
		require.Equal(t, []string{b.Target}, dclone.Refs(model.FieldCaches))
		require.Equal(t, []string{cluster}, dclone.Refs(model.FieldClusters))
		require.Equal(t, []string{child.Target}, child.Steps[1].Patch.AddToSet[model.FieldModels])
		require.Equal(t, model.Caches, child.Steps[2].Collection)
		require.Equal(t, b.Target, child.Steps[2].ID)
	}

	// Every clone gets its own id.
	require.NotEqual(t, plan.Branches[1].Target, plan.Branches[2].Target)
	require.NotEqual(t, plan.Branches[1].Children[0].Target, plan.Branches[2].Children[0].Target)

	// The input document is never mutated.
	require.Equal(t, refs("A", "B", "C"), cache[model.FieldClusters])
	require.Contains(t, cache[model.FieldStoreFactory].(map[string]any), model.FieldKind)
}

func TestPlanCacheReportsMissingDomain(t *testing.T) {
	cache := model.Document{
		model.FieldID:       "c2",
		model.FieldClusters: refs("A", "B"),
		model.FieldDomains:  refs("gone", "failed"),
	}
	in := normalize.CacheInput{
		Fallbacks: fallbacks,
		Domains:   map[string]model.Document{"failed": nil},
		NewID:     sequence(),
	}
	plan, err := normalize.PlanCache(cache, in)
	require.NoError(t, err)
	require.Len(t, plan.Anomalies, 1)
	require.Equal(t, "gone", plan.Anomalies[0].EntityID)
	require.Len(t, plan.Branches, 2)
	require.Empty(t, plan.Branches[1].Children)
}

func TestPlanFilesystem(t *testing.T) {
	fs := model.Document{model.FieldID: "f1", model.FieldName: "igfs"}
	plan, err := normalize.PlanFilesystem(fs, fallbacks, sequence())
	require.NoError(t, err)
	require.Equal(t, normalize.ActionAttach, plan.Action)
	require.Equal(t, []string{"f1"}, plan.Branches[0].Steps[0].Patch.AddToSet[model.FieldIgfss])

	fs[model.FieldClusters] = refs("A")
	plan, err = normalize.PlanFilesystem(fs, fallbacks, sequence())
	require.NoError(t, err)
	require.True(t, plan.IsNoop())

	fs[model.FieldClusters] = refs("A", "B")
	plan, err = normalize.PlanFilesystem(fs, fallbacks, sequence())
	require.NoError(t, err)
	require.Equal(t, normalize.ActionClone, plan.Action)
	require.Len(t, plan.Branches, 2)
	require.True(t, plan.Branches[0].Gate)
	require.False(t, plan.Branches[1].Gate)
	clone := plan.Branches[1].Steps[1].Insert
	require.Equal(t, "new-1", clone.ID())
	require.Equal(t, "igfs", clone.Name())
	require.Equal(t, []string{"B"}, clone.Refs(model.FieldClusters))
	require.Empty(t, plan.Branches[1].Children)
}

func TestPlanDomainModelOrphan(t *testing.T) {
	domain := model.Document{model.FieldID: "d1", model.FieldClusters: refs("old")}
	plan := normalize.PlanDomainModel(domain, fallbacks, nil)
	require.Equal(t, normalize.ActionAttach, plan.Action)
	require.Len(t, plan.Branches, 2)

	toCluster := plan.Branches[0]
	require.Equal(t, "fb-cluster", toCluster.Owner)
	require.Equal(t, []string{"fb-cluster"}, toCluster.Steps[1].Patch.Set[model.FieldClusters])
	require.Len(t, toCluster.Steps, 3)
	require.Equal(t, "old", toCluster.Steps[2].ID)
	require.Equal(t, []string{"d1"}, toCluster.Steps[2].Patch.Pull[model.FieldModels])

	toCache := plan.Branches[1]
	require.Equal(t, "fb-cache", toCache.Owner)
	require.Equal(t, []string{"d1"}, toCache.Steps[0].Patch.AddToSet[model.FieldDomains])
	require.Equal(t, []string{"fb-cache"}, toCache.Steps[1].Patch.Set[model.FieldCaches])
}

func TestPlanDomainModelInfersFromCache(t *testing.T) {
	domain := model.Document{model.FieldID: "d1", model.FieldCaches: refs("X")}
	lookup := func(id string) (model.Document, bool) {
		require.Equal(t, "X", id)
		return model.Document{model.FieldID: "X", model.FieldClusters: refs("Z")}, true
	}
	plan := normalize.PlanDomainModel(domain, fallbacks, lookup)
	require.Equal(t, normalize.ActionInfer, plan.Action)
	require.Len(t, plan.Branches, 1)
	require.Equal(t, "Z", plan.Branches[0].Owner)
	require.Equal(t, []string{"Z"}, plan.Branches[0].Steps[0].Patch.Set[model.FieldClusters])
	require.Equal(t, []string{"d1"}, plan.Branches[0].Steps[1].Patch.AddToSet[model.FieldModels])
}

func TestPlanDomainModelAnomalies(t *testing.T) {
	domain := model.Document{model.FieldID: "d1", model.FieldCaches: refs("X")}

	missing := func(string) (model.Document, bool) { return nil, false }
	plan := normalize.PlanDomainModel(domain, fallbacks, missing)
	require.True(t, plan.IsNoop())
	require.Len(t, plan.Anomalies, 1)
	require.Contains(t, plan.Anomalies[0].Message, "missing cache X")

	ownerless := func(string) (model.Document, bool) { return model.Document{model.FieldID: "X"}, true }
	plan = normalize.PlanDomainModel(domain, fallbacks, ownerless)
	require.True(t, plan.IsNoop())
	require.Len(t, plan.Anomalies, 1)
}

func TestPlanDomainModelLinkedIsNoop(t *testing.T) {
	domain := model.Document{model.FieldID: "d1", model.FieldCaches: refs("X"), model.FieldClusters: refs("Z")}
	plan := normalize.PlanDomainModel(domain, fallbacks, nil)
	require.True(t, plan.IsNoop())
	require.Empty(t, plan.Anomalies)
}
