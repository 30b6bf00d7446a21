package normalize

import (
	"fmt"

	"github.com/chirino/console-migrate/internal/model"
)

// CacheInput is everything PlanCache needs besides the cache itself.
type CacheInput struct {
	Fallbacks Fallbacks
	// Domains holds the domain models referenced by the cache, keyed by id.
	// Ids missing from the map are reported as anomalies; ids mapped to nil
	// are skipped silently because the caller already reported them.
	Domains map[string]model.Document
	NewID   func() string
}

// PlanCache decides how to give a cache exactly one owning cluster.
//
// An unlinked cache is attached to the fallback cluster together with its
// domain models. A cache shared by several clusters stays with the first one
// and every other cluster gets its own copy, including copies of the domain
// models, so edits in one cluster no longer leak into another.
func PlanCache(cache model.Document, in CacheInput) (Plan, error) {
	plan := newPlan(model.Caches, cache)
	owners := cache.Refs(model.FieldClusters)
	plan.State = Classify(owners)

	switch plan.State {
	case Unlinked:
		plan.Action = ActionAttach
		plan.Branches = []Branch{attachCache(cache, in.Fallbacks.ClusterID)}
		return plan, nil
	case SingleOwner:
		return plan, nil
	}

	plan.Action = ActionClone
	cacheID := cache.ID()
	primary := owners[0]
	plan.Branches = append(plan.Branches, Branch{
		Owner:  primary,
		Target: cacheID,
		Gate:   true,
		Steps:  []Step{setRefs(model.Caches, cacheID, model.FieldClusters, primary)},
	})

	payload, err := cache.Clone()
	if err != nil {
		return plan, err
	}
	delete(payload, model.FieldID)
	payload[model.FieldClusters] = []string{}
	model.StripNullStoreFactoryKind(payload)

	domainIDs := cache.Refs(model.FieldDomains)
	for _, domainID := range domainIDs {
		if _, ok := in.Domains[domainID]; !ok {
			plan.Anomalies = append(plan.Anomalies, Anomaly{
				Collection: model.DomainModels,
				EntityID:   domainID,
				Message:    fmt.Sprintf("cache %s references missing domain model %s", cache.Label(), domainID),
			})
		}
	}

	for _, cluster := range owners[1:] {
		clone, err := payload.Clone()
		if err != nil {
			return plan, err
		}
		cloneID := in.NewID()
		clone[model.FieldID] = cloneID
		clone[model.FieldClusters] = []string{cluster}
		if len(domainIDs) > 0 {
			// Filled in as each domain model copy is created.
			clone[model.FieldDomains] = []string{}
		}

		branch := Branch{
			Owner:  cluster,
			Target: cloneID,
			Source: cacheID,
			Steps: []Step{
				pullRef(model.Clusters, cluster, model.FieldCaches, cacheID),
				insert(model.Caches, clone),
				addRef(model.Clusters, cluster, model.FieldCaches, cloneID),
			},
		}
		for _, domainID := range domainIDs {
			domain := in.Domains[domainID]
			if domain == nil {
				continue
			}
			child, err := cloneDomain(domain, cloneID, cluster, in.NewID())
			if err != nil {
				return plan, err
			}
			branch.Children = append(branch.Children, child)
		}
		plan.Branches = append(plan.Branches, branch)
	}
	return plan, nil
}

func attachCache(cache model.Document, clusterID string) Branch {
	cacheID := cache.ID()
	b := Branch{
		Owner:  clusterID,
		Target: cacheID,
		Steps: []Step{
			addRef(model.Clusters, clusterID, model.FieldCaches, cacheID),
			setRefs(model.Caches, cacheID, model.FieldClusters, clusterID),
		},
	}
	for _, domainID := range cache.Refs(model.FieldDomains) {
		b.Children = append(b.Children, Branch{
			Owner:  clusterID,
			Target: domainID,
			Steps: []Step{
				addRef(model.DomainModels, domainID, model.FieldClusters, clusterID),
				addRef(model.Clusters, clusterID, model.FieldModels, domainID),
			},
		})
	}
	return b
}

func cloneDomain(domain model.Document, cacheID, clusterID, newID string) (Branch, error) {
	clone, err := domain.Clone()
	if err != nil {
		return Branch{}, err
	}
	clone[model.FieldID] = newID
	clone[model.FieldCaches] = []string{cacheID}
	clone[model.FieldClusters] = []string{clusterID}
	return Branch{
		Owner:  clusterID,
		Target: newID,
		Source: domain.ID(),
		Steps: []Step{
			insert(model.DomainModels, clone),
			addRef(model.Clusters, clusterID, model.FieldModels, newID),
			addRef(model.Caches, cacheID, model.FieldDomains, newID),
		},
	}, nil
}
