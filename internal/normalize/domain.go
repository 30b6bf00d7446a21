package normalize

import (
	"fmt"

	"github.com/chirino/console-migrate/internal/model"
)

// CacheLookup returns the current state of a cache, or false when it does
// not exist.
type CacheLookup func(id string) (model.Document, bool)

// PlanDomainModel links a domain model to a cluster.
//
// Caches must be normalized first: ownership of a domain model that has a
// cache but no cluster is inferred from that cache's single owner.
func PlanDomainModel(domain model.Document, fallbacks Fallbacks, lookup CacheLookup) Plan {
	plan := newPlan(model.DomainModels, domain)
	domainID := domain.ID()
	caches := domain.Refs(model.FieldCaches)
	clusters := domain.Refs(model.FieldClusters)
	plan.State = Classify(caches)

	if len(caches) == 0 {
		plan.Action = ActionAttach
		toCluster := Branch{
			Owner:  fallbacks.ClusterID,
			Target: domainID,
			Steps: []Step{
				addRef(model.Clusters, fallbacks.ClusterID, model.FieldModels, domainID),
				setRefs(model.DomainModels, domainID, model.FieldClusters, fallbacks.ClusterID),
			},
		}
		for _, old := range clusters {
			if old != fallbacks.ClusterID {
				toCluster.Steps = append(toCluster.Steps, pullRef(model.Clusters, old, model.FieldModels, domainID))
			}
		}
		toCache := Branch{
			Owner:  fallbacks.CacheID,
			Target: domainID,
			Steps: []Step{
				addRef(model.Caches, fallbacks.CacheID, model.FieldDomains, domainID),
				setRefs(model.DomainModels, domainID, model.FieldCaches, fallbacks.CacheID),
			},
		}
		plan.Branches = []Branch{toCluster, toCache}
		return plan
	}

	if len(clusters) > 0 {
		return plan
	}

	plan.Action = ActionInfer
	cache, ok := lookup(caches[0])
	if !ok {
		plan.Anomalies = append(plan.Anomalies, Anomaly{
			Collection: model.DomainModels,
			EntityID:   domainID,
			Message:    fmt.Sprintf("domain model references missing cache %s", caches[0]),
		})
		return plan
	}
	owners := cache.Refs(model.FieldClusters)
	if len(owners) == 0 {
		plan.Anomalies = append(plan.Anomalies, Anomaly{
			Collection: model.DomainModels,
			EntityID:   domainID,
			Message:    fmt.Sprintf("cache %s has no owning cluster", cache.Label()),
		})
		return plan
	}
	clusterID := owners[0]
	plan.Branches = []Branch{{
		Owner:  clusterID,
		Target: domainID,
		Steps: []Step{
			setRefs(model.DomainModels, domainID, model.FieldClusters, clusterID),
			addRef(model.Clusters, clusterID, model.FieldModels, domainID),
		},
	}}
	return plan
}
