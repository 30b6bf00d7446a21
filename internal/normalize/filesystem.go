package normalize

import "github.com/chirino/console-migrate/internal/model"

// PlanFilesystem decides how to give an IGFS exactly one owning cluster.
// It follows PlanCache without the domain model cascade.
func PlanFilesystem(fs model.Document, fallbacks Fallbacks, newID func() string) (Plan, error) {
	plan := newPlan(model.Filesystems, fs)
	owners := fs.Refs(model.FieldClusters)
	plan.State = Classify(owners)
	fsID := fs.ID()

	switch plan.State {
	case Unlinked:
		plan.Action = ActionAttach
		plan.Branches = []Branch{{
			Owner:  fallbacks.ClusterID,
			Target: fsID,
			Steps: []Step{
				addRef(model.Clusters, fallbacks.ClusterID, model.FieldIgfss, fsID),
				setRefs(model.Filesystems, fsID, model.FieldClusters, fallbacks.ClusterID),
			},
		}}
		return plan, nil
	case SingleOwner:
		return plan, nil
	}

	plan.Action = ActionClone
	primary := owners[0]
	plan.Branches = append(plan.Branches, Branch{
		Owner:  primary,
		Target: fsID,
		Gate:   true,
		Steps:  []Step{setRefs(model.Filesystems, fsID, model.FieldClusters, primary)},
	})

	payload, err := fs.Clone()
	if err != nil {
		return plan, err
	}
	delete(payload, model.FieldID)

	for _, cluster := range owners[1:] {
		clone, err := payload.Clone()
		if err != nil {
			return plan, err
		}
		cloneID := newID()
		clone[model.FieldID] = cloneID
		clone[model.FieldClusters] = []string{cluster}
		plan.Branches = append(plan.Branches, Branch{
			Owner:  cluster,
			Target: cloneID,
			Source: fsID,
			Steps: []Step{
				pullRef(model.Clusters, cluster, model.FieldIgfss, fsID),
				insert(model.Filesystems, clone),
				addRef(model.Clusters, cluster, model.FieldIgfss, cloneID),
			},
		})
	}
	return plan, nil
}
