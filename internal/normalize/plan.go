// Package normalize computes the repairs that turn many-to-many configuration
// links into single-owner links. Planners are pure: they read documents that
// the caller already loaded and return ordered patch steps. Nothing here talks
// to a store.
package normalize

import (
	"github.com/chirino/console-migrate/internal/model"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
)

// State classifies an entity by the size of its owner set.
type State int

const (
	Unlinked State = iota
	SingleOwner
	MultiOwner
)

func (s State) String() string {
	switch s {
	case Unlinked:
		return "unlinked"
	case SingleOwner:
		return "single-owner"
	default:
		return "multi-owner"
	}
}

// Classify returns the state for an owner set.
func Classify(owners []string) State {
	switch len(owners) {
	case 0:
		return Unlinked
	case 1:
		return SingleOwner
	default:
		return MultiOwner
	}
}

// Action is the repair chosen for an entity.
type Action string

const (
	ActionNone   Action = "none"
	ActionAttach Action = "attach"
	ActionClone  Action = "clone"
	ActionInfer  Action = "infer"
)

// Fallbacks are the lost-and-found owners for orphaned entities.
type Fallbacks struct {
	ClusterID   string
	ClusterName string
	CacheID     string
	CacheName   string
}

// Step is a single store write. Insert is set for document creation,
// otherwise Patch is applied to (Collection, ID).
type Step struct {
	Collection model.Collection
	ID         string
	Patch      registrystore.Patch
	Insert     model.Document
}

// IsInsert reports whether the step creates a document.
func (s Step) IsInsert() bool { return s.Insert != nil }

// Branch is a unit of failure isolation. Steps run in order and the branch
// stops at the first failing step. Children run only when every step of the
// parent succeeded, and each child fails independently.
type Branch struct {
	// Owner is the cluster (or fallback cache) this branch links to.
	Owner string
	// Target is the entity the branch writes on behalf of; for clone branches
	// it is the id of the new document.
	Target string
	// Source is the entity copied by a clone branch; empty otherwise.
	Source string
	// Gate marks a branch the rest of the plan depends on. When it fails
	// the remaining branches are skipped and the entity keeps its state.
	Gate bool

	Steps    []Step
	Children []Branch
}

// Inserts counts the documents this branch creates, excluding children.
func (b Branch) Inserts() int {
	n := 0
	for _, s := range b.Steps {
		if s.IsInsert() {
			n++
		}
	}
	return n
}

// Anomaly is a structural problem found while planning. The affected item
// is left unrepaired.
type Anomaly struct {
	Collection model.Collection
	EntityID   string
	Message    string
}

// Plan is the repair for one entity.
type Plan struct {
	Collection model.Collection
	EntityID   string
	Name       string
	State      State
	Action     Action
	Branches   []Branch
	Anomalies  []Anomaly
}

// IsNoop reports whether the plan writes nothing.
func (p Plan) IsNoop() bool {
	return len(p.Branches) == 0
}

func newPlan(coll model.Collection, doc model.Document) Plan {
	return Plan{
		Collection: coll,
		EntityID:   doc.ID(),
		Name:       doc.Label(),
		Action:     ActionNone,
	}
}

func setRefs(coll model.Collection, id, field string, ids ...string) Step {
	if ids == nil {
		ids = []string{}
	}
	return Step{Collection: coll, ID: id, Patch: registrystore.SetField(field, ids)}
}

func addRef(coll model.Collection, id, field string, ids ...string) Step {
	return Step{Collection: coll, ID: id, Patch: registrystore.AddToSet(field, ids...)}
}

func pullRef(coll model.Collection, id, field string, ids ...string) Step {
	return Step{Collection: coll, ID: id, Patch: registrystore.Pull(field, ids...)}
}

func insert(coll model.Collection, doc model.Document) Step {
	return Step{Collection: coll, ID: doc.ID(), Insert: doc}
}
