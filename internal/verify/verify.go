// Package verify checks a configuration store against the single-owner
// invariants without writing anything.
package verify

import (
	"context"
	"fmt"
	"sort"

	"github.com/chirino/console-migrate/internal/model"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/chirino/console-migrate/internal/report"
)

// Rules.
const (
	RuleSingleOwner   = "single-owner"
	RuleBackReference = "back-reference"
	RuleDuplicate     = "duplicate"
	RuleDangling      = "dangling"
	RuleConsistency   = "consistency"
)

// Violation is one broken invariant.
type Violation struct {
	Collection model.Collection `json:"collection" yaml:"collection"`
	EntityID   string           `json:"entityId"   yaml:"entityId"`
	Rule       string           `json:"rule"       yaml:"rule"`
	Message    string           `json:"message"    yaml:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s [%s]: %s", v.Collection.Entity(), v.EntityID, v.Rule, v.Message)
}

// Load reads every collection from the store.
func Load(ctx context.Context, store registrystore.DocumentStore) (report.Snapshot, error) {
	snap := report.Snapshot{}
	for _, c := range model.Collections {
		docs, err := store.FindAll(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", c, err)
		}
		snap[c] = docs
	}
	return snap, nil
}

// link is one side of a bidirectional relationship.
type link struct {
	from      model.Collection
	fromField string
	to        model.Collection
	toField   string
}

var links = []link{
	{model.Clusters, model.FieldCaches, model.Caches, model.FieldClusters},
	{model.Caches, model.FieldClusters, model.Clusters, model.FieldCaches},
	{model.Clusters, model.FieldIgfss, model.Filesystems, model.FieldClusters},
	{model.Filesystems, model.FieldClusters, model.Clusters, model.FieldIgfss},
	{model.Clusters, model.FieldModels, model.DomainModels, model.FieldClusters},
	{model.DomainModels, model.FieldClusters, model.Clusters, model.FieldModels},
	{model.Caches, model.FieldDomains, model.DomainModels, model.FieldCaches},
	{model.DomainModels, model.FieldCaches, model.Caches, model.FieldDomains},
}

// Check returns every violation found in the snapshot, ordered by
// collection, id and rule.
func Check(snap report.Snapshot) []Violation {
	idx := map[model.Collection]map[string]model.Document{}
	for _, c := range model.Collections {
		idx[c] = map[string]model.Document{}
		for _, d := range snap[c] {
			idx[c][d.ID()] = d
		}
	}

	var out []Violation
	add := func(c model.Collection, id, rule, format string, args ...any) {
		out = append(out, Violation{Collection: c, EntityID: id, Rule: rule, Message: fmt.Sprintf(format, args...)})
	}

	fields := append([]model.RefField{}, model.DedupeFields...)
	fields = append(fields,
		model.RefField{Collection: model.Clusters, Field: model.FieldModels},
		model.RefField{Collection: model.DomainModels, Field: model.FieldClusters},
	)
	for _, f := range fields {
		for _, d := range snap[f.Collection] {
			seen := map[string]bool{}
			for _, ref := range d.Refs(f.Field) {
				if seen[ref] {
					add(f.Collection, d.ID(), RuleDuplicate, "%s lists %s more than once", f.Field, ref)
				}
				seen[ref] = true
			}
		}
	}

	for _, c := range []model.Collection{model.Caches, model.Filesystems, model.DomainModels} {
		for _, d := range snap[c] {
			if n := len(d.Refs(model.FieldClusters)); n != 1 {
				add(c, d.ID(), RuleSingleOwner, "linked to %d clusters", n)
			}
		}
	}

	for _, l := range links {
		for _, d := range snap[l.from] {
			for _, ref := range d.Refs(l.fromField) {
				target, ok := idx[l.to][ref]
				if !ok {
					add(l.from, d.ID(), RuleDangling, "%s references missing %s %s", l.fromField, l.to.Entity(), ref)
					continue
				}
				if !contains(target.Refs(l.toField), d.ID()) {
					add(l.from, d.ID(), RuleBackReference, "%s %s does not list it in %s", l.to.Entity(), ref, l.toField)
				}
			}
		}
	}

	for _, d := range snap[model.DomainModels] {
		caches := d.Refs(model.FieldCaches)
		if len(caches) == 0 {
			add(model.DomainModels, d.ID(), RuleSingleOwner, "not linked to any cache")
			continue
		}
		clusters := d.Refs(model.FieldClusters)
		if len(clusters) != 1 {
			continue
		}
		consistent := false
		for _, cacheID := range caches {
			if cache, ok := idx[model.Caches][cacheID]; ok && contains(cache.Refs(model.FieldClusters), clusters[0]) {
				consistent = true
				break
			}
		}
		if !consistent {
			add(model.DomainModels, d.ID(), RuleConsistency, "cluster %s owns none of its caches", clusters[0])
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Collection != out[j].Collection {
			return out[i].Collection < out[j].Collection
		}
		if out[i].EntityID != out[j].EntityID {
			return out[i].EntityID < out[j].EntityID
		}
		return out[i].Rule < out[j].Rule
	})
	return out
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
