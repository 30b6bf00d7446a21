package store

import (
	"context"
	"fmt"

	"github.com/chirino/console-migrate/internal/model"
)

// Match selects a single document by field equality.
type Match struct {
	Field string
	Value any
}

// ByID matches a document by its key.
func ByID(id string) Match { return Match{Field: model.FieldID, Value: id} }

// ByName matches a document by its name field.
func ByName(name string) Match { return Match{Field: model.FieldName, Value: name} }

// Patch describes a field-level update. Set replaces whole fields; AddToSet
// and Pull add or remove ids on array fields without a read-modify-write on
// the caller's side.
type Patch struct {
	Set      map[string]any
	AddToSet map[string][]string
	Pull     map[string][]string
}

// SetField returns a patch replacing a single field.
func SetField(field string, value any) Patch {
	return Patch{Set: map[string]any{field: value}}
}

// AddToSet returns a patch adding ids to an array field.
func AddToSet(field string, ids ...string) Patch {
	return Patch{AddToSet: map[string][]string{field: ids}}
}

// Pull returns a patch removing ids from an array field.
func Pull(field string, ids ...string) Patch {
	return Patch{Pull: map[string][]string{field: ids}}
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return len(p.Set) == 0 && len(p.AddToSet) == 0 && len(p.Pull) == 0
}

// Apply mutates doc in place the way a store applies the patch. Array fields
// keep insertion order; AddToSet appends only ids not already present.
// Backends without native set operators use this to stay consistent with Mongo.
func (p Patch) Apply(doc model.Document) {
	for field, value := range p.Set {
		doc[field] = value
	}
	for field, ids := range p.AddToSet {
		refs := doc.Refs(field)
		for _, id := range ids {
			if !contains(refs, id) {
				refs = append(refs, id)
			}
		}
		doc[field] = toAnySlice(refs)
	}
	for field, ids := range p.Pull {
		refs := doc.Refs(field)
		kept := refs[:0]
		for _, ref := range refs {
			if !contains(ids, ref) {
				kept = append(kept, ref)
			}
		}
		doc[field] = toAnySlice(kept)
	}
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func toAnySlice(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// DocumentStore is the data-access surface the migration engine needs.
// Implementations must return *NotFoundError from FindOne and UpdateFields
// when no document matches.
type DocumentStore interface {
	// NewID allocates a fresh document key in the backend's native format.
	NewID() string
	FindAll(ctx context.Context, coll model.Collection) ([]model.Document, error)
	FindOne(ctx context.Context, coll model.Collection, match Match) (model.Document, error)
	UpdateFields(ctx context.Context, coll model.Collection, id string, patch Patch) error
	// Insert stores doc and returns its key. A key already present on doc is kept.
	Insert(ctx context.Context, coll model.Collection, doc model.Document) (string, error)
	Close(ctx context.Context) error
}

// Loader creates a DocumentStore from config.
type Loader func(ctx context.Context) (DocumentStore, error)

// Plugin represents a store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}
