package model

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"
)

// Collection names a persisted configuration collection.
type Collection string

const (
	Clusters     Collection = "clusters"
	Caches       Collection = "caches"
	DomainModels Collection = "domainmodels"
	Filesystems  Collection = "igfs"
)

// Collections lists every collection the engine touches, in dependency order.
var Collections = []Collection{Clusters, Caches, DomainModels, Filesystems}

// Entity returns the singular display name used in logs and reports.
func (c Collection) Entity() string {
	switch c {
	case Clusters:
		return "cluster"
	case Caches:
		return "cache"
	case DomainModels:
		return "domain model"
	case Filesystems:
		return "IGFS"
	default:
		return string(c)
	}
}

// Document field names.
const (
	FieldID       = "_id"
	FieldName     = "name"
	FieldCaches   = "caches"
	FieldClusters = "clusters"
	FieldDomains  = "domains"
	FieldModels   = "models"
	FieldIgfss    = "igfss"

	FieldStoreFactory = "cacheStoreFactory"
	FieldKind         = "kind"
)

// IsRefField reports whether field holds a document key or an array of keys.
func IsRefField(field string) bool {
	switch field {
	case FieldID, FieldCaches, FieldClusters, FieldDomains, FieldModels, FieldIgfss:
		return true
	}
	return false
}

// RefField is a (collection, array field) pair holding foreign keys.
type RefField struct {
	Collection Collection
	Field      string
	Title      string
}

// DedupeFields are the relationship arrays that must not contain duplicates.
var DedupeFields = []RefField{
	{Collection: Clusters, Field: FieldCaches, Title: "Cluster caches"},
	{Collection: Clusters, Field: FieldIgfss, Title: "Cluster IGFS"},
	{Collection: Caches, Field: FieldClusters, Title: "Cache clusters"},
	{Collection: Caches, Field: FieldDomains, Title: "Cache domains"},
	{Collection: Filesystems, Field: FieldClusters, Title: "IGFS clusters"},
	{Collection: DomainModels, Field: FieldCaches, Title: "Domain model caches"},
}

// Document is a schemaless configuration document keyed by FieldID.
type Document map[string]any

// ID returns the document key, or "" when unset.
func (d Document) ID() string {
	return refString(d[FieldID])
}

// Name returns the name field, or "" when unset.
func (d Document) Name() string {
	s, _ := d[FieldName].(string)
	return s
}

// Label is a human readable identifier for logs: the name when present, otherwise the id.
func (d Document) Label() string {
	if n := d.Name(); n != "" {
		return n
	}
	return d.ID()
}

// Refs returns the array field as a list of ids, preserving order.
// Missing or null fields yield an empty list.
func (d Document) Refs(field string) []string {
	switch v := d[field].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, refString(item))
		}
		return out
	default:
		return []string{}
	}
}

// Clone returns a deep copy of the document.
func (d Document) Clone() (Document, error) {
	if d == nil {
		return nil, nil
	}
	var out Document
	if err := deepcopy.Copy(&out, &d); err != nil {
		return nil, fmt.Errorf("copy document %s: %w", d.ID(), err)
	}
	return out, nil
}

// StripNullStoreFactoryKind drops an explicitly null "kind" from the cache
// store factory sub-object. A null kind is not a valid discriminator, and the
// clone would otherwise persist it. Only this one field is cleaned.
func StripNullStoreFactoryKind(d Document) bool {
	factory, ok := d[FieldStoreFactory].(map[string]any)
	if !ok {
		return false
	}
	kind, present := factory[FieldKind]
	if !present || kind != nil {
		return false
	}
	delete(factory, FieldKind)
	return true
}

func refString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
