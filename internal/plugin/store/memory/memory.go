// Package memory provides an in-process DocumentStore. It backs dry runs and
// the engine's tests, and applies patches with the same set semantics as Mongo.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/chirino/console-migrate/internal/model"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/google/uuid"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "memory",
		Loader: func(ctx context.Context) (registrystore.DocumentStore, error) {
			return New(), nil
		},
	})
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

type collection struct {
	order []string
	docs  map[string]model.Document
}

// Store is a map-backed DocumentStore. Documents are copied on the way in and
// out so callers never alias stored state.
type Store struct {
	mu          sync.Mutex
	collections map[model.Collection]*collection
	newID       func() string
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the key generator (uuid strings by default).
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		collections: map[model.Collection]*collection{},
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) coll(name model.Collection) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: map[string]model.Document{}}
		s.collections[name] = c
	}
	return c
}

// Seed inserts documents verbatim, keeping their keys.
func (s *Store) Seed(name model.Collection, docs ...model.Document) error {
	for _, doc := range docs {
		if _, err := s.Insert(context.Background(), name, doc); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns a copy of every collection's documents in insertion order.
func (s *Store) Snapshot() (map[model.Collection][]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.Collection][]model.Document, len(s.collections))
	for name, c := range s.collections {
		docs, err := c.list()
		if err != nil {
			return nil, err
		}
		out[name] = docs
	}
	return out, nil
}

// Get returns a copy of a single document, or nil.
func (s *Store) Get(name model.Collection, id string) model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.coll(name).docs[id]
	if !ok {
		return nil
	}
	out, _ := doc.Clone()
	return out
}

func (c *collection) list() ([]model.Document, error) {
	out := make([]model.Document, 0, len(c.order))
	for _, id := range c.order {
		doc, err := c.docs[id].Clone()
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *Store) NewID() string { return s.newID() }

func (s *Store) FindAll(ctx context.Context, name model.Collection) ([]model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll(name).list()
}

func (s *Store) FindOne(ctx context.Context, name model.Collection, match registrystore.Match) (model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(name)
	for _, id := range c.order {
		doc := c.docs[id]
		if reflect.DeepEqual(doc[match.Field], match.Value) {
			return doc.Clone()
		}
	}
	return nil, &registrystore.NotFoundError{Collection: name, ID: fmt.Sprintf("%s=%v", match.Field, match.Value)}
}

func (s *Store) UpdateFields(ctx context.Context, name model.Collection, id string, patch registrystore.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.coll(name).docs[id]
	if !ok {
		return &registrystore.NotFoundError{Collection: name, ID: id}
	}
	patch.Apply(doc)
	return nil
}

func (s *Store) Insert(ctx context.Context, name model.Collection, doc model.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stored, err := doc.Clone()
	if err != nil {
		return "", err
	}
	if stored == nil {
		stored = model.Document{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := stored.ID()
	if id == "" {
		id = s.newID()
		stored[model.FieldID] = id
	}
	c := s.coll(name)
	if _, exists := c.docs[id]; exists {
		return "", &registrystore.ConflictError{Collection: name, ID: id, Message: "duplicate key"}
	}
	c.docs[id] = stored
	c.order = append(c.order, id)
	return id, nil
}

func (s *Store) Close(ctx context.Context) error { return nil }
