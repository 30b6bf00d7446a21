// Package teststore provides DocumentStore wrappers for tests: one counts
// writes, the other injects failures.
package teststore

import (
	"context"
	"fmt"
	"sync"

	"github.com/chirino/console-migrate/internal/model"
	"github.com/chirino/console-migrate/internal/plugin/store/memory"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
)

// Sequential returns a memory store whose generated ids are prefix-1, prefix-2, ...
func Sequential(prefix string) *memory.Store {
	var mu sync.Mutex
	n := 0
	return memory.New(memory.WithIDGenerator(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}))
}

// Counting records every write that reaches the wrapped store.
type Counting struct {
	registrystore.DocumentStore

	mu      sync.Mutex
	Updates int
	Inserts int
}

// NewCounting wraps inner.
func NewCounting(inner registrystore.DocumentStore) *Counting {
	return &Counting{DocumentStore: inner}
}

// Writes returns the number of updates and inserts seen so far.
func (c *Counting) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Updates + c.Inserts
}

func (c *Counting) UpdateFields(ctx context.Context, coll model.Collection, id string, patch registrystore.Patch) error {
	c.mu.Lock()
	c.Updates++
	c.mu.Unlock()
	return c.DocumentStore.UpdateFields(ctx, coll, id, patch)
}

func (c *Counting) Insert(ctx context.Context, coll model.Collection, doc model.Document) (string, error) {
	c.mu.Lock()
	c.Inserts++
	c.mu.Unlock()
	return c.DocumentStore.Insert(ctx, coll, doc)
}

// Faulty fails the operations its hooks reject. A nil hook lets every call through.
type Faulty struct {
	registrystore.DocumentStore

	FailFindAll func(coll model.Collection) error
	FailUpdate  func(coll model.Collection, id string, patch registrystore.Patch) error
	FailInsert  func(coll model.Collection, doc model.Document) error
}

func (f *Faulty) FindAll(ctx context.Context, coll model.Collection) ([]model.Document, error) {
	if f.FailFindAll != nil {
		if err := f.FailFindAll(coll); err != nil {
			return nil, err
		}
	}
	return f.DocumentStore.FindAll(ctx, coll)
}

func (f *Faulty) UpdateFields(ctx context.Context, coll model.Collection, id string, patch registrystore.Patch) error {
	if f.FailUpdate != nil {
		if err := f.FailUpdate(coll, id, patch); err != nil {
			return err
		}
	}
	return f.DocumentStore.UpdateFields(ctx, coll, id, patch)
}

func (f *Faulty) Insert(ctx context.Context, coll model.Collection, doc model.Document) (string, error) {
	if f.FailInsert != nil {
		if err := f.FailInsert(coll, doc); err != nil {
			return "", err
		}
	}
	return f.DocumentStore.Insert(ctx, coll, doc)
}
