package metrics

import (
	"context"
	"time"

	"github.com/chirino/console-migrate/internal/metrics"
	"github.com/chirino/console-migrate/internal/model"
	"github.com/chirino/console-migrate/internal/registry/store"
)

// Wrap returns a DocumentStore that records StoreLatency for every operation.
func Wrap(inner store.DocumentStore) store.DocumentStore {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner store.DocumentStore
}

func observe(op string, coll model.Collection, start time.Time) {
	if metrics.StoreLatency == nil {
		return
	}
	metrics.StoreLatency.WithLabelValues(op, string(coll)).Observe(time.Since(start).Seconds())
}

func (m *metricsStore) NewID() string { return m.inner.NewID() }

func (m *metricsStore) FindAll(ctx context.Context, coll model.Collection) ([]model.Document, error) {
	defer observe("find_all", coll, time.Now())
	return m.inner.FindAll(ctx, coll)
}

func (m *metricsStore) FindOne(ctx context.Context, coll model.Collection, match store.Match) (model.Document, error) {
	defer observe("find_one", coll, time.Now())
	return m.inner.FindOne(ctx, coll, match)
}

func (m *metricsStore) UpdateFields(ctx context.Context, coll model.Collection, id string, patch store.Patch) error {
	defer observe("update_fields", coll, time.Now())
	return m.inner.UpdateFields(ctx, coll, id, patch)
}

func (m *metricsStore) Insert(ctx context.Context, coll model.Collection, doc model.Document) (string, error) {
	defer observe("insert", coll, time.Now())
	return m.inner.Insert(ctx, coll, doc)
}

func (m *metricsStore) Close(ctx context.Context) error {
	return m.inner.Close(ctx)
}
