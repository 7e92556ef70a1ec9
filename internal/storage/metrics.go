package storage

import (
	"context"
	"time"

	"github.com/xaenox/goodluck-bot/internal/metrics"
)

// WithMetrics returns a SheetStore that records latency for every operation.
func WithMetrics(inner SheetStore) SheetStore {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner SheetStore
}

func observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsStore) EnsureDestination(ctx context.Context, name string) (bool, error) {
	defer observe("ensure", time.Now())
	return m.inner.EnsureDestination(ctx, name)
}

func (m *metricsStore) Append(ctx context.Context, destination string, rows [][]string) error {
	defer observe("append", time.Now())
	return m.inner.Append(ctx, destination, rows)
}

func (m *metricsStore) Update(ctx context.Context, destination, cell, value string) error {
	defer observe("update", time.Now())
	return m.inner.Update(ctx, destination, cell, value)
}

func (m *metricsStore) Read(ctx context.Context, destination, cellRange string) ([][]string, error) {
	defer observe("read", time.Now())
	return m.inner.Read(ctx, destination, cellRange)
}

func (m *metricsStore) Clear(ctx context.Context, destination, cellRange string) error {
	defer observe("clear", time.Now())
	return m.inner.Clear(ctx, destination, cellRange)
}

func (m *metricsStore) Close() error {
	return m.inner.Close()
}
