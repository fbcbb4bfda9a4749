// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package instrumented decorates a storage.ItemRepository with Prometheus
// metrics, OpenTelemetry spans and debug logging.
package instrumented

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/poiesic/itemstore/storage"

// Result label values.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Repository wraps another repository and records every call.
type Repository struct {
	next    storage.ItemRepository
	backend string

	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
	logger         *slog.Logger

	metrics *Metrics
	tracer  trace.Tracer
}

var _ storage.ItemRepository = (*Repository)(nil)

// Option configures a Repository.
type Option func(*Repository)

// WithRegisterer sets where metrics are registered.
// Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Repository) {
		r.registerer = reg
	}
}

// WithTracerProvider sets the tracer provider.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Repository) {
		r.tracerProvider = tp
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New wraps next. backend labels metrics and spans.
func New(next storage.ItemRepository, backend string, opts ...Option) (*Repository, error) {
	r := &Repository{
		next:       next,
		backend:    backend,
		registerer: prometheus.DefaultRegisterer,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracerProvider == nil {
		r.tracerProvider = otel.GetTracerProvider()
	}

	metrics, err := NewMetrics(r.registerer)
	if err != nil {
		return nil, err
	}
	r.metrics = metrics
	r.tracer = r.tracerProvider.Tracer(tracerName)
	return r, nil
}

// Unwrap returns the decorated repository.
func (r *Repository) Unwrap() storage.ItemRepository {
	return r.next
}

// Save implements storage.ItemRepository.
func (r *Repository) Save(ctx context.Context, item *core.Item) (*core.Item, error) {
	var saved *core.Item
	err := r.observe(ctx, "Save", nil, func(ctx context.Context) error {
		var err error
		saved, err = r.next.Save(ctx, item)
		return err
	})
	return saved, err
}

// Update implements storage.ItemRepository.
func (r *Repository) Update(ctx context.Context, id core.ID, update core.ItemUpdate) error {
	attrs := []attribute.KeyValue{attribute.Int64("itemstore.item_id", int64(id))}
	return r.observe(ctx, "Update", attrs, func(ctx context.Context) error {
		return r.next.Update(ctx, id, update)
	})
}

// FindByID implements storage.ItemRepository.
func (r *Repository) FindByID(ctx context.Context, id core.ID) (*core.Item, error) {
	var found *core.Item
	attrs := []attribute.KeyValue{attribute.Int64("itemstore.item_id", int64(id))}
	err := r.observe(ctx, "FindByID", attrs, func(ctx context.Context) error {
		var err error
		found, err = r.next.FindByID(ctx, id)
		return err
	})
	return found, err
}

// FindAll implements storage.ItemRepository.
func (r *Repository) FindAll(ctx context.Context, cond core.SearchCondition) ([]*core.Item, error) {
	var items []*core.Item
	attrs := []attribute.KeyValue{
		attribute.Bool("itemstore.filter.name", cond.NameFilterActive()),
		attribute.Bool("itemstore.filter.max_price", cond.PriceFilterActive()),
	}
	err := r.observe(ctx, "FindAll", attrs, func(ctx context.Context) error {
		var err error
		items, err = r.next.FindAll(ctx, cond)
		return err
	})
	return items, err
}

// Close closes the decorated repository.
func (r *Repository) Close() error {
	return r.next.Close()
}

func (r *Repository) observe(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	attrs = append(attrs, attribute.String("itemstore.backend", r.backend))
	ctx, span := r.tracer.Start(ctx, "itemstore."+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	result := resultOf(err)
	r.metrics.Operations.WithLabelValues(r.backend, op, result).Inc()
	r.metrics.Duration.WithLabelValues(r.backend, op).Observe(elapsed.Seconds())

	span.SetAttributes(attribute.String("itemstore.result", result))
	if result == ResultError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	r.logger.Debug("repository operation",
		"backend", r.backend,
		"operation", op,
		"result", result,
		"duration", elapsed)
	return err
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, storage.ErrNotFound):
		return ResultNotFound
	default:
		return ResultError
	}
}
