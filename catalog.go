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

// Package itemstore is a small item catalog with interchangeable storage
// backends. Open builds the backend named by a config.Config and returns a
// Catalog that validates writes and records metrics and traces for every
// repository call.
package itemstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/itemstore/config"
	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/storage"
	"github.com/poiesic/itemstore/storage/badger"
	"github.com/poiesic/itemstore/storage/instrumented"
	"github.com/poiesic/itemstore/storage/memory"
	"github.com/poiesic/itemstore/storage/mongostore"
	"github.com/poiesic/itemstore/storage/orm"
	"github.com/poiesic/itemstore/storage/postgres"
	"github.com/poiesic/itemstore/storage/redisstore"
	"github.com/poiesic/itemstore/storage/sqldb"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// Catalog is the entry point for item operations.
type Catalog struct {
	backend       config.Backend
	repo          storage.ItemRepository
	closers       []func() error
	maxNameLength int
	logger        *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
}

// WithLogger sets the logger passed to the backend and the catalog.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegisterer sets where repository metrics are registered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithTracerProvider sets the tracer provider for repository spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// Open validates cfg, connects the selected backend and wraps it with
// instrumentation.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Catalog, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{
		logger:     slog.Default(),
		registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(o)
	}

	repo, closers, err := openRepository(ctx, cfg, o.logger)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}

	instOpts := []instrumented.Option{
		instrumented.WithRegisterer(o.registerer),
		instrumented.WithLogger(o.logger),
	}
	if o.tracerProvider != nil {
		instOpts = append(instOpts, instrumented.WithTracerProvider(o.tracerProvider))
	}
	wrapped, err := instrumented.New(repo, string(cfg.Backend), instOpts...)
	if err != nil {
		closeAll(repo, closers)
		return nil, err
	}

	o.logger.Info("item catalog opened", "backend", cfg.Backend)
	return &Catalog{
		backend:       cfg.Backend,
		repo:          wrapped,
		closers:       closers,
		maxNameLength: cfg.MaxNameLength,
		logger:        o.logger,
	}, nil
}

type schemaCreator interface {
	EnsureSchema(ctx context.Context) error
}

// openRepository returns the backend repository and any resources that
// must be closed after it.
func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.ItemRepository, []func() error, error) {
	var (
		repo    storage.ItemRepository
		closers []func() error
	)

	switch cfg.Backend {
	case config.BackendMemory:
		repo = memory.NewItemRepository(memory.WithLogger(logger))

	case config.BackendBadger:
		backend, err := badger.OpenBackend(cfg.BadgerPath, cfg.BadgerPath == "", badger.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		itemRepo, err := badger.NewItemRepository(backend)
		if err != nil {
			backend.Close()
			return nil, nil, err
		}
		repo = itemRepo
		closers = append(closers, backend.Close)

	case config.BackendSQL:
		db, err := sqldb.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		repo = sqldb.NewItemRepository(db, sqldb.WithLogger(logger))

	case config.BackendPgx:
		pool, err := postgres.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		repo = postgres.NewItemRepository(pool, postgres.WithLogger(logger))

	case config.BackendGorm:
		db, err := orm.Open(cfg.DSN, logger)
		if err != nil {
			return nil, nil, err
		}
		repo = orm.NewItemRepository(db, orm.WithLogger(logger))

	case config.BackendRedis:
		client, err := redisstore.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		repo = redisstore.NewItemRepository(client,
			redisstore.WithKeyPrefix(cfg.RedisKeyPrefix),
			redisstore.WithLogger(logger))

	case config.BackendMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		repo = mongostore.NewItemRepository(client, cfg.MongoDatabase, mongostore.WithLogger(logger))

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}

	if cfg.CreateSchema && cfg.Backend.Relational() {
		if sc, ok := repo.(schemaCreator); ok {
			if err := sc.EnsureSchema(ctx); err != nil {
				closeAll(repo, closers)
				return nil, nil, err
			}
		}
	}
	return repo, closers, nil
}

func closeAll(repo storage.ItemRepository, closers []func() error) error {
	errs := []error{repo.Close()}
	for _, c := range closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Backend returns the backend kind in use.
func (c *Catalog) Backend() config.Backend {
	return c.backend
}

// Repository returns the instrumented repository behind the catalog.
func (c *Catalog) Repository() storage.ItemRepository {
	return c.repo
}

// Save validates item and stores it under a new id.
func (c *Catalog) Save(ctx context.Context, item *core.Item) (*core.Item, error) {
	if err := core.ValidateItem(item, c.maxNameLength); err != nil {
		return nil, err
	}
	return c.repo.Save(ctx, item)
}

// Update validates update and overwrites the item with the given id.
func (c *Catalog) Update(ctx context.Context, id core.ID, update core.ItemUpdate) error {
	if err := core.ValidateUpdate(update, c.maxNameLength); err != nil {
		return err
	}
	return c.repo.Update(ctx, id, update)
}

// FindByID returns the item with the given id or storage.ErrNotFound.
func (c *Catalog) FindByID(ctx context.Context, id core.ID) (*core.Item, error) {
	return c.repo.FindByID(ctx, id)
}

// FindItems returns the items matching cond in id order.
func (c *Catalog) FindItems(ctx context.Context, cond core.SearchCondition) ([]*core.Item, error) {
	return c.repo.FindAll(ctx, cond)
}

// Close releases the repository and its backend.
func (c *Catalog) Close() error {
	if err := closeAll(c.repo, c.closers); err != nil {
		c.logger.Error("error closing item catalog", "err", err)
		return err
	}
	return nil
}
