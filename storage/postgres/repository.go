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

// Package postgres implements storage.ItemRepository on a native pgx
// connection pool, mapping rows onto tagged structs.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/storage"
)

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

var _ DB = (*pgxpool.Pool)(nil)

// Connect creates a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// itemRow is the row shape of the item table.
type itemRow struct {
	ID       int64  `db:"id"`
	ItemName string `db:"item_name"`
	Price    int    `db:"price"`
	Quantity int    `db:"quantity"`
}

func (r *itemRow) toItem() *core.Item {
	return &core.Item{
		Id:       core.ID(r.ID),
		ItemName: r.ItemName,
		Price:    r.Price,
		Quantity: r.Quantity,
	}
}

// ItemRepository stores items in the item table through pgx.
type ItemRepository struct {
	db     DB
	logger *slog.Logger
}

var _ storage.ItemRepository = (*ItemRepository)(nil)

// Option configures an ItemRepository.
type Option func(*ItemRepository)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *ItemRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewItemRepository creates a repository on db. The repository owns db
// and closes it in Close.
func NewItemRepository(db DB, opts ...Option) *ItemRepository {
	r := &ItemRepository{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureSchema creates the item table if it does not exist.
func (r *ItemRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, storage.ItemSchemaSQL); err != nil {
		return fmt.Errorf("create item table: %w", err)
	}
	return nil
}

// Save implements storage.ItemRepository.
func (r *ItemRepository) Save(ctx context.Context, item *core.Item) (*core.Item, error) {
	if item == nil {
		return nil, storage.ErrNilItem
	}

	var id int64
	err := r.db.QueryRow(ctx, storage.InsertItemSQL, item.ItemName, item.Price, item.Quantity).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	saved := item.Clone()
	saved.Id = core.ID(id)
	return saved, nil
}

// Update implements storage.ItemRepository.
func (r *ItemRepository) Update(ctx context.Context, id core.ID, update core.ItemUpdate) error {
	tag, err := r.db.Exec(ctx, storage.UpdateItemSQL, update.ItemName, update.Price, update.Quantity, int64(id))
	if err != nil {
		return fmt.Errorf("update item %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FindByID implements storage.ItemRepository.
func (r *ItemRepository) FindByID(ctx context.Context, id core.ID) (*core.Item, error) {
	rows, err := r.db.Query(ctx, storage.SelectItemByIDSQL, int64(id))
	if err != nil {
		return nil, fmt.Errorf("find item %d: %w", id, err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[itemRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("find item %d: %w", id, err)
	}
	return row.toItem(), nil
}

// FindAll implements storage.ItemRepository.
func (r *ItemRepository) FindAll(ctx context.Context, cond core.SearchCondition) ([]*core.Item, error) {
	if storage.Unsatisfiable(cond) {
		return []*core.Item{}, nil
	}
	query, args := storage.FindItemsQuery(cond)
	r.logger.Debug("find items", "sql", query)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[itemRow])
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}

	items := make([]*core.Item, 0, len(found))
	for _, row := range found {
		items = append(items, row.toItem())
	}
	return items, nil
}

// Close closes the pool.
func (r *ItemRepository) Close() error {
	r.db.Close()
	return nil
}
