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

// Package sqldb implements storage.ItemRepository on database/sql,
// using the pgx stdlib driver for PostgreSQL.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/storage"
)

// DriverName is the database/sql driver registered by pgx.
const DriverName = "pgx"

// Open opens a connection pool for dsn and verifies it with a ping.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// ItemRepository stores items in the item table.
type ItemRepository struct {
	db     *sql.DB
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
func NewItemRepository(db *sql.DB, opts ...Option) *ItemRepository {
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
	if _, err := r.db.ExecContext(ctx, storage.ItemSchemaSQL); err != nil {
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
	err := r.db.QueryRowContext(ctx, storage.InsertItemSQL, item.ItemName, item.Price, item.Quantity).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	saved := item.Clone()
	saved.Id = core.ID(id)
	return saved, nil
}

// Update implements storage.ItemRepository.
func (r *ItemRepository) Update(ctx context.Context, id core.ID, update core.ItemUpdate) error {
	res, err := r.db.ExecContext(ctx, storage.UpdateItemSQL, update.ItemName, update.Price, update.Quantity, int64(id))
	if err != nil {
		return fmt.Errorf("update item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item %d: %w", id, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FindByID implements storage.ItemRepository.
func (r *ItemRepository) FindByID(ctx context.Context, id core.ID) (*core.Item, error) {
	row := r.db.QueryRowContext(ctx, storage.SelectItemByIDSQL, int64(id))
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("find item %d: %w", id, err)
	}
	return item, nil
}

// FindAll implements storage.ItemRepository.
func (r *ItemRepository) FindAll(ctx context.Context, cond core.SearchCondition) ([]*core.Item, error) {
	if storage.Unsatisfiable(cond) {
		return []*core.Item{}, nil
	}
	query, args := storage.FindItemsQuery(cond)
	r.logger.Debug("find items", "sql", query)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	defer rows.Close()

	items := make([]*core.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("find items: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	return items, nil
}

// Close closes the underlying database.
func (r *ItemRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*core.Item, error) {
	var (
		id   int64
		item core.Item
	)
	if err := row.Scan(&id, &item.ItemName, &item.Price, &item.Quantity); err != nil {
		return nil, err
	}
	item.Id = core.ID(id)
	return &item, nil
}
