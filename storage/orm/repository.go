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

// Package orm implements storage.ItemRepository with GORM.
package orm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/storage"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// itemRecord is the GORM model of the item table.
type itemRecord struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	ItemName string `gorm:"column:item_name;size:10"`
	Price    int    `gorm:"column:price"`
	Quantity int    `gorm:"column:quantity"`
}

// TableName maps the model onto the shared item table.
func (itemRecord) TableName() string {
	return "item"
}

func (r *itemRecord) toItem() *core.Item {
	return &core.Item{
		Id:       core.ID(r.ID),
		ItemName: r.ItemName,
		Price:    r.Price,
		Quantity: r.Quantity,
	}
}

// Config returns the GORM configuration used by Open. Statements run
// without an implicit transaction and log through logger.
func Config(logger *slog.Logger) *gorm.Config {
	if logger == nil {
		logger = slog.Default()
	}
	return &gorm.Config{
		SkipDefaultTransaction: true,
		Logger: gormlogger.NewSlogLogger(logger, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// Open connects to PostgreSQL at dsn through GORM.
func Open(dsn string, logger *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), Config(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	return db, nil
}

// ItemRepository stores items through GORM.
type ItemRepository struct {
	db     *gorm.DB
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

// NewItemRepository creates a repository on db. Close closes the
// underlying connection pool.
func NewItemRepository(db *gorm.DB, opts ...Option) *ItemRepository {
	r := &ItemRepository{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureSchema creates or alters the item table to match the model.
func (r *ItemRepository) EnsureSchema(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&itemRecord{}); err != nil {
		return fmt.Errorf("migrate item table: %w", err)
	}
	return nil
}

// Save implements storage.ItemRepository.
func (r *ItemRepository) Save(ctx context.Context, item *core.Item) (*core.Item, error) {
	if item == nil {
		return nil, storage.ErrNilItem
	}

	rec := itemRecord{
		ItemName: item.ItemName,
		Price:    item.Price,
		Quantity: item.Quantity,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return rec.toItem(), nil
}

// Update implements storage.ItemRepository.
func (r *ItemRepository) Update(ctx context.Context, id core.ID, update core.ItemUpdate) error {
	// A column map writes zero values that a struct update would skip.
	res := r.db.WithContext(ctx).
		Model(&itemRecord{}).
		Where("id = ?", uint64(id)).
		Updates(map[string]any{
			"item_name": update.ItemName,
			"price":     update.Price,
			"quantity":  update.Quantity,
		})
	if res.Error != nil {
		return fmt.Errorf("update item %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FindByID implements storage.ItemRepository.
func (r *ItemRepository) FindByID(ctx context.Context, id core.ID) (*core.Item, error) {
	var rec itemRecord
	if err := r.db.WithContext(ctx).Take(&rec, uint64(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("find item %d: %w", id, err)
	}
	return rec.toItem(), nil
}

// FindAll implements storage.ItemRepository.
func (r *ItemRepository) FindAll(ctx context.Context, cond core.SearchCondition) ([]*core.Item, error) {
	if storage.Unsatisfiable(cond) {
		return []*core.Item{}, nil
	}

	var recs []itemRecord
	if err := findItems(r.db.WithContext(ctx), cond, &recs).Error; err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}

	items := make([]*core.Item, 0, len(recs))
	for i := range recs {
		items = append(items, recs[i].toItem())
	}
	return items, nil
}

// Close closes the connection pool behind the GORM handle.
func (r *ItemRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func findItems(db *gorm.DB, cond core.SearchCondition, dest *[]itemRecord) *gorm.DB {
	return db.Scopes(nameContains(cond), priceAtMost(cond)).Order("id").Find(dest)
}

// nameContains filters on a literal substring of item_name.
func nameContains(cond core.SearchCondition) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !cond.NameFilterActive() {
			return db
		}
		return db.Where("item_name LIKE '%' || ? || '%'", storage.EscapeLike(cond.ItemName))
	}
}

// priceAtMost filters on an inclusive price bound.
func priceAtMost(cond core.SearchCondition) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !cond.PriceFilterActive() {
			return db
		}
		bound, _ := storage.PriceBound(*cond.MaxPrice)
		return db.Where("price <= ?", bound)
	}
}
