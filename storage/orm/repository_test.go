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

package orm

import (
	"context"
	"math"
	"os"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/storage"
	"github.com/poiesic/itemstore/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var itemColumns = []string{"id", "item_name", "price", "quantity"}

func newMockRepository(t *testing.T) (*ItemRepository, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), Config(nil))
	require.NoError(t, err)
	repo := NewItemRepository(db)
	t.Cleanup(func() {
		mock.ExpectClose()
		repo.Close()
	})
	return repo, mock
}

func TestItemRepository_Save(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "item"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	input := &core.Item{Id: 99, ItemName: "itemA", Price: 10000, Quantity: 10}
	saved, err := repo.Save(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, &core.Item{Id: 7, ItemName: "itemA", Price: 10000, Quantity: 10}, saved)
	assert.Equal(t, core.ID(99), input.Id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepository_Update(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"existing item", 1, nil},
		{"missing item", 0, storage.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)

			mock.ExpectExec(regexp.QuoteMeta(`UPDATE "item" SET`)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.Update(context.Background(), 5, core.ItemUpdate{ItemName: "item2", Price: 0, Quantity: 0})
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestItemRepository_FindByID(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "item"`)).
		WillReturnRows(sqlmock.NewRows(itemColumns).AddRow(int64(3), "itemA", int64(10000), int64(10)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "item"`)).
		WillReturnRows(sqlmock.NewRows(itemColumns))

	found, err := repo.FindByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, &core.Item{Id: 3, ItemName: "itemA", Price: 10000, Quantity: 10}, found)

	found, err = repo.FindByID(context.Background(), 4)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Nil(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepository_FindAll(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "item"`)).
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow(int64(1), "itemA-1", int64(10000), int64(10)).
			AddRow(int64(2), "itemA-2", int64(20000), int64(20)))

	items, err := repo.FindAll(context.Background(), core.SearchCondition{ItemName: "itemA"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, core.ID(1), items[0].Id)
	assert.Equal(t, "itemA-2", items[1].ItemName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindItems_SQL(t *testing.T) {
	repo, _ := newMockRepository(t)

	tests := []struct {
		name        string
		cond        core.SearchCondition
		contains    []string
		notContains []string
	}{
		{
			name:        "no filter",
			cond:        core.SearchCondition{},
			contains:    []string{`SELECT * FROM "item"`, "ORDER BY id"},
			notContains: []string{"WHERE"},
		},
		{
			name:        "name only",
			cond:        core.SearchCondition{ItemName: "itemA"},
			contains:    []string{"WHERE item_name LIKE '%' || 'itemA' || '%'", "ORDER BY id"},
			notContains: []string{"price"},
		},
		{
			name:        "price only",
			cond:        core.SearchCondition{MaxPrice: core.MaxPrice(10000)},
			contains:    []string{"WHERE price <= 10000"},
			notContains: []string{"item_name LIKE"},
		},
		{
			name:     "name and price",
			cond:     core.SearchCondition{ItemName: "itemA", MaxPrice: core.MaxPrice(10000)},
			contains: []string{"item_name LIKE '%' || 'itemA' || '%' AND price <= 10000"},
		},
		{
			name:        "price above column range",
			cond:        core.SearchCondition{MaxPrice: core.MaxPrice(math.MaxInt32 + 1)},
			contains:    []string{"WHERE price <= 2147483647"},
			notContains: []string{"2147483648"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := repo.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
				var recs []itemRecord
				return findItems(tx, tt.cond, &recs)
			})
			for _, want := range tt.contains {
				assert.Contains(t, sql, want)
			}
			for _, unwanted := range tt.notContains {
				assert.NotContains(t, sql, unwanted)
			}
		})
	}
}

func TestItemRepository_FindAllPriceBelowColumnRange(t *testing.T) {
	repo, mock := newMockRepository(t)

	items, err := repo.FindAll(context.Background(), core.SearchCondition{MaxPrice: core.MaxPrice(math.MinInt32 - 1)})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestItemRepository_Postgres runs the shared suite against a real
// database when DATABASE_URL is set.
func TestItemRepository_Postgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	storagetest.RunItemRepositoryTests(t, func(t *testing.T) storage.ItemRepository {
		ctx := context.Background()
		db, err := Open(dsn, nil)
		require.NoError(t, err)
		repo := NewItemRepository(db)
		require.NoError(t, repo.EnsureSchema(ctx))
		require.NoError(t, db.Exec("truncate table item restart identity").Error)
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}
