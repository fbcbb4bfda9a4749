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

package sqldb

import (
	"context"
	"math"
	"database/sql/driver"
	"errors"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/storage"
	"github.com/poiesic/itemstore/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var itemColumns = []string{"id", "item_name", "price", "quantity"}

func newMockRepository(t *testing.T) (*ItemRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
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

	mock.ExpectQuery(storage.InsertItemSQL).
		WithArgs("itemA", 10000, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	input := &core.Item{Id: 99, ItemName: "itemA", Price: 10000, Quantity: 10}
	saved, err := repo.Save(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, &core.Item{Id: 7, ItemName: "itemA", Price: 10000, Quantity: 10}, saved)
	assert.Equal(t, core.ID(99), input.Id, "input must not be mutated")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepository_SaveError(t *testing.T) {
	repo, mock := newMockRepository(t)
	boom := errors.New("boom")

	mock.ExpectQuery(storage.InsertItemSQL).
		WithArgs("itemA", 1, 1).
		WillReturnError(boom)

	_, err := repo.Save(context.Background(), &core.Item{ItemName: "itemA", Price: 1, Quantity: 1})
	assert.ErrorIs(t, err, boom)
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

			mock.ExpectExec(storage.UpdateItemSQL).
				WithArgs("item2", 20000, 30, int64(5)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.Update(context.Background(), 5, core.ItemUpdate{ItemName: "item2", Price: 20000, Quantity: 30})
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

	mock.ExpectQuery(storage.SelectItemByIDSQL).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(itemColumns).AddRow(int64(3), "itemA", int64(10000), int64(10)))
	mock.ExpectQuery(storage.SelectItemByIDSQL).
		WithArgs(int64(4)).
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
	base := "select id, item_name, price, quantity from item"
	tests := []struct {
		name      string
		cond      core.SearchCondition
		wantQuery string
		wantArgs  []any
	}{
		{
			name:      "no filter",
			cond:      core.SearchCondition{},
			wantQuery: base + " order by id",
		},
		{
			name:      "name only",
			cond:      core.SearchCondition{ItemName: "itemA"},
			wantQuery: base + " where item_name like '%' || $1 || '%' order by id",
			wantArgs:  []any{"itemA"},
		},
		{
			name:      "price only",
			cond:      core.SearchCondition{MaxPrice: core.MaxPrice(10000)},
			wantQuery: base + " where price <= $1 order by id",
			wantArgs:  []any{10000},
		},
		{
			name:      "name and price",
			cond:      core.SearchCondition{ItemName: "itemA", MaxPrice: core.MaxPrice(10000)},
			wantQuery: base + " where item_name like '%' || $1 || '%' and price <= $2 order by id",
			wantArgs:  []any{"itemA", 10000},
		},
		{
			name:      "price above column range",
			cond:      core.SearchCondition{MaxPrice: core.MaxPrice(math.MaxInt32 + 1)},
			wantQuery: base + " where price <= $1 order by id",
			wantArgs:  []any{math.MaxInt32},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)

			expect := mock.ExpectQuery(tt.wantQuery)
			if len(tt.wantArgs) > 0 {
				expect = expect.WithArgs(toDriverValues(tt.wantArgs)...)
			}
			expect.WillReturnRows(sqlmock.NewRows(itemColumns).
				AddRow(int64(1), "itemA-1", int64(10000), int64(10)).
				AddRow(int64(2), "itemA-2", int64(20000), int64(20)))

			items, err := repo.FindAll(context.Background(), tt.cond)
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, core.ID(1), items[0].Id)
			assert.Equal(t, core.ID(2), items[1].Id)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestItemRepository_FindAllEmpty(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("select id, item_name, price, quantity from item order by id").
		WillReturnRows(sqlmock.NewRows(itemColumns))

	items, err := repo.FindAll(context.Background(), core.SearchCondition{})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestItemRepository_FindAllPriceBelowColumnRange(t *testing.T) {
	repo, mock := newMockRepository(t)

	items, err := repo.FindAll(context.Background(), core.SearchCondition{MaxPrice: core.MaxPrice(math.MinInt32 - 1)})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepository_EnsureSchema(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(storage.ItemSchemaSQL).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
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
		db, err := Open(ctx, dsn)
		require.NoError(t, err)
		repo := NewItemRepository(db)
		require.NoError(t, repo.EnsureSchema(ctx))
		_, err = db.ExecContext(ctx, "truncate table item restart identity")
		require.NoError(t, err)
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func toDriverValues(args []any) []driver.Value {
	out := make([]driver.Value, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}
