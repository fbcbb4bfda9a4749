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

package postgres

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/storage"
	"github.com/poiesic/itemstore/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var itemColumns = []string{"id", "item_name", "price", "quantity"}

func newMockRepository(t *testing.T) (*ItemRepository, pgxmock.PgxPoolIface) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	repo := NewItemRepository(mock)
	t.Cleanup(func() { repo.Close() })
	return repo, mock
}

func TestItemRepository_Save(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(storage.InsertItemSQL).
		WithArgs("itemA", 10000, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	saved, err := repo.Save(context.Background(), &core.Item{ItemName: "itemA", Price: 10000, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, &core.Item{Id: 11, ItemName: "itemA", Price: 10000, Quantity: 10}, saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepository_SaveNil(t *testing.T) {
	repo, _ := newMockRepository(t)

	_, err := repo.Save(context.Background(), nil)
	assert.ErrorIs(t, err, storage.ErrNilItem)
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
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

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

func TestItemRepository_UpdateError(t *testing.T) {
	repo, mock := newMockRepository(t)
	boom := errors.New("connection reset")

	mock.ExpectExec(storage.UpdateItemSQL).
		WithArgs("item2", 1, 1, int64(5)).
		WillReturnError(boom)

	err := repo.Update(context.Background(), 5, core.ItemUpdate{ItemName: "item2", Price: 1, Quantity: 1})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestItemRepository_FindByID(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(storage.SelectItemByIDSQL).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(itemColumns).AddRow(int64(3), "itemA", 10000, 10))
	mock.ExpectQuery(storage.SelectItemByIDSQL).
		WithArgs(int64(4)).
		WillReturnRows(pgxmock.NewRows(itemColumns))

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

	mock.ExpectQuery("select id, item_name, price, quantity from item where item_name like '%' || $1 || '%' and price <= $2 order by id").
		WithArgs("itemA", 10000).
		WillReturnRows(pgxmock.NewRows(itemColumns).AddRow(int64(1), "itemA-1", 10000, 10))
	mock.ExpectQuery("select id, item_name, price, quantity from item order by id").
		WillReturnRows(pgxmock.NewRows(itemColumns).
			AddRow(int64(1), "itemA-1", 10000, 10).
			AddRow(int64(2), "itemA-2", 20000, 20).
			AddRow(int64(3), "itemB-1", 30000, 30))

	items, err := repo.FindAll(context.Background(), core.SearchCondition{ItemName: "itemA", MaxPrice: core.MaxPrice(10000)})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, &core.Item{Id: 1, ItemName: "itemA-1", Price: 10000, Quantity: 10}, items[0])

	items, err = repo.FindAll(context.Background(), core.SearchCondition{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "itemB-1", items[2].ItemName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepository_FindAllPriceOutsideColumnRange(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("select id, item_name, price, quantity from item where price <= $1 order by id").
		WithArgs(math.MaxInt32).
		WillReturnRows(pgxmock.NewRows(itemColumns).AddRow(int64(1), "itemA-1", 10000, 10))

	items, err := repo.FindAll(context.Background(), core.SearchCondition{MaxPrice: core.MaxPrice(math.MaxInt32 + 1)})
	require.NoError(t, err)
	require.Len(t, items, 1)

	items, err = repo.FindAll(context.Background(), core.SearchCondition{MaxPrice: core.MaxPrice(math.MinInt32 - 1)})
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
		pool, err := Connect(ctx, dsn)
		require.NoError(t, err)
		repo := NewItemRepository(pool)
		require.NoError(t, repo.EnsureSchema(ctx))
		_, err = pool.Exec(ctx, "truncate table item restart identity")
		require.NoError(t, err)
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}
