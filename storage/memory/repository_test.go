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

package memory

import (
	"context"
	"testing"

	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/storage"
	"github.com/poiesic/itemstore/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemRepository_Suite(t *testing.T) {
	storagetest.RunItemRepositoryTests(t, func(t *testing.T) storage.ItemRepository {
		repo := NewItemRepository()
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func TestItemRepository_ReturnsCopies(t *testing.T) {
	repo := NewItemRepository()
	defer repo.Close()
	ctx := context.Background()

	input := &core.Item{ItemName: "itemA", Price: 100, Quantity: 1}
	saved, err := repo.Save(ctx, input)
	require.NoError(t, err)
	assert.Zero(t, input.Id, "caller's item must not be mutated")

	saved.ItemName = "mutated"
	found, err := repo.FindByID(ctx, saved.Id)
	require.NoError(t, err)
	assert.Equal(t, "itemA", found.ItemName)

	found.Price = 1
	again, err := repo.FindByID(ctx, saved.Id)
	require.NoError(t, err)
	assert.Equal(t, 100, again.Price)
}

func TestItemRepository_SequentialIDs(t *testing.T) {
	repo := NewItemRepository()
	defer repo.Close()
	ctx := context.Background()

	for want := core.ID(1); want <= 3; want++ {
		saved, err := repo.Save(ctx, &core.Item{ItemName: "item"})
		require.NoError(t, err)
		assert.Equal(t, want, saved.Id)
	}
}

func TestItemRepository_Clear(t *testing.T) {
	repo := NewItemRepository()
	defer repo.Close()
	ctx := context.Background()

	first, err := repo.Save(ctx, &core.Item{ItemName: "itemA"})
	require.NoError(t, err)
	require.Equal(t, 1, repo.Len())

	repo.Clear()
	assert.Equal(t, 0, repo.Len())

	_, err = repo.FindByID(ctx, first.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	second, err := repo.Save(ctx, &core.Item{ItemName: "itemB"})
	require.NoError(t, err)
	assert.Greater(t, second.Id, first.Id)
}

func TestItemRepository_SaveNil(t *testing.T) {
	repo := NewItemRepository()
	defer repo.Close()

	_, err := repo.Save(context.Background(), nil)
	assert.ErrorIs(t, err, storage.ErrNilItem)
}

func TestItemRepository_Closed(t *testing.T) {
	repo := NewItemRepository()
	require.NoError(t, repo.Close())
	ctx := context.Background()

	_, err := repo.Save(ctx, &core.Item{ItemName: "itemA"})
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.ErrorIs(t, repo.Update(ctx, 1, core.ItemUpdate{}), storage.ErrStorageClosed)
	_, err = repo.FindByID(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = repo.FindAll(ctx, core.SearchCondition{})
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
