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

// Package storagetest holds the behavioral tests shared by every
// storage.ItemRepository implementation.
package storagetest

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty repository. It is called once per subtest and
// should register any cleanup with t.Cleanup.
type Factory func(t *testing.T) storage.ItemRepository

// RunItemRepositoryTests runs the full repository suite against repos
// produced by newRepo.
func RunItemRepositoryTests(t *testing.T, newRepo Factory) {
	t.Run("Save", func(t *testing.T) { testSave(t, newRepo(t)) })
	t.Run("SaveIgnoresCallerID", func(t *testing.T) { testSaveIgnoresCallerID(t, newRepo(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newRepo(t)) })
	t.Run("UpdateNotFound", func(t *testing.T) { testUpdateNotFound(t, newRepo(t)) })
	t.Run("FindByIDNotFound", func(t *testing.T) { testFindByIDNotFound(t, newRepo(t)) })
	t.Run("FindItems", func(t *testing.T) { testFindItems(t, newRepo(t)) })
	t.Run("FindAllEmpty", func(t *testing.T) { testFindAllEmpty(t, newRepo(t)) })
	t.Run("FindAllLiteralMetacharacters", func(t *testing.T) { testFindAllLiteralMetacharacters(t, newRepo(t)) })
	t.Run("FindAllPriceBeyondIntegerRange", func(t *testing.T) { testFindAllPriceBeyondIntegerRange(t, newRepo(t)) })
	t.Run("ConcurrentSave", func(t *testing.T) { testConcurrentSave(t, newRepo(t)) })
}

func testSave(t *testing.T, repo storage.ItemRepository) {
	ctx := context.Background()
	item := &core.Item{ItemName: "itemA", Price: 10000, Quantity: 10}

	saved, err := repo.Save(ctx, item)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.NotZero(t, saved.Id)

	found, err := repo.FindByID(ctx, saved.Id)
	require.NoError(t, err)
	assert.Equal(t, saved, found)

	// Reads do not disturb the stored record
	again, err := repo.FindByID(ctx, saved.Id)
	require.NoError(t, err)
	assert.Equal(t, found, again)
}

func testSaveIgnoresCallerID(t *testing.T, repo storage.ItemRepository) {
	ctx := context.Background()

	first, err := repo.Save(ctx, &core.Item{ItemName: "itemA", Price: 1, Quantity: 1})
	require.NoError(t, err)

	second, err := repo.Save(ctx, &core.Item{Id: first.Id, ItemName: "itemB", Price: 2, Quantity: 2})
	require.NoError(t, err)
	assert.NotEqual(t, first.Id, second.Id)

	found, err := repo.FindByID(ctx, first.Id)
	require.NoError(t, err)
	assert.Equal(t, "itemA", found.ItemName)
}

func testUpdate(t *testing.T, repo storage.ItemRepository) {
	ctx := context.Background()

	saved, err := repo.Save(ctx, &core.Item{ItemName: "item1", Price: 10000, Quantity: 10})
	require.NoError(t, err)

	update := core.ItemUpdate{ItemName: "item2", Price: 20000, Quantity: 30}
	require.NoError(t, repo.Update(ctx, saved.Id, update))

	found, err := repo.FindByID(ctx, saved.Id)
	require.NoError(t, err)
	assert.Equal(t, saved.Id, found.Id)
	assert.Equal(t, update.ItemName, found.ItemName)
	assert.Equal(t, update.Price, found.Price)
	assert.Equal(t, update.Quantity, found.Quantity)
}

func testUpdateNotFound(t *testing.T, repo storage.ItemRepository) {
	ctx := context.Background()

	err := repo.Update(ctx, core.ID(987654), core.ItemUpdate{ItemName: "ghost", Price: 1, Quantity: 1})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	items, err := repo.FindAll(ctx, core.SearchCondition{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func testFindByIDNotFound(t *testing.T, repo storage.ItemRepository) {
	found, err := repo.FindByID(context.Background(), core.ID(987654))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Nil(t, found)
}

func testFindItems(t *testing.T, repo storage.ItemRepository) {
	ctx := context.Background()

	item1, err := repo.Save(ctx, &core.Item{ItemName: "itemA-1", Price: 10000, Quantity: 10})
	require.NoError(t, err)
	item2, err := repo.Save(ctx, &core.Item{ItemName: "itemA-2", Price: 20000, Quantity: 20})
	require.NoError(t, err)
	item3, err := repo.Save(ctx, &core.Item{ItemName: "itemB-1", Price: 30000, Quantity: 30})
	require.NoError(t, err)

	tests := []struct {
		name string
		cond core.SearchCondition
		want []*core.Item
	}{
		{"no filter", core.SearchCondition{}, []*core.Item{item1, item2, item3}},
		{"empty name", core.SearchCondition{ItemName: ""}, []*core.Item{item1, item2, item3}},
		{"blank name", core.SearchCondition{ItemName: "  "}, []*core.Item{item1, item2, item3}},
		{"itemA", core.SearchCondition{ItemName: "itemA"}, []*core.Item{item1, item2}},
		{"temA", core.SearchCondition{ItemName: "temA"}, []*core.Item{item1, item2}},
		{"itemB", core.SearchCondition{ItemName: "itemB"}, []*core.Item{item3}},
		{"case sensitive", core.SearchCondition{ItemName: "ITEMA"}, []*core.Item{}},
		{"max price", core.SearchCondition{MaxPrice: core.MaxPrice(10000)}, []*core.Item{item1}},
		{"max price inclusive", core.SearchCondition{MaxPrice: core.MaxPrice(20000)}, []*core.Item{item1, item2}},
		{"name and max price", core.SearchCondition{ItemName: "itemA", MaxPrice: core.MaxPrice(10000)}, []*core.Item{item1}},
		{"no match", core.SearchCondition{ItemName: "itemB", MaxPrice: core.MaxPrice(10000)}, []*core.Item{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindAll(ctx, tt.cond)
			require.NoError(t, err)
			assert.Equal(t, ids(tt.want), ids(got))
			assert.Equal(t, tt.want, nonNil(got))
		})
	}
}

func testFindAllEmpty(t *testing.T, repo storage.ItemRepository) {
	items, err := repo.FindAll(context.Background(), core.SearchCondition{ItemName: "itemA"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func testFindAllLiteralMetacharacters(t *testing.T, repo storage.ItemRepository) {
	ctx := context.Background()

	pct, err := repo.Save(ctx, &core.Item{ItemName: "50%off", Price: 1, Quantity: 1})
	require.NoError(t, err)
	_, err = repo.Save(ctx, &core.Item{ItemName: "500off", Price: 1, Quantity: 1})
	require.NoError(t, err)
	under, err := repo.Save(ctx, &core.Item{ItemName: "a_b", Price: 1, Quantity: 1})
	require.NoError(t, err)
	_, err = repo.Save(ctx, &core.Item{ItemName: "axb", Price: 1, Quantity: 1})
	require.NoError(t, err)

	got, err := repo.FindAll(ctx, core.SearchCondition{ItemName: "%"})
	require.NoError(t, err)
	assert.Equal(t, []core.ID{pct.Id}, ids(got))

	got, err = repo.FindAll(ctx, core.SearchCondition{ItemName: "a_b"})
	require.NoError(t, err)
	assert.Equal(t, []core.ID{under.Id}, ids(got))
}

func testFindAllPriceBeyondIntegerRange(t *testing.T, repo storage.ItemRepository) {
	ctx := context.Background()

	cheap, err := repo.Save(ctx, &core.Item{ItemName: "itemA", Price: 10000, Quantity: 1})
	require.NoError(t, err)
	top, err := repo.Save(ctx, &core.Item{ItemName: "itemB", Price: math.MaxInt32, Quantity: 1})
	require.NoError(t, err)

	got, err := repo.FindAll(ctx, core.SearchCondition{MaxPrice: core.MaxPrice(math.MaxInt32 + 1)})
	require.NoError(t, err)
	assert.Equal(t, []core.ID{cheap.Id, top.Id}, ids(got))

	got, err = repo.FindAll(ctx, core.SearchCondition{MaxPrice: core.MaxPrice(math.MinInt32 - 1)})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testConcurrentSave(t *testing.T, repo storage.ItemRepository) {
	ctx := context.Background()
	const workers = 8
	const perWorker = 10

	var wg sync.WaitGroup
	results := make(chan core.ID, workers*perWorker)
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				saved, err := repo.Save(ctx, &core.Item{ItemName: "item", Price: i, Quantity: i})
				if err != nil {
					errs <- err
					continue
				}
				results <- saved.Id
			}
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	seen := make(map[core.ID]struct{})
	for id := range results {
		assert.NotZero(t, id)
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, workers*perWorker)

	items, err := repo.FindAll(ctx, core.SearchCondition{})
	require.NoError(t, err)
	assert.Len(t, items, workers*perWorker)
	for i := 1; i < len(items); i++ {
		assert.Less(t, items[i-1].Id, items[i].Id)
	}
}

func ids(items []*core.Item) []core.ID {
	out := make([]core.ID, 0, len(items))
	for _, item := range items {
		out = append(out, item.Id)
	}
	return out
}

func nonNil(items []*core.Item) []*core.Item {
	if items == nil {
		return []*core.Item{}
	}
	return items
}
