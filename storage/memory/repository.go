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

// Package memory provides a process-local storage.ItemRepository.
// Contents are lost when the process exits.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/storage"
)

// ItemRepository keeps items in a map guarded by a single mutex.
// ID assignment and insertion happen under the same lock.
type ItemRepository struct {
	mu     sync.RWMutex
	seq    core.ID
	items  map[core.ID]*core.Item
	order  []core.ID
	closed bool
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

// NewItemRepository creates an empty repository.
func NewItemRepository(opts ...Option) *ItemRepository {
	r := &ItemRepository{
		items:  make(map[core.ID]*core.Item),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save implements storage.ItemRepository.
func (r *ItemRepository) Save(ctx context.Context, item *core.Item) (*core.Item, error) {
	if item == nil {
		return nil, storage.ErrNilItem
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, storage.ErrStorageClosed
	}

	r.seq++
	stored := item.Clone()
	stored.Id = r.seq
	r.items[stored.Id] = stored
	r.order = append(r.order, stored.Id)
	r.logger.Debug("item saved", "id", stored.Id)
	return stored.Clone(), nil
}

// Update implements storage.ItemRepository.
func (r *ItemRepository) Update(ctx context.Context, id core.ID, update core.ItemUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return storage.ErrStorageClosed
	}

	item, ok := r.items[id]
	if !ok {
		return storage.ErrNotFound
	}
	item.Apply(update)
	return nil
}

// FindByID implements storage.ItemRepository.
func (r *ItemRepository) FindByID(ctx context.Context, id core.ID) (*core.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, storage.ErrStorageClosed
	}

	item, ok := r.items[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return item.Clone(), nil
}

// FindAll implements storage.ItemRepository.
func (r *ItemRepository) FindAll(ctx context.Context, cond core.SearchCondition) ([]*core.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, storage.ErrStorageClosed
	}

	results := make([]*core.Item, 0, len(r.order))
	for _, id := range r.order {
		item := r.items[id]
		if cond.Matches(item) {
			results = append(results, item.Clone())
		}
	}
	return results, nil
}

// Clear removes every item. The ID counter keeps counting so IDs are never reused.
func (r *ItemRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[core.ID]*core.Item)
	r.order = nil
}

// Len returns the number of stored items.
func (r *ItemRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Close marks the repository closed. Later calls fail with storage.ErrStorageClosed.
func (r *ItemRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
