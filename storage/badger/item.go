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

package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/storage"
)

// ItemRepository stores items in BadgerDB.
type ItemRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ItemRepository = (*ItemRepository)(nil)

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(backend *Backend) (*ItemRepository, error) {
	idSeq, err := backend.GetSequence(itemIDSeq)
	if err != nil {
		return nil, err
	}

	return &ItemRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence. The backend stays open.
func (r *ItemRepository) Close() error {
	return r.idSeq.Release()
}

// nextID returns the next ID from the sequence.
func (r *ItemRepository) nextID() (core.ID, error) {
	nextID, err := r.idSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if nextID == 0 {
		nextID, err = r.idSeq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(nextID), nil
}

// Save implements storage.ItemRepository.
func (r *ItemRepository) Save(ctx context.Context, item *core.Item) (*core.Item, error) {
	if item == nil {
		return nil, storage.ErrNilItem
	}
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	stored := item.Clone()
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		id, err := r.nextID()
		if err != nil {
			return err
		}
		stored.Id = id

		if err := tx.Set(makeItemKey(stored.Id), storage.MarshalItem(stored)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, fmt.Errorf("save item: %w", err)
	}

	r.backend.logger.Debug("item saved", "id", stored.Id)
	return stored, nil
}

// maxUpdateAttempts bounds how often Update re-runs its transaction after
// losing a write conflict to a concurrent update of the same item.
const maxUpdateAttempts = 16

// Update implements storage.ItemRepository. Concurrent updates of the same
// item are retried on badger.ErrConflict; the last committed one wins.
func (r *ItemRepository) Update(ctx context.Context, id core.ID, update core.ItemUpdate) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	key := makeItemKey(id)
	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			break
		}
		err = r.backend.WithTx(func(tx *badger.Txn) error {
			item, err := r.readItem(tx, key)
			if err != nil {
				return err
			}
			if item == nil {
				return storage.ErrNotFound
			}

			item.Apply(update)
			if err := tx.Set(key, storage.MarshalItem(item)); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		r.backend.logger.Debug("update conflict, retrying", "id", id, "attempt", attempt+1)
	}
	if err != nil {
		return fmt.Errorf("update item %d: %w", id, err)
	}
	return nil
}

// FindByID implements storage.ItemRepository.
func (r *ItemRepository) FindByID(ctx context.Context, id core.ID) (*core.Item, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var result *core.Item
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readItem(tx, makeItemKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindAll implements storage.ItemRepository.
func (r *ItemRepository) FindAll(ctx context.Context, cond core.SearchCondition) ([]*core.Item, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	results := make([]*core.Item, 0)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(itemPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, ok := itemIDFromKey(iter.Item().Key()); !ok {
				continue
			}

			var item *core.Item
			err := iter.Item().Value(func(val []byte) error {
				var err error
				item, err = storage.UnmarshalItem(val)
				return err
			})
			if err != nil {
				return err
			}
			if cond.Matches(item) {
				results = append(results, item)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	return results, nil
}

// readItem reads an item from the database within a transaction.
// Returns nil, nil if the key does not exist.
func (r *ItemRepository) readItem(tx *badger.Txn, key []byte) (*core.Item, error) {
	entry, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var item *core.Item
	err = entry.Value(func(val []byte) error {
		var err error
		item, err = storage.UnmarshalItem(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}
