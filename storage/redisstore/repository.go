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

// Package redisstore implements storage.ItemRepository on Redis.
//
// Layout, relative to the key prefix:
//
//	seq           INCR counter handing out IDs
//	item:<id>     hash with id, item_name, price, quantity
//	ids           sorted set of IDs scored by ID, giving insertion order
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/storage"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix  = "itemstore:"
	defaultMaxRetries = 5
)

// itemHash is the stored hash of one item.
type itemHash struct {
	ID       uint64 `redis:"id"`
	ItemName string `redis:"item_name"`
	Price    int    `redis:"price"`
	Quantity int    `redis:"quantity"`
}

func (h *itemHash) toItem() *core.Item {
	return &core.Item{
		Id:       core.ID(h.ID),
		ItemName: h.ItemName,
		Price:    h.Price,
		Quantity: h.Quantity,
	}
}

// ItemRepository stores items in Redis.
type ItemRepository struct {
	client     *redis.Client
	prefix     string
	maxRetries int
	logger     *slog.Logger
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

// WithKeyPrefix namespaces every key. Defaults to "itemstore:".
func WithKeyPrefix(prefix string) Option {
	return func(r *ItemRepository) {
		r.prefix = prefix
	}
}

// WithMaxRetries bounds optimistic retries of Update when a watched key
// changes underneath it.
func WithMaxRetries(n int) Option {
	return func(r *ItemRepository) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// Connect creates a client for addr and verifies it with a ping.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewItemRepository creates a repository on client. The repository owns
// client and closes it in Close.
func NewItemRepository(client *redis.Client, opts ...Option) *ItemRepository {
	r := &ItemRepository{
		client:     client,
		prefix:     defaultKeyPrefix,
		maxRetries: defaultMaxRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ItemRepository) seqKey() string {
	return r.prefix + "seq"
}

func (r *ItemRepository) idsKey() string {
	return r.prefix + "ids"
}

func (r *ItemRepository) itemKey(id core.ID) string {
	return r.prefix + "item:" + id.String()
}

// Save implements storage.ItemRepository.
func (r *ItemRepository) Save(ctx context.Context, item *core.Item) (*core.Item, error) {
	if item == nil {
		return nil, storage.ErrNilItem
	}

	// An ID taken here is never handed out again, even if the MULTI below
	// fails, so IDs stay unique and ascending but may have gaps.
	next, err := r.client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis incr: %w", err)
	}
	saved := item.Clone()
	saved.Id = core.ID(next)

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.itemKey(saved.Id), hashValues(saved)...)
		pipe.ZAdd(ctx, r.idsKey(), redis.Z{Score: float64(saved.Id), Member: saved.Id.String()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis save item %d: %w", saved.Id, err)
	}
	return saved, nil
}

// Update implements storage.ItemRepository.
func (r *ItemRepository) Update(ctx context.Context, id core.ID, update core.ItemUpdate) error {
	key := r.itemKey(id)
	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return storage.ErrNotFound
		}

		item := &core.Item{Id: id}
		item.Apply(update)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hashValues(item)...)
			return nil
		})
		return err
	}

	for i := 0; i < r.maxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			r.logger.Debug("item update raced, retrying", "id", id, "attempt", i+1)
			continue
		}
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("redis update item %d: %w", id, err)
	}
	return fmt.Errorf("redis update item %d: %w", id, redis.TxFailedErr)
}

// FindByID implements storage.ItemRepository.
func (r *ItemRepository) FindByID(ctx context.Context, id core.ID) (*core.Item, error) {
	cmd := r.client.HGetAll(ctx, r.itemKey(id))
	item, err := scanItem(cmd)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("redis find item %d: %w", id, err)
	}
	return item, nil
}

// FindAll implements storage.ItemRepository.
func (r *ItemRepository) FindAll(ctx context.Context, cond core.SearchCondition) ([]*core.Item, error) {
	members, err := r.client.ZRange(ctx, r.idsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis find items: %w", err)
	}

	items := make([]*core.Item, 0, len(members))
	if len(members) == 0 {
		return items, nil
	}

	cmds := make([]*redis.MapStringStringCmd, 0, len(members))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, member := range members {
			id, err := strconv.ParseUint(member, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad id %q", storage.ErrSerializationFailed, member)
			}
			cmds = append(cmds, pipe.HGetAll(ctx, r.itemKey(core.ID(id))))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis find items: %w", err)
	}

	for _, cmd := range cmds {
		item, err := scanItem(cmd)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis find items: %w", err)
		}
		if cond.Matches(item) {
			items = append(items, item)
		}
	}
	return items, nil
}

// Close closes the client.
func (r *ItemRepository) Close() error {
	return r.client.Close()
}

func hashValues(item *core.Item) []any {
	return []any{
		"id", uint64(item.Id),
		"item_name", item.ItemName,
		"price", item.Price,
		"quantity", item.Quantity,
	}
}

func scanItem(cmd *redis.MapStringStringCmd) (*core.Item, error) {
	fields, err := cmd.Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, storage.ErrNotFound
	}
	var h itemHash
	if err := cmd.Scan(&h); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return h.toItem(), nil
}
