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

// Package mongostore implements storage.ItemRepository on MongoDB.
//
// Each item is one document in the item collection keyed by its numeric
// ID. IDs come from a counter document incremented atomically with
// findOneAndUpdate.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/storage"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	DefaultDatabase   = "itemstore"
	itemCollection    = "item"
	counterCollection = "counters"
	itemCounterID     = "item"
)

type itemDoc struct {
	ID       int64  `bson:"_id"`
	ItemName string `bson:"item_name"`
	Price    int    `bson:"price"`
	Quantity int    `bson:"quantity"`
}

func (d *itemDoc) toItem() *core.Item {
	return &core.Item{
		Id:       core.ID(d.ID),
		ItemName: d.ItemName,
		Price:    d.Price,
		Quantity: d.Quantity,
	}
}

type counterDoc struct {
	Seq int64 `bson:"seq"`
}

// ItemRepository stores items in a MongoDB database.
type ItemRepository struct {
	client   *mongo.Client
	items    *mongo.Collection
	counters *mongo.Collection
	logger   *slog.Logger
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

// Connect creates a client for uri and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// NewItemRepository creates a repository in database. The repository owns
// client and disconnects it in Close.
func NewItemRepository(client *mongo.Client, database string, opts ...Option) *ItemRepository {
	if database == "" {
		database = DefaultDatabase
	}
	db := client.Database(database)
	r := &ItemRepository{
		client:   client,
		items:    db.Collection(itemCollection),
		counters: db.Collection(counterCollection),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ItemRepository) nextID(ctx context.Context) (core.ID, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var c counterDoc
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": itemCounterID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&c)
	if err != nil {
		return 0, err
	}
	return core.ID(c.Seq), nil
}

// Save implements storage.ItemRepository.
func (r *ItemRepository) Save(ctx context.Context, item *core.Item) (*core.Item, error) {
	if item == nil {
		return nil, storage.ErrNilItem
	}

	id, err := r.nextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("mongo next id: %w", err)
	}
	saved := item.Clone()
	saved.Id = id

	doc := itemDoc{
		ID:       int64(saved.Id),
		ItemName: saved.ItemName,
		Price:    saved.Price,
		Quantity: saved.Quantity,
	}
	if _, err := r.items.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("mongo insert item %d: %w", saved.Id, err)
	}
	return saved, nil
}

// Update implements storage.ItemRepository.
func (r *ItemRepository) Update(ctx context.Context, id core.ID, update core.ItemUpdate) error {
	res, err := r.items.UpdateOne(ctx,
		bson.M{"_id": int64(id)},
		bson.M{"$set": bson.M{
			"item_name": update.ItemName,
			"price":     update.Price,
			"quantity":  update.Quantity,
		}},
	)
	if err != nil {
		return fmt.Errorf("mongo update item %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FindByID implements storage.ItemRepository.
func (r *ItemRepository) FindByID(ctx context.Context, id core.ID) (*core.Item, error) {
	var doc itemDoc
	err := r.items.FindOne(ctx, bson.M{"_id": int64(id)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("mongo find item %d: %w", id, err)
	}
	return doc.toItem(), nil
}

// FindAll implements storage.ItemRepository.
func (r *ItemRepository) FindAll(ctx context.Context, cond core.SearchCondition) ([]*core.Item, error) {
	filter := buildFilter(cond)
	r.logger.Debug("find items", "filter", filter)

	cursor, err := r.items.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo find items: %w", err)
	}
	var docs []itemDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo find items: %w", err)
	}

	items := make([]*core.Item, 0, len(docs))
	for i := range docs {
		items = append(items, docs[i].toItem())
	}
	return items, nil
}

// Close disconnects the client.
func (r *ItemRepository) Close() error {
	return r.client.Disconnect(context.Background())
}

// buildFilter translates cond into a query document. The name is matched
// as a quoted, case-sensitive regular expression.
func buildFilter(cond core.SearchCondition) bson.M {
	filter := bson.M{}
	if cond.NameFilterActive() {
		filter["item_name"] = bson.M{"$regex": regexp.QuoteMeta(cond.ItemName)}
	}
	if cond.PriceFilterActive() {
		filter["price"] = bson.M{"$lte": *cond.MaxPrice}
	}
	return filter
}
