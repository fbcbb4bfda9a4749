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

package itemstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/poiesic/itemstore/config"
	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func openTestCatalog(t *testing.T, cfg *config.Config) *Catalog {
	t.Helper()
	cat, err := Open(context.Background(), cfg, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func exerciseCatalog(t *testing.T, cat *Catalog) {
	t.Helper()
	ctx := context.Background()

	saved, err := cat.Save(ctx, &core.Item{ItemName: "item1", Price: 10000, Quantity: 10})
	require.NoError(t, err)
	require.NotZero(t, saved.Id)

	require.NoError(t, cat.Update(ctx, saved.Id, core.ItemUpdate{ItemName: "item2", Price: 20000, Quantity: 30}))

	found, err := cat.FindByID(ctx, saved.Id)
	require.NoError(t, err)
	assert.Equal(t, &core.Item{Id: saved.Id, ItemName: "item2", Price: 20000, Quantity: 30}, found)

	items, err := cat.FindItems(ctx, core.SearchCondition{ItemName: "item", MaxPrice: core.MaxPrice(20000)})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, saved.Id, items[0].Id)
}

func TestOpen_Memory(t *testing.T) {
	cat := openTestCatalog(t, nil)
	assert.Equal(t, config.BackendMemory, cat.Backend())
	assert.NotNil(t, cat.Repository())
	exerciseCatalog(t, cat)
}

func TestOpen_BadgerInMemory(t *testing.T) {
	cat := openTestCatalog(t, config.NewConfig(config.WithBackend(config.BackendBadger)))
	assert.Equal(t, config.BackendBadger, cat.Backend())
	exerciseCatalog(t, cat)
}

func TestOpen_BadgerPersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "items")
	cfg := config.NewConfig(config.WithBackend(config.BackendBadger), config.WithBadgerPath(dir))
	ctx := context.Background()

	cat, err := Open(ctx, cfg, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	saved, err := cat.Save(ctx, &core.Item{ItemName: "itemA", Price: 1, Quantity: 2})
	require.NoError(t, err)
	require.NoError(t, cat.Close())

	cat, err = Open(ctx, cfg, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer cat.Close()

	found, err := cat.FindByID(ctx, saved.Id)
	require.NoError(t, err)
	assert.Equal(t, saved, found)
}

func TestOpen_BadgerPathIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not_a_dir")
	require.NoError(t, os.WriteFile(path, []byte("test"), 0644))

	cat, err := Open(context.Background(),
		config.NewConfig(config.WithBackend(config.BackendBadger), config.WithBadgerPath(path)),
		WithRegisterer(prometheus.NewRegistry()))
	assert.Error(t, err)
	assert.Nil(t, cat)
}

func TestOpen_Redis(t *testing.T) {
	srv := miniredis.RunT(t)
	cat := openTestCatalog(t, config.NewConfig(
		config.WithBackend(config.BackendRedis),
		config.WithRedisAddr(srv.Addr()),
		config.WithRedisKeyPrefix("catalog:"),
	))
	exerciseCatalog(t, cat)

	assert.Equal(t, "item2", srv.HGet("catalog:item:1", "item_name"))
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), config.NewConfig(config.WithBackend(config.BackendPgx)))
	assert.ErrorIs(t, err, config.ErrMissingSetting)

	_, err = Open(context.Background(), config.NewConfig(config.WithBackend("cassandra")))
	assert.ErrorIs(t, err, config.ErrUnknownBackend)
}

func TestCatalog_Validation(t *testing.T) {
	cat := openTestCatalog(t, nil)
	ctx := context.Background()

	_, err := cat.Save(ctx, &core.Item{ItemName: "abcdefghijk", Price: 1, Quantity: 1})
	assert.ErrorIs(t, err, core.ErrItemNameTooLong)
	_, err = cat.Save(ctx, nil)
	assert.ErrorIs(t, err, core.ErrInvalidItem)

	saved, err := cat.Save(ctx, &core.Item{ItemName: "itemA", Price: 1, Quantity: 1})
	require.NoError(t, err)
	err = cat.Update(ctx, saved.Id, core.ItemUpdate{ItemName: "itemA", Price: -1})
	assert.ErrorIs(t, err, core.ErrNegativePrice)

	items, err := cat.FindItems(ctx, core.SearchCondition{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCatalog_MaxNameLengthDisabled(t *testing.T) {
	cat := openTestCatalog(t, config.NewConfig(config.WithMaxNameLength(0)))

	_, err := cat.Save(context.Background(), &core.Item{ItemName: "a much longer item name", Price: 1, Quantity: 1})
	assert.NoError(t, err)
}

func TestCatalog_NotFound(t *testing.T) {
	cat := openTestCatalog(t, nil)
	ctx := context.Background()

	_, err := cat.FindByID(ctx, 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	err = cat.Update(ctx, 42, core.ItemUpdate{ItemName: "x", Price: 1, Quantity: 1})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCatalog_Telemetry(t *testing.T) {
	reg := prometheus.NewRegistry()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	cat, err := Open(context.Background(), nil, WithRegisterer(reg), WithTracerProvider(tp))
	require.NoError(t, err)
	defer cat.Close()

	_, err = cat.Save(context.Background(), &core.Item{ItemName: "itemA", Price: 1, Quantity: 1})
	require.NoError(t, err)
	_, err = cat.FindByID(context.Background(), 99)
	require.ErrorIs(t, err, storage.ErrNotFound)

	count, err := testutil.GatherAndCount(reg, "itemstore_repository_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "itemstore.Save", spans[0].Name())
	assert.Equal(t, "itemstore.FindByID", spans[1].Name())
}

func TestCatalog_Close(t *testing.T) {
	cat, err := Open(context.Background(), config.NewConfig(config.WithBackend(config.BackendBadger)),
		WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, cat.Close())

	_, err = cat.FindItems(context.Background(), core.SearchCondition{})
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
