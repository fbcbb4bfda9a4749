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

// Command itemstore manages an item catalog on any supported backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/poiesic/itemstore"
	"github.com/poiesic/itemstore/config"
	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/importer"
	"github.com/poiesic/itemstore/internal/telemetry"
	"github.com/poiesic/itemstore/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// session carries state shared by the Before hook, the commands and the
// After hook of a single run.
type session struct {
	registry *prometheus.Registry
	shutdown telemetry.ShutdownFunc
}

func newApp(stdout, stderr io.Writer) *cli.App {
	s := &session{registry: prometheus.NewRegistry()}

	return &cli.App{
		Name:      "itemstore",
		Usage:     "Item catalog over interchangeable storage backends",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "backend",
				Aliases: []string{"b"},
				Usage:   "Storage backend (" + backendNames() + ")",
			},
			&cli.StringFlag{
				Name:  "dsn",
				Usage: "Postgres connection string for the sql, pgx and gorm backends",
			},
			&cli.StringFlag{
				Name:  "badger-path",
				Usage: "BadgerDB directory (in memory when empty)",
			},
			&cli.StringFlag{
				Name:  "redis-addr",
				Usage: "Redis server address",
			},
			&cli.StringFlag{
				Name:  "mongo-uri",
				Usage: "MongoDB connection URI",
			},
			&cli.StringFlag{
				Name:  "mongo-database",
				Usage: "MongoDB database name",
			},
			&cli.IntFlag{
				Name:  "max-name-length",
				Usage: "Maximum item name length, 0 disables the check",
			},
			&cli.BoolFlag{
				Name:  "create-schema",
				Usage: "Create the item table on relational backends",
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Load environment variables from `FILE` (repeatable, defaults to .env)",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write Prometheus metrics in text format to `FILE` on exit",
			},
		},
		Before: s.before,
		After:  s.after,
		Commands: []*cli.Command{
			{
				Name:   "create",
				Usage:  "Create an item and print it",
				Action: s.createCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Item name",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "price",
						Aliases:  []string{"p"},
						Usage:    "Item price",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "quantity",
						Aliases: []string{"q"},
						Usage:   "Item quantity",
					},
				},
			},
			{
				Name:   "update",
				Usage:  "Overwrite the name, price and quantity of an item",
				Action: s.updateCommand,
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:     "id",
						Usage:    "Item id",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "New item name",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "price",
						Aliases:  []string{"p"},
						Usage:    "New item price",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "quantity",
						Aliases:  []string{"q"},
						Usage:    "New item quantity",
						Required: true,
					},
				},
			},
			{
				Name:   "get",
				Usage:  "Print a single item",
				Action: s.getCommand,
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:     "id",
						Usage:    "Item id",
						Required: true,
					},
				},
			},
			{
				Name:   "list",
				Usage:  "Print items matching the filters in id order",
				Action: s.listCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "name",
						Aliases: []string{"n"},
						Usage:   "Only items whose name contains this text",
					},
					&cli.IntFlag{
						Name:  "max-price",
						Usage: "Only items priced at or below this value",
					},
				},
			},
			{
				Name:   "import",
				Usage:  "Import items from a CSV file with item_name, price and quantity columns",
				Action: s.importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "CSV file to import",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent saves",
						Value: max(runtime.NumCPU()/2, 1),
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N rows",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum save attempts per row",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff between save attempts",
						Value: 100 * time.Millisecond,
					},
				},
			},
			{
				Name:   "backends",
				Usage:  "List the supported storage backends",
				Action: backendsCommand,
			},
		},
	}
}

func backendNames() string {
	names := make([]string, len(config.Backends))
	for i, b := range config.Backends {
		names[i] = string(b)
	}
	return strings.Join(names, ", ")
}

func (s *session) before(c *cli.Context) error {
	if err := setupLogger(c); err != nil {
		return err
	}
	shutdown, err := telemetry.Init(c.Context, c.App.Name)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.shutdown = shutdown
	return nil
}

func (s *session) after(c *cli.Context) error {
	var errs []error
	if s.shutdown != nil {
		errs = append(errs, s.shutdown(context.Background()))
	}
	if path := c.String("metrics-file"); path != "" {
		if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}

// loadConfig reads the environment and applies any global flags that were
// set explicitly.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var overrides []config.Option
	if c.IsSet("backend") {
		b, err := config.ParseBackend(c.String("backend"))
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, config.WithBackend(b))
	}
	if c.IsSet("dsn") {
		overrides = append(overrides, config.WithDSN(c.String("dsn")))
	}
	if c.IsSet("badger-path") {
		overrides = append(overrides, config.WithBadgerPath(c.String("badger-path")))
	}
	if c.IsSet("redis-addr") {
		overrides = append(overrides, config.WithRedisAddr(c.String("redis-addr")))
	}
	if c.IsSet("mongo-uri") {
		overrides = append(overrides, config.WithMongoURI(c.String("mongo-uri")))
	}
	if c.IsSet("mongo-database") {
		overrides = append(overrides, config.WithMongoDatabase(c.String("mongo-database")))
	}
	if c.IsSet("max-name-length") {
		overrides = append(overrides, config.WithMaxNameLength(c.Int("max-name-length")))
	}
	if c.IsSet("create-schema") {
		overrides = append(overrides, config.WithCreateSchema(c.Bool("create-schema")))
	}
	return config.FromEnv(c.StringSlice("env-file"), overrides...)
}

func (s *session) openCatalog(c *cli.Context) (*itemstore.Catalog, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cat, err := itemstore.Open(c.Context, cfg,
		itemstore.WithLogger(slog.Default()),
		itemstore.WithRegisterer(s.registry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return cat, cfg, nil
}

func (s *session) createCommand(c *cli.Context) error {
	cat, _, err := s.openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	saved, err := cat.Save(c.Context, &core.Item{
		ItemName: c.String("name"),
		Price:    c.Int("price"),
		Quantity: c.Int("quantity"),
	})
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	writeItem(c.App.Writer, saved)
	return nil
}

func (s *session) updateCommand(c *cli.Context) error {
	cat, _, err := s.openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	id := core.ID(c.Uint64("id"))
	err = cat.Update(c.Context, id, core.ItemUpdate{
		ItemName: c.String("name"),
		Price:    c.Int("price"),
		Quantity: c.Int("quantity"),
	})
	if err != nil {
		return notFoundOr(id, err, "failed to update item")
	}

	updated, err := cat.FindByID(c.Context, id)
	if err != nil {
		return notFoundOr(id, err, "failed to read item")
	}
	writeItem(c.App.Writer, updated)
	return nil
}

func (s *session) getCommand(c *cli.Context) error {
	cat, _, err := s.openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	id := core.ID(c.Uint64("id"))
	item, err := cat.FindByID(c.Context, id)
	if err != nil {
		return notFoundOr(id, err, "failed to read item")
	}
	writeItem(c.App.Writer, item)
	return nil
}

func (s *session) listCommand(c *cli.Context) error {
	cat, _, err := s.openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	cond := core.SearchCondition{ItemName: c.String("name")}
	if c.IsSet("max-price") {
		cond.MaxPrice = core.MaxPrice(c.Int("max-price"))
	}

	items, err := cat.FindItems(c.Context, cond)
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}
	for _, item := range items {
		writeItem(c.App.Writer, item)
	}
	return nil
}

func (s *session) importCommand(c *cli.Context) error {
	workers := c.Int("workers")
	if workers <= 0 {
		return fmt.Errorf("workers must be greater than 0")
	}
	interval := c.Int("report-interval")
	if interval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	maxRetries := c.Int("max-retries")
	if maxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	cat, cfg, err := s.openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	imp, err := importer.New(cat.Repository(),
		importer.WithPoolSize(workers),
		importer.WithLogger(slog.Default()),
		importer.WithMaxNameLength(cfg.MaxNameLength),
		importer.WithProgress(c.App.ErrWriter, interval),
		importer.WithRetry(maxRetries, c.Duration("retry-delay")))
	if err != nil {
		return fmt.Errorf("failed to create importer: %w", err)
	}
	defer imp.Release()

	res, err := imp.ImportFile(c.Context, c.String("file"))
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	for _, rowErr := range res.Errors {
		fmt.Fprintf(c.App.ErrWriter, "%v\n", rowErr)
	}
	fmt.Fprintf(c.App.Writer, "imported %d, failed %d\n", res.Imported, res.Failed())
	return nil
}

func backendsCommand(c *cli.Context) error {
	for _, b := range config.Backends {
		fmt.Fprintln(c.App.Writer, b)
	}
	return nil
}

func notFoundOr(id core.ID, err error, msg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("item %s not found", id)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// writeItem prints one tab separated line: id, name, price, quantity.
func writeItem(w io.Writer, item *core.Item) {
	fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", item.Id, item.ItemName, item.Price, item.Quantity)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	errWriter := c.App.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(errWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
