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

// Package config selects and configures the item storage backend.
package config

import (
	"fmt"
	"strings"

	"github.com/poiesic/itemstore/core"
)

// Backend names a storage implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendBadger Backend = "badger"
	BackendSQL    Backend = "sql"
	BackendPgx    Backend = "pgx"
	BackendGorm   Backend = "gorm"
	BackendRedis  Backend = "redis"
	BackendMongo  Backend = "mongo"
)

// Backends lists every supported backend in display order.
var Backends = []Backend{
	BackendMemory,
	BackendBadger,
	BackendSQL,
	BackendPgx,
	BackendGorm,
	BackendRedis,
	BackendMongo,
}

// ParseBackend returns the backend named by s. Matching ignores case and
// surrounding whitespace.
func ParseBackend(s string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Backends {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
}

// Relational reports whether the backend stores items in the Postgres
// item table.
func (b Backend) Relational() bool {
	return b == BackendSQL || b == BackendPgx || b == BackendGorm
}

// Config holds storage configuration.
type Config struct {
	// Backend selects the repository implementation.
	// Default: memory
	Backend Backend

	// DSN is the Postgres connection string used by the sql, pgx and gorm
	// backends.
	DSN string

	// BadgerPath is the badger data directory. Empty runs badger in memory.
	BadgerPath string

	// RedisAddr is the host:port of the Redis server.
	// Default: localhost:6379
	RedisAddr string

	// RedisKeyPrefix namespaces every key written by the redis backend.
	// Default: itemstore:
	RedisKeyPrefix string

	// MongoURI is the MongoDB connection URI.
	MongoURI string

	// MongoDatabase is the MongoDB database name.
	// Default: itemstore
	MongoDatabase string

	// MaxNameLength bounds item names on write. Zero disables the check.
	// Default: 10, the width of the item_name column.
	MaxNameLength int

	// CreateSchema creates the item table on open for relational backends.
	CreateSchema bool
}

// Option is a functional option for configuring a Config.
type Option func(*Config)

// WithBackend sets the backend kind.
func WithBackend(b Backend) Option {
	return func(c *Config) {
		c.Backend = b
	}
}

// WithDSN sets the Postgres connection string.
func WithDSN(dsn string) Option {
	return func(c *Config) {
		c.DSN = dsn
	}
}

// WithBadgerPath sets the badger data directory.
func WithBadgerPath(path string) Option {
	return func(c *Config) {
		c.BadgerPath = path
	}
}

// WithRedisAddr sets the Redis server address.
func WithRedisAddr(addr string) Option {
	return func(c *Config) {
		c.RedisAddr = addr
	}
}

// WithRedisKeyPrefix sets the Redis key namespace.
func WithRedisKeyPrefix(prefix string) Option {
	return func(c *Config) {
		c.RedisKeyPrefix = prefix
	}
}

// WithMongoURI sets the MongoDB connection URI.
func WithMongoURI(uri string) Option {
	return func(c *Config) {
		c.MongoURI = uri
	}
}

// WithMongoDatabase sets the MongoDB database name.
func WithMongoDatabase(name string) Option {
	return func(c *Config) {
		c.MongoDatabase = name
	}
}

// WithMaxNameLength sets the maximum accepted item name length.
func WithMaxNameLength(n int) Option {
	return func(c *Config) {
		c.MaxNameLength = n
	}
}

// WithCreateSchema enables table creation on open.
func WithCreateSchema(create bool) Option {
	return func(c *Config) {
		c.CreateSchema = create
	}
}

// DefaultConfig returns a Config for the in-memory backend.
func DefaultConfig() *Config {
	return &Config{
		Backend:        BackendMemory,
		RedisAddr:      "localhost:6379",
		RedisKeyPrefix: "itemstore:",
		MongoDatabase:  "itemstore",
		MaxNameLength:  core.DefaultMaxNameLength,
	}
}

// NewConfig creates a Config with the default values and applies the
// provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithBackend(BackendPgx),
//	    WithDSN("postgres://localhost:5432/items"),
//	)
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize puts the configuration in canonical form.
func (c *Config) Normalize() {
	c.Backend = Backend(strings.ToLower(strings.TrimSpace(string(c.Backend))))
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	c.DSN = strings.TrimSpace(c.DSN)
	c.BadgerPath = strings.TrimSpace(c.BadgerPath)
	c.RedisAddr = strings.TrimSpace(c.RedisAddr)
	c.MongoURI = strings.TrimSpace(c.MongoURI)
	c.MongoDatabase = strings.TrimSpace(c.MongoDatabase)
}

// Validate checks that the selected backend has what it needs.
// It normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}
	if c.MaxNameLength < 0 {
		return fmt.Errorf("%w: MaxNameLength must not be negative", ErrInvalidSetting)
	}

	switch c.Backend {
	case BackendSQL, BackendPgx, BackendGorm:
		if c.DSN == "" {
			return fmt.Errorf("%w: %s backend requires a DSN", ErrMissingSetting, c.Backend)
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis backend requires RedisAddr", ErrMissingSetting)
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("%w: mongo backend requires MongoURI", ErrMissingSetting)
		}
		if c.MongoDatabase == "" {
			return fmt.Errorf("%w: mongo backend requires MongoDatabase", ErrMissingSetting)
		}
	}
	return nil
}
