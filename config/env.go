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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read by FromEnv.
const (
	EnvBackend       = "ITEMSTORE_BACKEND"
	EnvDatabaseURL   = "DATABASE_URL"
	EnvBadgerPath    = "ITEMSTORE_BADGER_PATH"
	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPrefix   = "ITEMSTORE_REDIS_PREFIX"
	EnvMongoURI      = "MONGODB_URI"
	EnvMongoDatabase = "MONGODB_DATABASE"
	EnvMaxNameLength = "ITEMSTORE_MAX_NAME_LENGTH"
	EnvCreateSchema  = "ITEMSTORE_CREATE_SCHEMA"
)

// LoadEnvFiles loads variables from the given dotenv files without
// overriding variables already set. Files that do not exist are skipped.
// With no arguments it tries .env in the working directory.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: loading %s: %w", f, err)
		}
	}
	return nil
}

// FromEnv loads the dotenv files and builds a Config from the process
// environment on top of the defaults. Overrides are applied last, so
// command line flags win over the environment. The result is validated.
func FromEnv(files []string, overrides ...Option) (*Config, error) {
	if err := LoadEnvFiles(files...); err != nil {
		return nil, err
	}

	opts, err := envOptions()
	if err != nil {
		return nil, err
	}
	cfg := NewConfig(append(opts, overrides...)...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOptions() ([]Option, error) {
	var opts []Option

	if v := os.Getenv(EnvBackend); v != "" {
		b, err := ParseBackend(v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithBackend(b))
	}
	if dsn := postgresDSN(); dsn != "" {
		opts = append(opts, WithDSN(dsn))
	}
	if v := os.Getenv(EnvBadgerPath); v != "" {
		opts = append(opts, WithBadgerPath(v))
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		opts = append(opts, WithRedisAddr(v))
	}
	if v := os.Getenv(EnvRedisPrefix); v != "" {
		opts = append(opts, WithRedisKeyPrefix(v))
	}
	if v := os.Getenv(EnvMongoURI); v != "" {
		opts = append(opts, WithMongoURI(v))
	}
	if v := os.Getenv(EnvMongoDatabase); v != "" {
		opts = append(opts, WithMongoDatabase(v))
	}
	if v := os.Getenv(EnvMaxNameLength); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidSetting, EnvMaxNameLength, err)
		}
		opts = append(opts, WithMaxNameLength(n))
	}
	if v := os.Getenv(EnvCreateSchema); v != "" {
		create, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidSetting, EnvCreateSchema, err)
		}
		opts = append(opts, WithCreateSchema(create))
	}
	return opts, nil
}

// postgresDSN prefers DATABASE_URL and falls back to the discrete DB_*
// variables when host, user and database name are all present.
func postgresDSN() string {
	if url := os.Getenv(EnvDatabaseURL); url != "" {
		return url
	}

	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbname := os.Getenv("DB_NAME")
	sslmode := os.Getenv("DB_SSLMODE")

	if host == "" || user == "" || dbname == "" {
		return ""
	}
	if port == "" {
		port = "5432"
	}
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)
}
