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

// Package storage provides the storage abstraction layer for itemstore.
//
// ItemRepository decouples the catalog from any particular backend. The
// subpackages provide interchangeable implementations:
//
//   - memory: process-local map, lost on exit
//   - badger: embedded BadgerDB, persistent or in-memory
//   - sqldb: database/sql over the pgx driver
//   - postgres: native pgx pool with struct row mapping
//   - orm: GORM models and scopes
//   - redisstore: one hash per item plus a sorted set of IDs
//   - mongostore: one document per item, counter document for IDs
//
// The instrumented subpackage wraps any of them with metrics and traces,
// and storagetest holds the behavioral suite every backend must pass.
//
// # Usage
//
//	repo, err := badger.NewItemRepository(backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
//	saved, err := repo.Save(ctx, &core.Item{ItemName: "itemA", Price: 10000, Quantity: 10})
//
// # Filtering
//
// FindAll takes a core.SearchCondition. Relational backends turn it into a
// where clause with BuildWhere; the others evaluate
// core.SearchCondition.Matches against each stored item. Both paths agree on
// substring semantics because BuildWhere escapes LIKE metacharacters.
//
// # Ordering
//
// IDs are handed out in increasing order, so every backend returns FindAll
// results sorted by ID, which is insertion order.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
