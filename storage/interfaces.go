package storage

import (
	"context"

	"github.com/poiesic/itemstore/core"
)

// ItemRepository provides operations for managing catalog items.
// Implementations must be thread-safe and support concurrent access.
type ItemRepository interface {
	// Save stores a new item.
	// Always generates a new ID; any ID already on the input is ignored.
	// Returns the stored item with its ID populated.
	Save(ctx context.Context, item *core.Item) (*core.Item, error)

	// Update replaces the name, price and quantity of an existing item.
	// The ID never changes.
	// Returns ErrNotFound if the item doesn't exist.
	Update(ctx context.Context, id core.ID, update core.ItemUpdate) error

	// FindByID retrieves a single item by ID.
	// Returns ErrNotFound if the item doesn't exist.
	FindByID(ctx context.Context, id core.ID) (*core.Item, error)

	// FindAll retrieves every item matching cond, in insertion order.
	// Returns an empty slice when nothing matches.
	FindAll(ctx context.Context, cond core.SearchCondition) ([]*core.Item, error)

	// Close releases the resources held by the repository.
	Close() error
}
