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

package core

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxNameLength matches the item_name column width of the relational schema.
const DefaultMaxNameLength = 10

// ValidateItem validates an Item according to domain rules.
//
// Validation rules:
//   - ItemName must contain non-whitespace text
//   - ItemName must not exceed maxNameLength runes (0 disables the check)
//   - Price and Quantity must not be negative
//
// NOT validated:
//   - ID (assigned by the store)
//
// Stores never call this; it is for callers that accept untrusted input.
func ValidateItem(item *Item, maxNameLength int) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidItem)
	}
	if err := validateFields(item.ItemName, item.Price, item.Quantity, maxNameLength); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}
	return nil
}

// ValidateUpdate validates an ItemUpdate with the same rules as ValidateItem.
func ValidateUpdate(update ItemUpdate, maxNameLength int) error {
	if err := validateFields(update.ItemName, update.Price, update.Quantity, maxNameLength); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUpdate, err)
	}
	return nil
}

func validateFields(name string, price, quantity, maxNameLength int) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyItemName
	}
	if maxNameLength > 0 {
		if n := utf8.RuneCountInString(name); n > maxNameLength {
			return fmt.Errorf("%w: %d > %d", ErrItemNameTooLong, n, maxNameLength)
		}
	}
	if price < 0 {
		return fmt.Errorf("%w: %d", ErrNegativePrice, price)
	}
	if quantity < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeQuantity, quantity)
	}
	return nil
}
