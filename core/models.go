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

//go:generate go run ../cmd/musgen

import (
	"strconv"
	"strings"
)

// ID is a unique identifier for catalog items.
// It is assigned by the store on creation. Zero means unassigned.
type ID uint64

// String returns the decimal form of the ID.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses a decimal ID.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(v), nil
}

// Item is a single catalog entry.
type Item struct {
	Id       ID
	ItemName string
	Price    int
	Quantity int
}

// Clone returns a copy of the item. A nil item clones to nil.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Apply overwrites the mutable fields of the item with the update values.
// The Id is left untouched.
func (i *Item) Apply(u ItemUpdate) {
	i.ItemName = u.ItemName
	i.Price = u.Price
	i.Quantity = u.Quantity
}

// ItemUpdate carries whole-record replacement values for an existing item.
type ItemUpdate struct {
	ItemName string
	Price    int
	Quantity int
}

// SearchCondition filters items in FindAll.
//
// ItemName is a case-sensitive substring filter. It is only applied when it
// contains at least one non-whitespace character. MaxPrice is an inclusive
// upper bound applied when non-nil. Active filters are combined with AND;
// a zero SearchCondition matches every item.
type SearchCondition struct {
	ItemName string
	MaxPrice *int
}

// NameFilterActive reports whether the name filter applies.
func (c SearchCondition) NameFilterActive() bool {
	return strings.TrimSpace(c.ItemName) != ""
}

// PriceFilterActive reports whether the price filter applies.
func (c SearchCondition) PriceFilterActive() bool {
	return c.MaxPrice != nil
}

// IsEmpty reports whether no filter applies.
func (c SearchCondition) IsEmpty() bool {
	return !c.NameFilterActive() && !c.PriceFilterActive()
}

// Matches evaluates the condition against an item.
func (c SearchCondition) Matches(item *Item) bool {
	if item == nil {
		return false
	}
	if c.NameFilterActive() && !strings.Contains(item.ItemName, c.ItemName) {
		return false
	}
	if c.PriceFilterActive() && item.Price > *c.MaxPrice {
		return false
	}
	return true
}

// MaxPrice is a convenience for building a SearchCondition price bound.
func MaxPrice(p int) *int {
	return &p
}
