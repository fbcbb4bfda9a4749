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

import "errors"

// Domain validation errors
var (
	// ErrInvalidItem indicates an Item failed validation.
	ErrInvalidItem = errors.New("invalid item")

	// ErrInvalidUpdate indicates an ItemUpdate failed validation.
	ErrInvalidUpdate = errors.New("invalid item update")

	// ErrEmptyItemName indicates the ItemName field is blank.
	ErrEmptyItemName = errors.New("item name cannot be empty")

	// ErrItemNameTooLong indicates the ItemName exceeds the configured limit.
	ErrItemNameTooLong = errors.New("item name too long")

	// ErrNegativePrice indicates a price below zero.
	ErrNegativePrice = errors.New("price cannot be negative")

	// ErrNegativeQuantity indicates a quantity below zero.
	ErrNegativeQuantity = errors.New("quantity cannot be negative")
)
