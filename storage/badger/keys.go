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

package badger

import (
	"encoding/binary"

	"github.com/poiesic/itemstore/core"
)

const (
	itemPrefix = "item:"
	itemIDSeq  = "itemseq"
)

// makeItemKey generates a key for an item by ID.
// Format: prefix + big-endian ID, so prefix iteration yields ID order.
func makeItemKey(id core.ID) []byte {
	buf := make([]byte, len(itemPrefix)+8)
	offset := copy(buf, itemPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// itemIDFromKey extracts the ID from an item key.
func itemIDFromKey(key []byte) (core.ID, bool) {
	if len(key) != len(itemPrefix)+8 || string(key[:len(itemPrefix)]) != itemPrefix {
		return 0, false
	}
	return core.ID(binary.BigEndian.Uint64(key[len(itemPrefix):])), true
}
