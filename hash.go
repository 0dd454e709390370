// Copyright 2024 The Cockroach Authors
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

package hashset

import (
	"hash/maphash"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Hasher maps a key to an unsigned hash value. A table calls its Hasher on
// every lookup, so it must be deterministic for the lifetime of the table and
// equal keys must hash equally.
type Hasher[K comparable] func(key K) uint64

// DefaultHasher returns the hasher tables use when none is configured.
//
// Integer keys hash to their own value, so a table of small integers lays
// its keys out in a predictable way. Floats hash to their IEEE 754 bits with
// -0 folded into +0, and strings use xxhash. Both are seedless and therefore
// stable across processes. Every other comparable type is hashed with
// hash/maphash under a seed chosen when DefaultHasher is called.
//
// NaN keys are never equal to themselves and can be inserted but never found.
func DefaultHasher[K comparable]() Hasher[K] {
	seed := maphash.MakeSeed()
	return func(key K) uint64 {
		switch k := any(key).(type) {
		case int:
			return uint64(k)
		case int8:
			return uint64(k)
		case int16:
			return uint64(k)
		case int32:
			return uint64(k)
		case int64:
			return uint64(k)
		case uint:
			return uint64(k)
		case uint8:
			return uint64(k)
		case uint16:
			return uint64(k)
		case uint32:
			return uint64(k)
		case uint64:
			return k
		case uintptr:
			return uint64(k)
		case bool:
			if k {
				return 1
			}
			return 0
		case float32:
			return floatBits(float64(k))
		case float64:
			return floatBits(k)
		case string:
			return xxhash.Sum64String(k)
		default:
			return maphash.Comparable(seed, key)
		}
	}
}

func floatBits(f float64) uint64 {
	if f == 0 {
		return 0
	}
	return math.Float64bits(f)
}
