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

// Package hashset holds what the two hash set implementations in this module
// share: the Hasher type, the default hasher, and the error kinds.
//
// # Tables
//
// Package openaddr implements a set on a single slice of slots. Collisions
// are resolved in place with quadratic probing: the i'th candidate slot for a
// key is (hash(key) + i*i) mod capacity. Removal is lazy; a removed key's slot
// becomes a tombstone which keeps probe sequences passing through it intact
// and is only reclaimed by the next rehash. The capacity is always prime and
// the table grows once the live keys plus tombstones would exceed half of it,
// which guarantees every probe sequence reaches an empty slot.
//
// Package chaining implements a set on a slice of buckets, each a small
// slice of keys with the most recently inserted key first. It exposes the
// bucket interface (BucketCount, BucketSize, Bucket) and the hash policy
// (LoadFactor, SetMaxLoadFactor, Rehash) of a conventional unordered set.
//
// Both tables grow to the smallest prime >= 2*capacity+1 and both are NOT
// goroutine-safe.
//
// # Dumps
//
// Both tables implement io.WriterTo. An empty table writes "<empty>\n". An
// open addressing table writes one "<slot>: <key>" line per live key in slot
// order, and a chaining table one "<bucket>: [<k1>, <k2>]" line per non-empty
// bucket in bucket order.
package hashset
