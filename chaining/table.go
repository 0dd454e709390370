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

// Package chaining implements a hash set using separate chaining: a slice of
// buckets, each holding the keys that hash to it with the most recently
// inserted key first.
//
// A Table grows to the smallest prime >= 2*buckets+1 before an insert would
// push its load factor (keys per bucket) above the max load factor, which
// defaults to 1. If that prime is still too small for the keys, the table
// grows to the smallest bucket count that holds them instead. Lowering the max load factor below the current load factor
// grows the table immediately. Rehash rebuilds the table with an explicit
// bucket count, which may be smaller than the current one but never so small
// that the keys would exceed the max load factor.
package chaining

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/cockroachdb/hashset"
	"github.com/cockroachdb/hashset/internal/invariants"
	"github.com/cockroachdb/hashset/internal/prime"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DefaultCapacity is the number of buckets of a Table created with a
	// non-positive capacity.
	DefaultCapacity = 11
	// DefaultMaxLoadFactor is the max load factor of a Table created without
	// WithMaxLoadFactor.
	DefaultMaxLoadFactor = 1.0
)

// Table is an unordered set of keys of type K stored in a slice of buckets.
// By default a Table[K] hashes with hashset.DefaultHasher, though a different
// hash function can be specified using the WithHash option.
//
// A Table is NOT goroutine-safe.
type Table[K comparable] struct {
	hash          hashset.Hasher[K]
	buckets       [][]K
	maxLoadFactor float64
	logger        *zap.Logger
	// The number of keys across all buckets.
	used int
	// used/len(buckets), recomputed on every mutation.
	loadFactor float64
}

// New constructs a new Table with the specified number of buckets. If
// capacity is <= 0 the table starts out with DefaultCapacity buckets.
func New[K comparable](capacity int, options ...Option[K]) *Table[K] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	t := &Table[K]{
		hash:          hashset.DefaultHasher[K](),
		buckets:       make([][]K, capacity),
		maxLoadFactor: DefaultMaxLoadFactor,
		logger:        zap.NewNop(),
	}

	for _, op := range options {
		op.apply(t)
	}

	t.checkInvariants()
	return t
}

// IsEmpty returns true if the table holds no keys.
func (t *Table[K]) IsEmpty() bool {
	return t.used == 0
}

// Len returns the number of keys in the table.
func (t *Table[K]) Len() int {
	return t.used
}

// Hash returns the hash of key under the table's hash function.
func (t *Table[K]) Hash(key K) uint64 {
	return t.hash(key)
}

// Clear removes all keys from the table. The bucket count is unchanged.
func (t *Table[K]) Clear() {
	clear(t.buckets)
	t.used = 0
	t.loadFactor = 0
	t.checkInvariants()
}

// Insert adds key to the table, returning false without modifying the table
// if key is already present.
func (t *Table[K]) Insert(key K) bool {
	if t.Contains(key) {
		return false
	}
	if t.exceeds(t.used+1, len(t.buckets)) {
		// The bucket count needed for the new key may be larger than the
		// next prime, in which case rehash raises it.
		t.rehash(prime.Next(len(t.buckets)), t.used+1)
	}
	t.uncheckedInsert(key)
	t.used++
	t.loadFactor = float64(t.used) / float64(len(t.buckets))
	t.checkInvariants()
	return true
}

// Remove removes key from the table, returning the number of keys removed
// (0 or 1).
func (t *Table[K]) Remove(key K) int {
	i := t.Bucket(key)
	j := slices.Index(t.buckets[i], key)
	if j < 0 {
		return 0
	}
	// Insert never admits a duplicate, so this is the only match.
	t.buckets[i] = slices.Delete(t.buckets[i], j, j+1)
	t.used--
	t.loadFactor = float64(t.used) / float64(len(t.buckets))
	t.checkInvariants()
	return 1
}

// Contains returns true if key is in the table.
func (t *Table[K]) Contains(key K) bool {
	return slices.Contains(t.buckets[t.Bucket(key)], key)
}

// BucketCount returns the number of buckets.
func (t *Table[K]) BucketCount() int {
	return len(t.buckets)
}

// BucketSize returns the number of keys in bucket i.
func (t *Table[K]) BucketSize(i int) (int, error) {
	if i < 0 || i >= len(t.buckets) {
		return 0, errors.Wrapf(hashset.ErrOutOfRange, "bucket %d (bucket count %d)", i, len(t.buckets))
	}
	return len(t.buckets[i]), nil
}

// Bucket returns the index of the bucket key belongs in.
func (t *Table[K]) Bucket(key K) int {
	return int(t.hash(key) % uint64(len(t.buckets)))
}

// LoadFactor returns the average number of keys per bucket.
func (t *Table[K]) LoadFactor() float64 {
	return t.loadFactor
}

// MaxLoadFactor returns the load factor the table grows to stay under.
func (t *Table[K]) MaxLoadFactor() float64 {
	return t.maxLoadFactor
}

// SetMaxLoadFactor sets the max load factor, rehashing immediately if the
// current load factor exceeds it. It returns an error wrapping
// hashset.ErrInvalidArgument, and leaves the table untouched, if f is not
// positive or if the current keys would need more than prime.MaxSize buckets.
func (t *Table[K]) SetMaxLoadFactor(f float64) error {
	if !(f > 0) || !fits(max(t.used, 1), f) {
		return errors.Wrapf(hashset.ErrInvalidArgument, "max load factor %v", f)
	}
	t.maxLoadFactor = f
	if t.loadFactor > t.maxLoadFactor {
		t.Rehash(prime.Next(len(t.buckets)))
	}
	return nil
}

// Rehash rebuilds the table with n buckets. If n buckets cannot hold the
// current keys under the max load factor, the smallest bucket count that can
// is used instead, so Rehash(0) shrinks the table as far as possible. Rehash
// is a noop if n is the current bucket count.
func (t *Table[K]) Rehash(n int) {
	t.rehash(n, t.used)
}

// rehash rebuilds the table with n buckets, raised if necessary so that the
// given number of keys fits under the max load factor. Insert passes one more
// than the current number of keys to make room for the key it adds.
func (t *Table[K]) rehash(n, keys int) {
	if n == len(t.buckets) {
		return
	}
	if n < 0 {
		n = 0
	}
	if t.exceeds(keys, n) {
		if !fits(keys, t.maxLoadFactor) {
			panic(errors.Wrapf(hashset.ErrOutOfRange, "%d keys need more than %d buckets at max load factor %v",
				keys, prime.MaxSize, t.maxLoadFactor))
		}
		n = int(math.Ceil(float64(keys) / t.maxLoadFactor))
		// The division may round differently from exceeds. Settle on the
		// smallest n that exceeds accepts.
		for n > 1 && !t.exceeds(keys, n-1) {
			n--
		}
		for t.exceeds(keys, n) {
			n++
		}
	}
	if n < 1 {
		n = 1
	}

	oldBuckets := t.buckets
	t.logger.Debug("rehashing chaining table",
		zap.Int("old_capacity", len(oldBuckets)),
		zap.Int("new_capacity", n),
		zap.Int("size", t.used))

	// Every key is reinserted in old bucket order, and front to back within a
	// bucket.
	t.buckets = make([][]K, n)
	for _, b := range oldBuckets {
		for _, key := range b {
			t.uncheckedInsert(key)
		}
	}
	t.loadFactor = float64(t.used) / float64(len(t.buckets))
	t.checkInvariants()
}

// All calls yield sequentially for each non-empty bucket, in ascending bucket
// order, with a copy of the bucket's keys, most recently inserted first. If
// yield returns false, iteration stops. The table must not be mutated during
// iteration.
func (t *Table[K]) All(yield func(bucket int, keys []K) bool) {
	for i, b := range t.buckets {
		if len(b) == 0 {
			continue
		}
		if !yield(i, slices.Clone(b)) {
			return
		}
	}
}

// WriteTo writes one "<bucket>: [<k1>, <k2>, ...]" line per non-empty bucket
// to w, or "<empty>" if the table holds no keys.
func (t *Table[K]) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, t.String())
	return int64(n), err
}

// String returns the text WriteTo writes.
func (t *Table[K]) String() string {
	if t.IsEmpty() {
		return "<empty>\n"
	}
	var buf strings.Builder
	for i, b := range t.buckets {
		if len(b) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "%d: [", i)
		for j, key := range b {
			if j > 0 {
				buf.WriteString(", ")
			}
			fmt.Fprintf(&buf, "%v", key)
		}
		buf.WriteString("]\n")
	}
	return buf.String()
}

// fits returns true if n keys need no more than prime.MaxSize buckets at max
// load factor f.
func fits(n int, f float64) bool {
	return float64(n)/f <= float64(prime.MaxSize)
}

// exceeds returns true if n keys in the given number of buckets would be
// above the max load factor.
func (t *Table[K]) exceeds(n, buckets int) bool {
	return float64(n)/float64(buckets) > t.maxLoadFactor
}

// uncheckedInsert prepends a key known not to be in the table to its bucket.
// It does not update used or loadFactor.
func (t *Table[K]) uncheckedInsert(key K) {
	i := t.Bucket(key)
	t.buckets[i] = slices.Insert(t.buckets[i], 0, key)
}

func (t *Table[K]) checkInvariants() {
	if invariants.Enabled {
		if len(t.buckets) == 0 {
			panic("invariant failed: no buckets")
		}

		// Every key lives in the bucket it hashes to, exactly once.
		var used int
		seen := make(map[K]int, t.used)
		for i, b := range t.buckets {
			for _, key := range b {
				if j := t.Bucket(key); j != i {
					panic(fmt.Sprintf("invariant failed: %v found in bucket %d, but belongs in %d\n%s",
						key, i, j, t.String()))
				}
				if j, ok := seen[key]; ok {
					panic(fmt.Sprintf("invariant failed: %v found in buckets %d and %d\n%s",
						key, j, i, t.String()))
				}
				seen[key] = i
				used++
			}
		}

		if used != t.used {
			panic(fmt.Sprintf("invariant failed: found %d keys, but used count is %d\n%s",
				used, t.used, t.String()))
		}
		if lf := float64(t.used) / float64(len(t.buckets)); lf != t.loadFactor {
			panic(fmt.Sprintf("invariant failed: load factor is %v, but cached load factor is %v",
				lf, t.loadFactor))
		}
	}
}
