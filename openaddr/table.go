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

// Package openaddr implements a hash set using open addressing with
// quadratic probing and lazy deletion.
//
// # Layout
//
// A Table is a single slice of slots. Each slot is tagged Empty, Occupied or
// Tombstoned. A key is placed by walking its probe sequence
//
//	p(i) := hash(key) + i^2 (mod capacity)
//
// until an Empty slot is found. Lookups walk the same sequence and stop at
// the first Empty slot (the key is absent) or at the Occupied slot holding
// the key. Tombstones never stop a walk: a removed key may have been part of
// the probe sequence of keys placed after it.
//
// # Growth
//
// The capacity is always prime. For a prime p the first (p+1)/2 offsets i^2
// mod p are distinct, so a probe sequence is guaranteed to visit an Empty
// slot as long as fewer than (p+1)/2 slots are Occupied or Tombstoned. A
// Table therefore grows before an insert would push either the live keys or
// the live keys plus tombstones above maxLoadFactor*capacity, and the max
// load factor is capped at 0.5. Removals only ever add tombstones, so checking
// tombstones as well as live keys is what keeps a table under heavy churn
// from filling up with tombstones between rehashes.
//
// Growing picks the smallest prime >= 2*capacity+1, allocates a fresh slice
// of Empty slots and reinserts every live key in old slot order. Tombstones
// are dropped. Slot indexes returned by Locate or All are invalidated by any
// insert.
package openaddr

import (
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/hashset"
	"github.com/cockroachdb/hashset/internal/invariants"
	"github.com/cockroachdb/hashset/internal/prime"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DefaultCapacity is the number of slots of a Table created with a
	// non-positive capacity.
	DefaultCapacity = 11
	// DefaultMaxLoadFactor is the max load factor of a Table created without
	// WithMaxLoadFactor. It is also the largest permitted value.
	DefaultMaxLoadFactor = 0.5
)

// State is the status of a slot.
type State uint8

const (
	// Empty slots have never held a key since the last rehash or Clear. They
	// terminate probe sequences.
	Empty State = iota
	// Occupied slots hold a live key.
	Occupied
	// Tombstoned slots held a key that was removed. The key is retained for
	// inspection but is semantically absent.
	Tombstoned
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Occupied:
		return "occupied"
	case Tombstoned:
		return "tombstoned"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Slot holds a key and the state of the slot.
type Slot[K comparable] struct {
	state State
	key   K
}

// State returns the state of the slot.
func (s Slot[K]) State() State {
	return s.state
}

// Key returns the key held by the slot. It is the zero value for Empty
// slots and the removed key for Tombstoned slots.
func (s Slot[K]) Key() K {
	return s.key
}

// Table is an unordered set of keys of type K stored in a single slice of
// slots. By default a Table[K] hashes with hashset.DefaultHasher, though a
// different hash function can be specified using the WithHash option.
//
// A Table is NOT goroutine-safe.
type Table[K comparable] struct {
	hash          hashset.Hasher[K]
	slots         []Slot[K]
	maxLoadFactor float64
	logger        *zap.Logger
	// The number of Occupied slots (i.e. the number of keys in the table).
	used int
	// The number of Tombstoned slots. Tombstones occupy probe positions
	// without contributing to used, and are only reclaimed by a rehash.
	tombstones int
}

// New constructs a new Table with the specified number of slots, rounded up
// to a prime, so Capacity may return more than capacity (New(10) has 11
// slots). If capacity is <= 0 the table starts out with DefaultCapacity
// slots.
func New[K comparable](capacity int, options ...Option[K]) *Table[K] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	t := &Table[K]{
		hash:          hashset.DefaultHasher[K](),
		slots:         make([]Slot[K], prime.AtLeast(capacity)),
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

// Capacity returns the number of slots in the table.
func (t *Table[K]) Capacity() int {
	return len(t.slots)
}

// Tombstones returns the number of slots holding removed keys.
func (t *Table[K]) Tombstones() int {
	return t.tombstones
}

// LoadFactor returns the ratio of keys to slots.
func (t *Table[K]) LoadFactor() float64 {
	return float64(t.used) / float64(len(t.slots))
}

// MaxLoadFactor returns the load factor the table grows to stay under.
func (t *Table[K]) MaxLoadFactor() float64 {
	return t.maxLoadFactor
}

// Hash returns the hash of key under the table's hash function.
func (t *Table[K]) Hash(key K) uint64 {
	return t.hash(key)
}

// Clear removes all keys and tombstones from the table. The capacity is
// unchanged.
func (t *Table[K]) Clear() {
	clear(t.slots)
	t.used = 0
	t.tombstones = 0
	t.checkInvariants()
}

// Insert adds key to the table, returning false without modifying the table
// if key is already present.
func (t *Table[K]) Insert(key K) bool {
	i := t.Locate(key)
	if t.slots[i].state == Occupied {
		return false
	}

	// Before performing the insertion we may decide the table is getting
	// overcrowded. The second condition catches tables where removals have
	// left few Empty slots even though the number of keys is low.
	if t.exceeds(t.used+1, len(t.slots)) || t.exceeds(t.used+t.tombstones+1, len(t.slots)) {
		// A rehash drops the tombstones. Very small max load factors may
		// need more than one step of growth to fit the new key.
		if !fits(t.used+1, t.maxLoadFactor) {
			panic(errors.Wrapf(hashset.ErrOutOfRange, "%d keys need more than %d slots at max load factor %v",
				t.used+1, prime.MaxSize, t.maxLoadFactor))
		}
		newCapacity := prime.Next(len(t.slots))
		for t.exceeds(t.used+1, newCapacity) {
			newCapacity = prime.Next(newCapacity)
		}
		t.resize(newCapacity)
		i = t.Locate(key)
	}

	t.slots[i] = Slot[K]{state: Occupied, key: key}
	t.used++
	t.checkInvariants()
	return true
}

// Remove removes key from the table, returning the number of keys removed
// (0 or 1). The key's slot becomes a tombstone which is only reclaimed by the
// next rehash.
func (t *Table[K]) Remove(key K) int {
	i := t.Locate(key)
	if t.slots[i].state != Occupied {
		return 0
	}
	t.slots[i].state = Tombstoned
	t.used--
	t.tombstones++
	t.checkInvariants()
	return 1
}

// Contains returns true if key is in the table.
func (t *Table[K]) Contains(key K) bool {
	return t.slots[t.Locate(key)].state == Occupied
}

// Locate returns the index of the slot holding key, or, if key is absent,
// the index of the Empty slot that terminated its probe sequence. This is the
// slot key is placed in if it is inserted without the table growing.
func (t *Table[K]) Locate(key K) int {
	capacity := uint64(len(t.slots))
	seq := makeProbeSeq(t.hash(key), capacity)
	// The growth policy keeps an Empty slot within the first (capacity+1)/2
	// probes. Give up after capacity probes rather than spin forever if that
	// is ever violated.
	for ; seq.index < capacity; seq = seq.next() {
		s := &t.slots[seq.offset]
		switch s.state {
		case Empty:
			return int(seq.offset)
		case Occupied:
			if s.key == key {
				return int(seq.offset)
			}
		}
	}
	panic(fmt.Sprintf("invariant failed: probe sequence for %v exhausted\n%s", key, t.debugString()))
}

// At returns a copy of the slot at index i.
func (t *Table[K]) At(i int) (Slot[K], error) {
	if i < 0 || i >= len(t.slots) {
		return Slot[K]{}, errors.Wrapf(hashset.ErrOutOfRange, "slot %d (capacity %d)", i, len(t.slots))
	}
	return t.slots[i], nil
}

// All calls yield sequentially for each key present in the table, in
// ascending slot order, along with the index of its slot. If yield returns
// false, iteration stops. The table must not be mutated during iteration.
func (t *Table[K]) All(yield func(index int, key K) bool) {
	for i := range t.slots {
		if s := &t.slots[i]; s.state == Occupied {
			if !yield(i, s.key) {
				return
			}
		}
	}
}

// WriteTo writes one "<slot>: <key>" line per key in the table to w, or
// "<empty>" if the table holds no keys.
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
	t.All(func(i int, key K) bool {
		fmt.Fprintf(&buf, "%d: %v\n", i, key)
		return true
	})
	return buf.String()
}

// fits returns true if n keys need no more than prime.MaxSize slots at max
// load factor f.
func fits(n int, f float64) bool {
	return float64(n)/f <= float64(prime.MaxSize)
}

// exceeds returns true if n occupied slots out of capacity would be above
// the max load factor.
func (t *Table[K]) exceeds(n, capacity int) bool {
	return float64(n)/float64(capacity) > t.maxLoadFactor
}

// resize allocates a slice of newCapacity Empty slots and reinserts every key
// of the old slice in slot order. We know that no reinsertion will find an
// already-present key, and a fresh slice has no tombstones to skip, so each
// key lands in the first Empty slot of its probe sequence.
func (t *Table[K]) resize(newCapacity int) {
	oldSlots := t.slots
	t.logger.Debug("rehashing open addressing table",
		zap.Int("old_capacity", len(oldSlots)),
		zap.Int("new_capacity", newCapacity),
		zap.Int("size", t.used),
		zap.Int("tombstones", t.tombstones))

	t.slots = make([]Slot[K], newCapacity)
	t.used = 0
	t.tombstones = 0
	for i := range oldSlots {
		if s := &oldSlots[i]; s.state == Occupied {
			t.uncheckedInsert(s.key)
			t.used++
		}
	}
	t.checkInvariants()
}

// uncheckedInsert places a key known not to be in the table in the first
// Empty slot of its probe sequence.
func (t *Table[K]) uncheckedInsert(key K) {
	capacity := uint64(len(t.slots))
	for seq := makeProbeSeq(t.hash(key), capacity); seq.index < capacity; seq = seq.next() {
		if s := &t.slots[seq.offset]; s.state == Empty {
			s.state = Occupied
			s.key = key
			return
		}
	}
	panic(fmt.Sprintf("invariant failed: no empty slot for %v\n%s", key, t.debugString()))
}

func (t *Table[K]) checkInvariants() {
	if invariants.Enabled {
		if !prime.IsPrime(len(t.slots)) {
			panic(fmt.Sprintf("invariant failed: capacity %d is not prime", len(t.slots)))
		}

		// For every Occupied slot, verify Locate finds the key there. This
		// also rules out a second Occupied slot for the same key, as Locate
		// stops at the first. Count the Occupied and Tombstoned slots.
		var used, tombstones int
		for i := range t.slots {
			s := &t.slots[i]
			switch s.state {
			case Occupied:
				if j := t.Locate(s.key); j != i {
					panic(fmt.Sprintf("invariant failed: slot(%d): %v located at %d\n%s",
						i, s.key, j, t.debugString()))
				}
				used++
			case Tombstoned:
				tombstones++
			}
		}

		if used != t.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, t.used, t.debugString()))
		}
		if tombstones != t.tombstones {
			panic(fmt.Sprintf("invariant failed: found %d tombstones, but tombstone count is %d\n%s",
				tombstones, t.tombstones, t.debugString()))
		}
		if 2*(used+tombstones) >= len(t.slots)+1 {
			panic(fmt.Sprintf("invariant failed: %d used and %d tombstones leave no empty slot reachable\n%s",
				used, tombstones, t.debugString()))
		}
	}
}

func (t *Table[K]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  tombstones=%d\n", len(t.slots), t.used, t.tombstones)
	for i := range t.slots {
		switch s := &t.slots[i]; s.state {
		case Empty:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		case Tombstoned:
			fmt.Fprintf(&buf, "  %4d: tombstoned %v\n", i, s.key)
		default:
			fmt.Fprintf(&buf, "  %4d: %v [hash=%d]\n", i, s.key, t.hash(s.key))
		}
	}
	return buf.String()
}

// probeSeq maintains the state for a quadratic probe sequence of the form
//
//	p(i) := hash + i^2 (mod capacity)
//
// Consecutive squares differ by 2i-1, so each step adds that difference to
// the previous offset rather than recomputing i^2. Reducing the hash modulo
// capacity first keeps the arithmetic from overflowing for large hashes.
type probeSeq struct {
	capacity uint64
	offset   uint64
	index    uint64
}

func makeProbeSeq(hash, capacity uint64) probeSeq {
	return probeSeq{
		capacity: capacity,
		offset:   hash % capacity,
		index:    0,
	}
}

func (s probeSeq) next() probeSeq {
	s.index++
	s.offset = (s.offset + 2*s.index - 1) % s.capacity
	return s
}

func (s probeSeq) String() string {
	return fmt.Sprintf("capacity=%d offset=%d index=%d", s.capacity, s.offset, s.index)
}
