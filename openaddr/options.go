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

package openaddr

import (
	"github.com/cockroachdb/hashset"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Option configures a Table while it is being created.
type Option[K comparable] interface {
	apply(t *Table[K])
}

type hashOption[K comparable] struct {
	hash hashset.Hasher[K]
}

func (op hashOption[K]) apply(t *Table[K]) {
	t.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a Table[K].
func WithHash[K comparable](hash hashset.Hasher[K]) Option[K] {
	return hashOption[K]{hash}
}

type maxLoadFactorOption[K comparable] struct {
	maxLoadFactor float64
}

func (op maxLoadFactorOption[K]) apply(t *Table[K]) {
	t.maxLoadFactor = op.maxLoadFactor
}

// WithMaxLoadFactor is an option to lower the max load factor of a Table[K]
// below the default of 0.5. Quadratic probing over a prime capacity only
// reaches half of the slots, so values above 0.5 could leave a probe sequence
// without an empty slot. WithMaxLoadFactor panics if f is not in (0, 0.5], or
// if it is so small that a single key would need more than prime.MaxSize
// slots.
func WithMaxLoadFactor[K comparable](f float64) Option[K] {
	if !(f > 0 && f <= DefaultMaxLoadFactor) || !fits(1, f) {
		panic(errors.Wrapf(hashset.ErrInvalidArgument, "max load factor %v not in (0, %v]", f, DefaultMaxLoadFactor))
	}
	return maxLoadFactorOption[K]{f}
}

type loggerOption[K comparable] struct {
	logger *zap.Logger
}

func (op loggerOption[K]) apply(t *Table[K]) {
	if op.logger != nil {
		t.logger = op.logger
	}
}

// WithLogger is an option to specify the logger a Table[K] reports rehashes
// to. The default logger discards everything.
func WithLogger[K comparable](logger *zap.Logger) Option[K] {
	return loggerOption[K]{logger}
}
