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

import "github.com/pkg/errors"

var (
	// ErrInvalidArgument is returned when a table parameter is set to an
	// unusable value, such as a non-positive max load factor.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrOutOfRange is returned when a slot or bucket index is outside the
	// table.
	ErrOutOfRange = errors.New("out of range")
)
