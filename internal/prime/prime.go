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

// Package prime implements the capacity growth policy shared by the hash
// tables: capacities are primes, and a table that outgrows capacity n moves to
// the smallest prime >= 2n+1.
package prime

import "math"

// MaxSize is the largest size Next accepts. Larger sizes would overflow int
// while computing the next capacity.
const MaxSize = math.MaxInt / 4

// IsPrime reports whether n is prime, using 6k±1 trial division.
func IsPrime(n int) bool {
	if n == 2 || n == 3 {
		return true
	}
	if n <= 1 || n%2 == 0 || n%3 == 0 {
		return false
	}
	for i := 5; i*i <= n; i += 6 {
		if n%i == 0 || n%(i+2) == 0 {
			return false
		}
	}
	return true
}

// AtLeast returns the smallest prime >= n.
func AtLeast(n int) int {
	if n <= 2 {
		return 2
	}
	if n%2 == 0 {
		n++
	}
	for !IsPrime(n) {
		n += 2
	}
	return n
}

// Next returns the capacity a table of the given size grows to: the smallest
// prime >= 2*size+1. Next panics if size exceeds MaxSize.
func Next(size int) int {
	if size > MaxSize {
		panic("prime: size out of range")
	}
	return AtLeast(2*size + 1)
}
