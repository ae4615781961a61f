/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package raftclock provides the injectable clock and randomness sources the
core needs (spec.md §4.D, §9 "Randomness"). Every random choice a node
makes — its election timeout — draws from an injected RNG, and every
duration comparison uses an injected monotonic "now", so that a fixed seed
and tick sequence produce a fully deterministic trace.
*/
package raftclock

import (
	"math/rand"
	"time"
)

// Clock supplies monotonic time to a node. Production code uses
// SystemClock; tests use a ManualClock they can advance explicitly.
type Clock interface {
	Now() time.Time
}

// RNG supplies bounded random integers for election timeout jitter.
// Production code uses MathRandRNG; tests use a MathRandRNG with a fixed
// seed, or a fixed-value fake of their own, for full determinism. Int63n
// is called with a bound in nanoseconds (max-min of the election timeout).
type RNG interface {
	// Int63n returns a random int64 in [0, n). It panics if n <= 0, same
	// as math/rand.Rand.Int63n.
	Int63n(n int64) int64
}

// SystemClock reports wall-clock time via time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// MathRandRNG wraps a *rand.Rand seeded by the caller.
type MathRandRNG struct {
	r *rand.Rand
}

// NewMathRandRNG returns an RNG seeded deterministically from seed. Tests
// that want reproducible traces should construct nodes with the same seed
// across runs.
func NewMathRandRNG(seed int64) *MathRandRNG {
	return &MathRandRNG{r: rand.New(rand.NewSource(seed))}
}

func (m *MathRandRNG) Int63n(n int64) int64 { return m.r.Int63n(n) }

// ManualClock is a Clock whose value only changes when the test advances
// it, so tick-driven scenarios are reproducible and don't race real time.
type ManualClock struct {
	now time.Time
}

// NewManualClock returns a ManualClock starting at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

func (m *ManualClock) Now() time.Time { return m.now }

// Advance moves the clock forward by d and returns the new value.
func (m *ManualClock) Advance(d time.Duration) time.Time {
	m.now = m.now.Add(d)
	return m.now
}

// Set pins the clock to an exact value.
func (m *ManualClock) Set(t time.Time) { m.now = t }
