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

package raftclock

import (
	"fmt"
	"time"
)

// ElectionTimer implements spec.md §4.D: a randomized timeout in
// [min, max) milliseconds, reset on any valid leader/candidate contact, and
// expired once more than `timeout` has elapsed since the last reset.
type ElectionTimer struct {
	clock Clock
	rng   RNG

	min, max time.Duration

	timeout      time.Duration
	lastActivity time.Time
}

// NewElectionTimer constructs a timer over [min, max) and immediately
// picks a first timeout by calling Reset(now).
func NewElectionTimer(clock Clock, rng RNG, min, max time.Duration, now time.Time) (*ElectionTimer, error) {
	if !(min < max) {
		return nil, fmt.Errorf("raftclock: election_timeout_min (%s) must be < election_timeout_max (%s)", min, max)
	}
	t := &ElectionTimer{clock: clock, rng: rng, min: min, max: max}
	t.Reset(now)
	return t, nil
}

// Reset picks a fresh timeout uniformly at random from [min, max) and
// records now as the last-activity instant.
func (t *ElectionTimer) Reset(now time.Time) {
	span := int64(t.max - t.min)
	jitter := time.Duration(0)
	if span > 0 {
		jitter = time.Duration(t.rng.Int63n(span))
	}
	t.timeout = t.min + jitter
	t.lastActivity = now
}

// Expired reports whether more than the current timeout has elapsed since
// the last Reset.
func (t *ElectionTimer) Expired(now time.Time) bool {
	return now.Sub(t.lastActivity) > t.timeout
}

// Timeout returns the timeout currently in effect (for diagnostics/tests).
func (t *ElectionTimer) Timeout() time.Duration { return t.timeout }
