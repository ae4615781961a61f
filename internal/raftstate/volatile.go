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

package raftstate

// Volatile holds the in-memory-only state every node keeps (spec.md §4.C):
// commit_index/last_applied on every node, plus next_index/match_index
// which only matter while this node is leader.
type Volatile struct {
	CommitIndex uint64
	LastApplied uint64

	// Leader-only progress tracking, keyed by peer id. Populated on
	// transition to Leader, cleared on transition away from Leader.
	NextIndex  map[string]uint64
	MatchIndex map[string]uint64
}

// NewVolatile returns a zeroed Volatile with no leader-only state.
func NewVolatile() *Volatile {
	return &Volatile{}
}

// ResetLeaderState initializes next_index/match_index for every peer on
// transition to Leader: next_index[p] = lastLogIndex+1, match_index[p] = 0
// (spec.md §4.C).
func (v *Volatile) ResetLeaderState(peers []string, lastLogIndex uint64) {
	v.NextIndex = make(map[string]uint64, len(peers))
	v.MatchIndex = make(map[string]uint64, len(peers))
	for _, p := range peers {
		v.NextIndex[p] = lastLogIndex + 1
		v.MatchIndex[p] = 0
	}
}

// ClearLeaderState drops the leader-only maps on transition away from
// Leader.
func (v *Volatile) ClearLeaderState() {
	v.NextIndex = nil
	v.MatchIndex = nil
}
