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

import "testing"

func TestResetLeaderState(t *testing.T) {
	v := NewVolatile()
	v.ResetLeaderState([]string{"b", "c"}, 5)

	if v.NextIndex["b"] != 6 || v.NextIndex["c"] != 6 {
		t.Fatalf("expected next_index = lastLogIndex+1 for all peers, got %+v", v.NextIndex)
	}
	if v.MatchIndex["b"] != 0 || v.MatchIndex["c"] != 0 {
		t.Fatalf("expected match_index = 0 for all peers, got %+v", v.MatchIndex)
	}
}

func TestClearLeaderState(t *testing.T) {
	v := NewVolatile()
	v.ResetLeaderState([]string{"b"}, 5)
	v.ClearLeaderState()

	if v.NextIndex != nil || v.MatchIndex != nil {
		t.Fatal("expected leader-only maps to be cleared")
	}
}
