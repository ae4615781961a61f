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

package raft

import "testing"

func TestAppendEntriesBuildsLogAndEnforcesLogMatching(t *testing.T) {
	f := newStandaloneFollower(t, "A", nil)

	// First entry from a term-1 leader.
	r1 := f.OnAppendEntries(AppendEntriesArgs{
		Term: 1, LeaderID: "L1", PrevLogIndex: 0, PrevLogTerm: 0,
		Entries:      []LogEntryWire{{Term: 1, Index: 1, Command: []byte("x")}},
		LeaderCommit: 0,
	})
	if !r1.Success || r1.Term != 1 {
		t.Fatalf("expected success at term 1, got %+v", r1)
	}

	// Second entry, and leader advances commit_index past it.
	r2 := f.OnAppendEntries(AppendEntriesArgs{
		Term: 1, LeaderID: "L1", PrevLogIndex: 1, PrevLogTerm: 1,
		Entries:      []LogEntryWire{{Term: 1, Index: 2, Command: []byte("y")}},
		LeaderCommit: 1,
	})
	if !r2.Success {
		t.Fatalf("expected success, got %+v", r2)
	}
	st := f.Status()
	if st.CommitIndex != 1 || st.LastApplied != 1 || st.LogLength != 3 {
		t.Fatalf("unexpected status after second append: %+v", st)
	}

	// A new leader wins term 2 and overwrites the uncommitted index-2 entry
	// — the log-matching property means the stale "y" must never resurface.
	r3 := f.OnAppendEntries(AppendEntriesArgs{
		Term: 2, LeaderID: "L2", PrevLogIndex: 1, PrevLogTerm: 1,
		Entries:      []LogEntryWire{{Term: 2, Index: 2, Command: []byte("z")}},
		LeaderCommit: 1,
	})
	if !r3.Success || r3.Term != 2 {
		t.Fatalf("expected success at term 2, got %+v", r3)
	}

	// Heartbeat that commits index 2.
	r4 := f.OnAppendEntries(AppendEntriesArgs{
		Term: 2, LeaderID: "L2", PrevLogIndex: 2, PrevLogTerm: 2,
		LeaderCommit: 2,
	})
	if !r4.Success {
		t.Fatalf("expected success, got %+v", r4)
	}
	st = f.Status()
	if st.CommitIndex != 2 || st.LastApplied != 2 {
		t.Fatalf("expected commit_index/last_applied == 2, got %+v", st)
	}

	// Stale-term AppendEntries must be rejected without any mutation.
	r5 := f.OnAppendEntries(AppendEntriesArgs{Term: 1, LeaderID: "L1", PrevLogIndex: 2, PrevLogTerm: 2})
	if r5.Success || r5.Term != 2 {
		t.Fatalf("expected rejection reporting current term 2, got %+v", r5)
	}

	// A gap (prev_log_index beyond the log) must report a conflict hint
	// pointing just past the end of the log.
	r6 := f.OnAppendEntries(AppendEntriesArgs{Term: 2, LeaderID: "L2", PrevLogIndex: 10, PrevLogTerm: 2})
	if r6.Success || r6.ConflictIndex != 3 || r6.ConflictTerm != 0 {
		t.Fatalf("expected gap conflict at index 3, got %+v", r6)
	}
}

func TestAppendEntriesNeverTruncatesCommittedEntries(t *testing.T) {
	f := newStandaloneFollower(t, "A", nil)
	f.OnAppendEntries(AppendEntriesArgs{
		Term: 1, LeaderID: "L1", PrevLogIndex: 0, PrevLogTerm: 0,
		Entries:      []LogEntryWire{{Term: 1, Index: 1, Command: []byte("x")}},
		LeaderCommit: 1,
	})
	if st := f.Status(); st.CommitIndex != 1 {
		t.Fatalf("expected commit_index 1, got %+v", st)
	}

	// An attempt to replace the already-committed index-1 entry must be
	// refused rather than silently accepted (the leader sending this is
	// necessarily buggy/byzantine; we must not corrupt state in response).
	f.OnAppendEntries(AppendEntriesArgs{
		Term: 2, LeaderID: "L2", PrevLogIndex: 0, PrevLogTerm: 0,
		Entries:      []LogEntryWire{{Term: 2, Index: 1, Command: []byte("evil")}},
		LeaderCommit: 1,
	})
	st := f.Status()
	if st.CommitIndex != 1 || st.LastApplied != 1 {
		t.Fatalf("committed entry must survive a conflicting append: %+v", st)
	}
}

func TestRequestVoteGrantsOncePerTermAndRespectsLogUpToDateness(t *testing.T) {
	f := newStandaloneFollower(t, "A", nil)

	r1 := f.OnRequestVote(RequestVoteArgs{Term: 1, CandidateID: "B", LastLogIndex: 0, LastLogTerm: 0})
	if !r1.VoteGranted {
		t.Fatalf("expected vote granted, got %+v", r1)
	}

	// A second candidate in the same term must be refused.
	r2 := f.OnRequestVote(RequestVoteArgs{Term: 1, CandidateID: "C", LastLogIndex: 0, LastLogTerm: 0})
	if r2.VoteGranted {
		t.Fatalf("expected vote refused (already voted this term), got %+v", r2)
	}

	// A higher term from a candidate with a stale log must still be
	// refused on log grounds even though the term check passes.
	f2 := newStandaloneFollower(t, "D", nil)
	f2.OnAppendEntries(AppendEntriesArgs{
		Term: 5, LeaderID: "L", PrevLogIndex: 0, PrevLogTerm: 0,
		Entries: []LogEntryWire{{Term: 5, Index: 1, Command: []byte("x")}},
	})
	r3 := f2.OnRequestVote(RequestVoteArgs{Term: 6, CandidateID: "E", LastLogIndex: 0, LastLogTerm: 0})
	if r3.VoteGranted {
		t.Fatalf("expected vote refused for an out-of-date candidate log, got %+v", r3)
	}
}

func TestRequestVoteRefusesWhenPersistFails(t *testing.T) {
	store := newFailingStore()
	f := newStandaloneFollowerWithStore(t, "A", nil, store)

	store.failSave = true
	r := f.OnRequestVote(RequestVoteArgs{Term: 1, CandidateID: "B", LastLogIndex: 0, LastLogTerm: 0})
	if r.VoteGranted {
		t.Fatalf("expected vote refused when the store fails to persist, got %+v", r)
	}
	if got := f.Status().VotedFor; got != "" {
		t.Fatalf("voted_for must not remain set when the vote could not be persisted, got %q", got)
	}

	// Once the store recovers, the same candidate can still win the vote —
	// the earlier failure must not have left the term bumped or the vote
	// silently recorded.
	store.failSave = false
	r2 := f.OnRequestVote(RequestVoteArgs{Term: 1, CandidateID: "B", LastLogIndex: 0, LastLogTerm: 0})
	if !r2.VoteGranted {
		t.Fatalf("expected vote granted once persistence recovers, got %+v", r2)
	}
}

func TestAppendEntriesRejectsWhenPersistFails(t *testing.T) {
	store := newFailingStore()
	f := newStandaloneFollowerWithStore(t, "A", nil, store)

	store.failSave = true
	r := f.OnAppendEntries(AppendEntriesArgs{
		Term: 1, LeaderID: "L1", PrevLogIndex: 0, PrevLogTerm: 0,
		Entries: []LogEntryWire{{Term: 1, Index: 1, Command: []byte("x")}},
	})
	if r.Success {
		t.Fatalf("expected append rejected when the store fails to persist, got %+v", r)
	}
	if st := f.Status(); st.LogLength != 1 {
		t.Fatalf("log must stay sentinel-only when the append could not be persisted, got length %d", st.LogLength)
	}

	// Once the store recovers, the leader's retry of the exact same
	// AppendEntries must succeed rather than being mistaken for "already
	// have it" (persistence failing must not have advanced the in-memory
	// log behind the store's back).
	store.failSave = false
	r2 := f.OnAppendEntries(AppendEntriesArgs{
		Term: 1, LeaderID: "L1", PrevLogIndex: 0, PrevLogTerm: 0,
		Entries: []LogEntryWire{{Term: 1, Index: 1, Command: []byte("x")}},
	})
	if !r2.Success {
		t.Fatalf("expected append to succeed once persistence recovers, got %+v", r2)
	}
	if st := f.Status(); st.LogLength != 2 {
		t.Fatalf("expected the entry to land exactly once, got length %d", st.LogLength)
	}
}

func TestSubmitRefusesWhenPersistFails(t *testing.T) {
	store := newFailingStore()
	n := newStandaloneFollowerWithStore(t, "A", nil, store)
	n.Tick(n.clock.Now().Add(n.cfg.ElectionTimeoutMax + 1)) // single-node cluster wins its own election
	if n.Status().Role != Leader {
		t.Fatalf("expected node to become Leader, got %v", n.Status().Role)
	}

	store.failSave = true
	res := n.Submit([]byte("x"))
	if res.Accepted {
		t.Fatalf("expected submit rejected when the store fails to persist, got %+v", res)
	}
	if st := n.Status(); st.LogLength != 2 {
		t.Fatalf("the no-op from the election win is the only entry expected, got length %d", st.LogLength)
	}

	store.failSave = false
	res2 := n.Submit([]byte("x"))
	if !res2.Accepted {
		t.Fatalf("expected submit to succeed once persistence recovers, got %+v", res2)
	}
}

func TestPreVoteNeverMutatesTermOrVote(t *testing.T) {
	f := newStandaloneFollower(t, "A", nil)
	before := f.Status()

	r := f.OnRequestVote(RequestVoteArgs{Term: before.Term + 1, CandidateID: "B", LastLogIndex: 0, LastLogTerm: 0, PreVote: true})
	if !r.VoteGranted || !r.PreVote {
		t.Fatalf("expected pre-vote granted, got %+v", r)
	}
	after := f.Status()
	if after.Term != before.Term || after.VotedFor != before.VotedFor {
		t.Fatalf("pre-vote must not mutate current_term/voted_for: before=%+v after=%+v", before, after)
	}
}
