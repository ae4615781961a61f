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
Package raft implements the Raft consensus core described in spec.md: leader
election, log replication, and the safety checks that drive commit
progression. It is a pure protocol module — no networking, no disk I/O, no
wall-clock sleeping happens in this package. Everything it needs from the
outside world (message delivery, durability, time, and the application
state machine) is injected as a collaborator (Transport, raftstate.Store,
raftclock.Clock/RNG, and an apply callback).

The package is driven entirely by a single logical executor per Node: an
external driver calls Tick periodically, and inbound RPCs/replies arrive
through the On* methods. Node serializes all of these with an internal
mutex so that, regardless of how many goroutines a Transport implementation
uses to deliver messages, no two handlers ever observe or mutate a Node's
state concurrently (spec.md §5).
*/
package raft

import "fmt"

// Role is one of the three states a Raft node can be in.
type Role int32

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

// RequestVoteArgs is the RequestVote RPC request shape (spec.md §6.1).
// PreVote marks a non-binding probe (SPEC_FULL §4): it never causes the
// receiver to bump current_term or record a vote.
type RequestVoteArgs struct {
	Term         uint64
	CandidateID  string
	LastLogIndex uint64
	LastLogTerm  uint64
	PreVote      bool
}

// RequestVoteReply is the RequestVote RPC reply shape.
type RequestVoteReply struct {
	Term        uint64
	VoteGranted bool
	PreVote     bool
}

// AppendEntriesArgs is the AppendEntries RPC request shape. A heartbeat is
// simply an AppendEntries whose Entries is empty.
type AppendEntriesArgs struct {
	Term         uint64
	LeaderID     string
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []LogEntryWire
	LeaderCommit uint64
}

// AppendEntriesReply is the AppendEntries RPC reply shape. ConflictIndex/
// ConflictTerm are the optional accelerated-backoff hints spec.md §4.G
// permits but does not require (SPEC_FULL §4).
type AppendEntriesReply struct {
	Term          uint64
	Success       bool
	ConflictIndex uint64
	ConflictTerm  uint64
}

// AppendEntriesContext is handed back alongside an AppendEntries reply so
// the leader can tell which in-flight request a (possibly delayed or
// reordered) reply corresponds to (spec.md §6.2).
type AppendEntriesContext struct {
	Term           uint64 // current_term at send time
	PrevLogIndex   uint64
	EntriesSentLen int
}

// SubmitResult is the outcome of Node.Submit.
type SubmitResult struct {
	Accepted bool
	Index    uint64 // valid iff Accepted
	Hint     string // last-known leader id, valid iff !Accepted; may be empty
}

// Status is a point-in-time snapshot of a node's externally visible state
// (spec.md §6.2).
type Status struct {
	NodeID      string
	Role        Role
	Term        uint64
	LogLength   int
	CommitIndex uint64
	LastApplied uint64
	VotedFor    string
}

func (s Status) String() string {
	return fmt.Sprintf("node=%s role=%s term=%d log_length=%d commit_index=%d last_applied=%d voted_for=%q",
		s.NodeID, s.Role, s.Term, s.LogLength, s.CommitIndex, s.LastApplied, s.VotedFor)
}
