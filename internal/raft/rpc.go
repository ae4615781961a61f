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

import (
	"fmt"
	"time"

	"github.com/firefly-oss/raftcore/internal/raftlog"
)

// OnRequestVote handles an inbound RequestVote RPC (spec.md §4.F). It is
// called by whatever collaborator deserialized the request off the wire
// and returns the reply that collaborator should send back.
func (n *Node) OnRequestVote(args RequestVoteArgs) RequestVoteReply {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.clock.Now()

	if !args.PreVote && args.Term > n.currentTerm {
		if err := n.becomeFollowerLocked(args.Term, now); err != nil {
			return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
		}
	}

	if args.PreVote {
		return n.handlePreVoteRequestLocked(args)
	}
	return n.handleRequestVoteLocked(args, now)
}

func (n *Node) handlePreVoteRequestLocked(args RequestVoteArgs) RequestVoteReply {
	// A pre-vote is granted purely on "could this candidate plausibly win":
	// its hypothetical term must be at least ours, and its log must be at
	// least as up to date. Granting never mutates current_term or voted_for
	// (SPEC_FULL §4).
	logOK := n.log.IsUpToDate(args.LastLogTerm, args.LastLogIndex)
	granted := args.Term >= n.currentTerm && logOK
	return RequestVoteReply{Term: n.currentTerm, VoteGranted: granted, PreVote: true}
}

func (n *Node) handleRequestVoteLocked(args RequestVoteArgs, now time.Time) RequestVoteReply {
	if args.Term < n.currentTerm {
		return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
	}
	logOK := n.log.IsUpToDate(args.LastLogTerm, args.LastLogIndex)
	canVote := n.votedFor == "" || n.votedFor == args.CandidateID
	if !canVote || !logOK {
		return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
	}
	prevVotedFor := n.votedFor
	n.votedFor = args.CandidateID
	if err := n.persistTermAndVote(); err != nil {
		// The vote must not be visible to anyone, including our own next
		// RequestVote, unless it actually reached stable storage.
		n.votedFor = prevVotedFor
		return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
	}
	n.timer.Reset(now)
	return RequestVoteReply{Term: n.currentTerm, VoteGranted: true}
}

// OnAppendEntries handles an inbound AppendEntries RPC (spec.md §4.F),
// including the heartbeat case (Entries empty). It is the only place a
// Follower/Candidate recognizes a legitimate leader for the current term.
func (n *Node) OnAppendEntries(args AppendEntriesArgs) (reply AppendEntriesReply) {
	n.mu.Lock()
	defer n.mu.Unlock()
	defer func() { n.metrics.RecordAppendEntries(reply.Success) }()
	now := n.clock.Now()

	if args.Term < n.currentTerm {
		return AppendEntriesReply{Term: n.currentTerm, Success: false}
	}
	if args.Term > n.currentTerm {
		if err := n.becomeFollowerLocked(args.Term, now); err != nil {
			return AppendEntriesReply{Term: n.currentTerm, Success: false}
		}
	}

	// A valid leader for our current term: step down if we were Candidate,
	// record it, and reset the election timer (spec.md §4.D/§4.E).
	n.role = Follower
	n.leaderID = args.LeaderID
	n.electionTerm = 0
	n.votesReceived = nil
	n.preVoteActive = false
	n.timer.Reset(now)

	// Consistency check (spec.md §4.F): prev_log_index/prev_log_term must
	// match what we have, or we reject and report a backoff hint.
	if args.PrevLogIndex > n.log.LastIndex() {
		return AppendEntriesReply{
			Term:          n.currentTerm,
			Success:       false,
			ConflictIndex: n.log.LastIndex() + 1,
			ConflictTerm:  0,
		}
	}
	prevTerm, err := n.log.TermAt(args.PrevLogIndex)
	if err != nil {
		// Unreachable given the bounds check above; defensive fallback.
		return AppendEntriesReply{Term: n.currentTerm, Success: false}
	}
	if prevTerm != args.PrevLogTerm {
		conflictTerm := prevTerm
		conflictIndex := args.PrevLogIndex
		for conflictIndex > 1 {
			t, _ := n.log.TermAt(conflictIndex - 1)
			if t != conflictTerm {
				break
			}
			conflictIndex--
		}
		return AppendEntriesReply{
			Term:          n.currentTerm,
			Success:       false,
			ConflictIndex: conflictIndex,
			ConflictTerm:  conflictTerm,
		}
	}

	if err := n.reconcileEntriesLocked(args.PrevLogIndex, fromWireAll(args.Entries)); err != nil {
		return AppendEntriesReply{Term: n.currentTerm, Success: false}
	}

	if args.LeaderCommit > n.vol.CommitIndex {
		newCommit := args.LeaderCommit
		if n.log.LastIndex() < newCommit {
			newCommit = n.log.LastIndex()
		}
		n.vol.CommitIndex = newCommit
		n.tryApplyLocked()
	}

	return AppendEntriesReply{Term: n.currentTerm, Success: true}
}

// reconcileEntriesLocked implements the log-matching merge (spec.md §3,
// "Log Matching"): walk the incoming entries against what is already on
// disk, identify the first mismatch, and persist the truncate+append before
// mirroring either into the in-memory log. Persisting first (rather than
// mutating n.log optimistically) keeps a later retry of the exact same
// AppendEntries idempotent: if this attempt's persist fails, n.log still
// looks exactly like it did before the RPC arrived, so the leader's retry
// sees a genuine mismatch again instead of a false "already up to date".
func (n *Node) reconcileEntriesLocked(prevLogIndex uint64, entries []raftlog.Entry) error {
	next := prevLogIndex + 1
	i := 0
	var conflictIndex uint64
	conflict := false
	for ; i < len(entries); i++ {
		idx := next + uint64(i)
		if idx > n.log.LastIndex() {
			break
		}
		existingTerm, _ := n.log.TermAt(idx)
		if existingTerm != entries[i].Term {
			conflictIndex, conflict = idx, true
			break
		}
	}
	if i >= len(entries) {
		return nil // fully overlapped with what we already have; nothing to append
	}
	newTail := entries[i:]
	truncatedAt := next + uint64(i)

	// Apply the same committed-entry guard raftlog.TruncateFrom enforces,
	// before persisting anything: the store must never be asked to drop a
	// committed suffix even transiently, regardless of what the in-memory
	// log would later refuse to mirror. The refusal fails the RPC (the
	// leader gets success=false); the node logs it and keeps running.
	if conflict && conflictIndex <= n.vol.CommitIndex {
		n.logger.Warn("refusing truncate of committed entry", "node", n.cfg.NodeID, "index", conflictIndex)
		return fmt.Errorf("raft: refusing to truncate committed entry at index %d (commit_index %d)", conflictIndex, n.vol.CommitIndex)
	}

	if err := n.persistTruncateAndTail(truncatedAt, newTail); err != nil {
		return err
	}
	if conflict {
		if err := n.log.TruncateFrom(conflictIndex, n.vol.CommitIndex); err != nil {
			// Unreachable given the guard above; defensive fallback.
			n.logger.Warn("refusing truncate of committed entry", "node", n.cfg.NodeID, "index", conflictIndex, "error", err)
			return err
		}
	}
	n.log.Append(newTail...)
	return nil
}

// sendRequestVoteToAllLocked builds one outbound RequestVote send per peer.
// Callers must hold n.mu while building it but the returned outbox is only
// run after the lock is released.
func (n *Node) sendRequestVoteToAllLocked(args RequestVoteArgs) outbox {
	var ob outbox
	for _, p := range n.cfg.Peers {
		peer := p
		ob = append(ob, func() {
			n.trans.SendRequestVote(peer, args, func(reply RequestVoteReply, err error) {
				if err != nil {
					return
				}
				n.OnRequestVoteReply(peer, reply)
			})
		})
	}
	return ob
}

// OnRequestVoteReply processes a (possibly delayed, possibly stale)
// RequestVote reply from peer (spec.md §6.2).
func (n *Node) OnRequestVoteReply(peer string, reply RequestVoteReply) {
	n.mu.Lock()
	now := n.clock.Now()
	ob := n.handleRequestVoteReplyLocked(peer, reply, now)
	n.mu.Unlock()
	ob.run()
}

func (n *Node) handleRequestVoteReplyLocked(peer string, reply RequestVoteReply, now time.Time) outbox {
	if !reply.PreVote && reply.Term > n.currentTerm {
		// Nothing is replied from here — this is us processing a reply we
		// already received, not answering an RPC — so a persist failure
		// has already been logged by becomeFollowerLocked; there is no
		// externally visible state left to protect.
		_ = n.becomeFollowerLocked(reply.Term, now)
		return nil
	}

	if reply.PreVote {
		if !n.preVoteActive || !reply.VoteGranted {
			return nil
		}
		n.preVotesReceived[peer] = true
		if n.hasMajorityLocked(n.preVotesReceived) {
			n.preVoteActive = false
			return n.becomeCandidateLocked(now)
		}
		return nil
	}

	if n.role != Candidate || n.electionTerm != n.currentTerm || !reply.VoteGranted {
		return nil
	}
	n.votesReceived[peer] = true
	if n.hasMajorityLocked(n.votesReceived) {
		return n.becomeLeaderLocked(now)
	}
	return nil
}
