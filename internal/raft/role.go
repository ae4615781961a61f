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
	"time"

	"github.com/firefly-oss/raftcore/internal/raftlog"
)

// becomeFollowerLocked implements the "term discovery" rule (spec.md §4.E):
// any time a node observes a term greater than its own, in an RPC or a
// reply, it adopts that term, clears its vote, and reverts to Follower —
// regardless of what role it held before. A non-nil return means the term
// bump never reached stable storage; current_term/voted_for/role are
// restored so the caller can fail its reply without this node having
// silently adopted a term it cannot remember across a crash.
func (n *Node) becomeFollowerLocked(term uint64, now time.Time) error {
	prevTerm, prevVotedFor, prevRole := n.currentTerm, n.votedFor, n.role
	n.currentTerm = term
	n.votedFor = ""
	n.role = Follower
	n.leaderID = ""
	n.electionTerm = 0
	n.votesReceived = nil
	n.preVoteActive = false
	n.preVotesReceived = nil
	n.vol.ClearLeaderState()
	n.timer.Reset(now)
	if err := n.persistTermAndVote(); err != nil {
		n.currentTerm, n.votedFor, n.role = prevTerm, prevVotedFor, prevRole
		return err
	}
	return nil
}

// startElectionLocked begins a new election round after the timer expires
// on a Follower or Candidate. With PreVote enabled it first runs a
// non-binding probe round so a partitioned node that cannot win doesn't
// burn a real term (SPEC_FULL §4); otherwise it goes straight to
// candidacy, matching spec.md §4.E's baseline table.
func (n *Node) startElectionLocked(now time.Time) outbox {
	n.timer.Reset(now)
	n.metrics.RecordElectionStarted()
	if n.cfg.PreVote {
		return n.beginPreVoteLocked(now)
	}
	return n.becomeCandidateLocked(now)
}

func (n *Node) beginPreVoteLocked(now time.Time) outbox {
	n.preVoteActive = true
	n.preVoteTerm = n.currentTerm + 1
	n.preVotesReceived = map[string]bool{n.cfg.NodeID: true}
	if n.hasMajorityLocked(n.preVotesReceived) {
		n.preVoteActive = false
		return n.becomeCandidateLocked(now)
	}
	args := RequestVoteArgs{
		Term:         n.preVoteTerm,
		CandidateID:  n.cfg.NodeID,
		LastLogIndex: n.log.LastIndex(),
		LastLogTerm:  n.log.LastTerm(),
		PreVote:      true,
	}
	return n.sendRequestVoteToAllLocked(args)
}

// becomeCandidateLocked increments current_term, votes for itself, and
// requests votes from every peer (spec.md §4.E). A single-node cluster
// (no peers) wins its own election immediately. If the term bump cannot be
// persisted, the candidacy is aborted before any RequestVote is sent — no
// peer, and no later leadership claim, must ever be based on a term this
// node cannot recall across a crash.
func (n *Node) becomeCandidateLocked(now time.Time) outbox {
	prevTerm, prevVotedFor, prevRole := n.currentTerm, n.votedFor, n.role
	n.preVoteActive = false
	n.role = Candidate
	n.currentTerm++
	n.votedFor = n.cfg.NodeID
	n.leaderID = ""
	n.electionTerm = n.currentTerm
	n.votesReceived = map[string]bool{n.cfg.NodeID: true}
	if err := n.persistTermAndVote(); err != nil {
		n.currentTerm, n.votedFor, n.role = prevTerm, prevVotedFor, prevRole
		n.electionTerm = 0
		n.votesReceived = nil
		return nil
	}

	if n.hasMajorityLocked(n.votesReceived) {
		return n.becomeLeaderLocked(now)
	}
	args := RequestVoteArgs{
		Term:         n.currentTerm,
		CandidateID:  n.cfg.NodeID,
		LastLogIndex: n.log.LastIndex(),
		LastLogTerm:  n.log.LastTerm(),
	}
	return n.sendRequestVoteToAllLocked(args)
}

// becomeLeaderLocked transitions to Leader, resets per-peer replication
// progress, and appends a no-op entry so that entries from earlier terms
// can become committed without waiting on new client traffic (spec.md
// scenario 6; SPEC_FULL §4).
func (n *Node) becomeLeaderLocked(now time.Time) outbox {
	n.metrics.RecordElectionWon()
	n.role = Leader
	n.leaderID = n.cfg.NodeID
	n.electionTerm = 0
	n.votesReceived = nil
	n.vol.ResetLeaderState(n.cfg.Peers, n.log.LastIndex())
	n.vol.MatchIndex[n.cfg.NodeID] = n.log.LastIndex()

	noop := raftlog.Entry{Term: n.currentTerm, Index: n.log.LastIndex() + 1, Type: raftlog.EntryNoop}
	n.log.Append(noop)
	if err := n.persistTail(noop.Index - 1); err != nil {
		n.logger.Warn("aborting leadership: persisting no-op entry failed", "node", n.cfg.NodeID, "term", n.currentTerm, "error", err)
		_ = n.log.TruncateFrom(noop.Index, n.vol.CommitIndex)
		n.role = Follower
		n.leaderID = ""
		n.timer.Reset(now)
		return nil
	}
	n.vol.MatchIndex[n.cfg.NodeID] = noop.Index

	n.logger.Info("became leader", "node", n.cfg.NodeID, "term", n.currentTerm)
	// A majority that includes only this node (e.g. a single-node cluster,
	// or a majority size of 1) would otherwise never see commit_index
	// advance, since that only happens in response to a peer's reply.
	n.advanceCommitIndexLocked()
	return n.replicateToAllPeersLocked()
}

// hasMajorityLocked reports whether the given vote set already contains a
// strict majority of the cluster (spec.md §4.E, "cluster_size = 1 +
// len(peers)").
func (n *Node) hasMajorityLocked(votes map[string]bool) bool {
	count := 0
	for _, granted := range votes {
		if granted {
			count++
		}
	}
	return count >= n.cfg.majority()
}
