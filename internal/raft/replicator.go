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

import "time"

// replicateToAllPeersLocked sends an AppendEntries to every peer right now,
// independent of the heartbeat cadence — used right after a Submit or a
// leader election so new entries propagate without waiting for the next
// heartbeat tick.
func (n *Node) replicateToAllPeersLocked() outbox {
	now := n.clock.Now()
	var ob outbox
	for _, p := range n.cfg.Peers {
		ob = append(ob, n.sendAppendEntriesClosureLocked(p))
		n.lastSent[p] = now
	}
	return ob
}

// replicateDueLocked sends an AppendEntries only to peers that haven't
// heard from us within HeartbeatInterval, called on every Tick while
// Leader (spec.md §4.G, "periodic heartbeats").
func (n *Node) replicateDueLocked(now time.Time) outbox {
	var ob outbox
	for _, p := range n.cfg.Peers {
		if now.Sub(n.lastSent[p]) < n.cfg.HeartbeatInterval {
			continue
		}
		ob = append(ob, n.sendAppendEntriesClosureLocked(p))
		n.lastSent[p] = now
	}
	return ob
}

// sendAppendEntriesClosureLocked snapshots everything needed to send an
// AppendEntries to peer based on its current next_index while the lock is
// held, and returns a closure that performs the actual send after the lock
// is released.
func (n *Node) sendAppendEntriesClosureLocked(peer string) func() {
	nextIdx := n.vol.NextIndex[peer]
	if nextIdx < 1 {
		nextIdx = 1
	}
	prevIndex := nextIdx - 1
	prevTerm, _ := n.log.TermAt(prevIndex)
	entries := n.log.Slice(nextIdx)
	args := AppendEntriesArgs{
		Term:         n.currentTerm,
		LeaderID:     n.cfg.NodeID,
		PrevLogIndex: prevIndex,
		PrevLogTerm:  prevTerm,
		Entries:      toWireAll(entries),
		LeaderCommit: n.vol.CommitIndex,
	}
	ctx := AppendEntriesContext{Term: n.currentTerm, PrevLogIndex: prevIndex, EntriesSentLen: len(entries)}

	return func() {
		n.trans.SendAppendEntries(peer, args, ctx, func(reply AppendEntriesReply, err error) {
			if err != nil {
				return
			}
			n.OnAppendEntriesReply(peer, reply, ctx)
		})
	}
}

// OnAppendEntriesReply processes a (possibly delayed, possibly stale)
// AppendEntries reply from peer, matched against the context captured when
// the request was sent (spec.md §6.2).
func (n *Node) OnAppendEntriesReply(peer string, reply AppendEntriesReply, ctx AppendEntriesContext) {
	n.mu.Lock()
	now := n.clock.Now()
	ob := n.handleAppendEntriesReplyLocked(peer, reply, ctx, now)
	n.mu.Unlock()
	ob.run()
}

func (n *Node) handleAppendEntriesReplyLocked(peer string, reply AppendEntriesReply, ctx AppendEntriesContext, now time.Time) outbox {
	if reply.Term > n.currentTerm {
		// As in handleRequestVoteReplyLocked: we are processing a reply we
		// already received, not answering one, so there is no externally
		// visible success to retract if the term bump fails to persist.
		_ = n.becomeFollowerLocked(reply.Term, now)
		return nil
	}
	if n.role != Leader || ctx.Term != n.currentTerm {
		return nil // stale: no longer leader, or this reply belongs to an earlier term's request
	}

	if reply.Success {
		matchIdx := ctx.PrevLogIndex + uint64(ctx.EntriesSentLen)
		if matchIdx > n.vol.MatchIndex[peer] {
			n.vol.MatchIndex[peer] = matchIdx
		}
		if next := matchIdx + 1; next > n.vol.NextIndex[peer] {
			n.vol.NextIndex[peer] = next
		}
		n.advanceCommitIndexLocked()
		return nil
	}

	newNext := n.backoffNextIndexLocked(peer, reply)
	if newNext < n.vol.NextIndex[peer] {
		n.vol.NextIndex[peer] = newNext
	}
	return nil
}

// backoffNextIndexLocked computes where next_index[peer] should move to
// after a failed AppendEntries, using the optional conflict hints to skip
// past an entire conflicting term in one round trip when possible
// (SPEC_FULL §4), falling back to spec.md §4.G's plain decrement.
func (n *Node) backoffNextIndexLocked(peer string, reply AppendEntriesReply) uint64 {
	switch {
	case reply.ConflictTerm != 0:
		if idx := n.lastIndexWithTermLocked(reply.ConflictTerm); idx > 0 {
			return idx + 1
		}
		return max1(reply.ConflictIndex)
	case reply.ConflictIndex != 0:
		return max1(reply.ConflictIndex)
	default:
		if n.vol.NextIndex[peer] > 1 {
			return n.vol.NextIndex[peer] - 1
		}
		return 1
	}
}

func max1(i uint64) uint64 {
	if i < 1 {
		return 1
	}
	return i
}

func (n *Node) lastIndexWithTermLocked(term uint64) uint64 {
	for idx := n.log.LastIndex(); idx > 0; idx-- {
		t, err := n.log.TermAt(idx)
		if err != nil {
			return 0
		}
		if t == term {
			return idx
		}
		if t < term {
			return 0
		}
	}
	return 0
}

// advanceCommitIndexLocked implements spec.md §3's commit rule: commit_index
// may advance to N only if a majority of match_index (including the
// leader itself) is >= N AND log[N].term == current_term — entries from
// earlier terms are never committed by counting replicas alone.
func (n *Node) advanceCommitIndexLocked() {
	for N := n.log.LastIndex(); N > n.vol.CommitIndex; N-- {
		term, err := n.log.TermAt(N)
		if err != nil || term != n.currentTerm {
			continue
		}
		count := 0
		for _, m := range n.vol.MatchIndex {
			if m >= N {
				count++
			}
		}
		if count >= n.cfg.majority() {
			n.vol.CommitIndex = N
			n.tryApplyLocked()
			return
		}
	}
}
