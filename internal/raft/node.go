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
	"sync"
	"time"

	"github.com/firefly-oss/raftcore/internal/raftclock"
	"github.com/firefly-oss/raftcore/internal/raftlog"
	"github.com/firefly-oss/raftcore/internal/raftstate"
)

// ApplyFunc is invoked once, in index order, for every committed command
// entry. Noop entries (spec.md scenario 6) are never delivered. Node calls
// it synchronously while holding its internal lock, so an ApplyFunc must
// not call back into the Node it was registered on or it will deadlock;
// slow application work should be handed off to another goroutine by the
// caller (spec.md §4.H, "Applier").
type ApplyFunc func(index uint64, command []byte)

// Config holds the tunables spec.md §9 names: the election timeout range,
// the leader heartbeat period, and whether the pre-vote extension is
// enabled.
type Config struct {
	NodeID             string
	Peers              []string // ids of every other cluster member
	ElectionTimeoutMin time.Duration
	ElectionTimeoutMax time.Duration
	HeartbeatInterval  time.Duration
	PreVote            bool
}

func (c Config) clusterSize() int { return 1 + len(c.Peers) }

func (c Config) majority() int { return c.clusterSize()/2 + 1 }

// outbox collects RPC sends decided while n.mu was held so they can be
// issued after it is released — Transport implementations may deliver
// replies synchronously, and calling out to them while still holding the
// lock risks deadlocking against a reply that lands on this goroutine.
type outbox []func()

func (ob outbox) run() {
	for _, f := range ob {
		f()
	}
}

// logSink is the minimal structured-logging surface Node needs; satisfied
// by *logging.Logger. Declared locally so this package never has to import
// internal/logging's concrete type.
type logSink interface {
	Info(msg string, kv ...any)
	Debug(msg string, kv ...any)
	Warn(msg string, kv ...any)
}

type noopLogSink struct{}

func (noopLogSink) Info(string, ...any)  {}
func (noopLogSink) Debug(string, ...any) {}
func (noopLogSink) Warn(string, ...any)  {}

// metricsSink is the minimal observability surface Node reports state
// transitions to; satisfied by *internal/metrics.Collectors without that
// package ever being imported here. Declared locally, like logSink, so the
// core stays free of third-party collaborators.
type metricsSink interface {
	RecordElectionStarted()
	RecordElectionWon()
	RecordAppendEntries(success bool)
}

type noopMetricsSink struct{}

func (noopMetricsSink) RecordElectionStarted()   {}
func (noopMetricsSink) RecordElectionWon()       {}
func (noopMetricsSink) RecordAppendEntries(bool) {}

// Node composes every collaborator named in spec.md §4 (Log, PersistentState,
// VolatileState, ElectionTimer, RoleMachine, RpcHandlers, Replicator,
// Applier) into the single object an embedder drives.
type Node struct {
	mu sync.Mutex

	cfg     Config
	clock   raftclock.Clock
	rng     raftclock.RNG
	store   raftstate.Store
	trans   Transport
	apply   ApplyFunc
	logger  logSink
	metrics metricsSink

	role        Role
	currentTerm uint64
	votedFor    string
	log         *raftlog.Log
	vol         *raftstate.Volatile
	timer       *raftclock.ElectionTimer

	leaderID string // last leader this node has observed, "" if unknown

	// Real-election bookkeeping, valid only while role == Candidate and only
	// for electionTerm == currentTerm.
	electionTerm  uint64
	votesReceived map[string]bool

	// Pre-vote bookkeeping (SPEC_FULL §4); kept independent of currentTerm
	// so a failed pre-vote round never mutates persistent state.
	preVoteActive    bool
	preVoteTerm      uint64
	preVotesReceived map[string]bool

	// lastSent records the send time of the most recent AppendEntries per
	// peer, so the heartbeat policy can avoid sending faster than
	// HeartbeatInterval while still sending immediately after a Submit.
	lastSent map[string]time.Time
}

// New constructs a Node from persisted state loaded from store and starts
// it as a Follower with a freshly randomized election timer. logger may be
// nil, in which case log output is discarded.
func New(cfg Config, clock raftclock.Clock, rng raftclock.RNG, store raftstate.Store, trans Transport, apply ApplyFunc, logger logSink) (*Node, error) {
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("raft: NodeID must not be empty")
	}
	term, votedFor, entries, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("raft: loading persistent state: %w", err)
	}
	timer, err := raftclock.NewElectionTimer(clock, rng, cfg.ElectionTimeoutMin, cfg.ElectionTimeoutMax, clock.Now())
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = noopLogSink{}
	}
	n := &Node{
		cfg:         cfg,
		clock:       clock,
		rng:         rng,
		store:       store,
		trans:       trans,
		metrics:     noopMetricsSink{},
		apply:       apply,
		logger:      logger,
		role:        Follower,
		currentTerm: term,
		votedFor:    votedFor,
		log:         raftlog.FromEntries(entries),
		vol:         raftstate.NewVolatile(),
		timer:       timer,
		lastSent:    make(map[string]time.Time),
	}
	return n, nil
}

// SetMetricsSink wires a *metrics.Collectors (or any type with the same
// three Record* methods) so election/append-entries counters advance as
// the node transitions, instead of only its Status gauges. Safe to call
// once, before the node starts ticking; nil restores the no-op sink.
func (n *Node) SetMetricsSink(m metricsSink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if m == nil {
		m = noopMetricsSink{}
	}
	n.metrics = m
}

// Status returns a point-in-time snapshot of the node's externally visible
// state (spec.md §6.2).
func (n *Node) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Status{
		NodeID:      n.cfg.NodeID,
		Role:        n.role,
		Term:        n.currentTerm,
		LogLength:   n.log.Len(),
		CommitIndex: n.vol.CommitIndex,
		LastApplied: n.vol.LastApplied,
		VotedFor:    n.votedFor,
	}
}

// Submit appends a command to the log if this node is currently Leader. It
// never blocks on replication or commitment; the caller observes the
// command's fate through Status/ApplyFunc (spec.md §4.I, §6.2).
func (n *Node) Submit(command []byte) SubmitResult {
	n.mu.Lock()
	if n.role != Leader {
		hint := n.leaderID
		n.mu.Unlock()
		return SubmitResult{Accepted: false, Hint: hint}
	}
	index := n.log.LastIndex() + 1
	entry := raftlog.Entry{Term: n.currentTerm, Index: index, Type: raftlog.EntryCommand, Command: entryCommandCopy(command)}
	n.log.Append(entry)
	if err := n.persistTail(index - 1); err != nil {
		_ = n.log.TruncateFrom(index, n.vol.CommitIndex)
		hint := n.leaderID
		n.mu.Unlock()
		return SubmitResult{Accepted: false, Hint: hint}
	}
	n.vol.MatchIndex[n.cfg.NodeID] = index
	n.advanceCommitIndexLocked()
	ob := n.replicateToAllPeersLocked()
	n.mu.Unlock()
	ob.run()
	return SubmitResult{Accepted: true, Index: index}
}

func entryCommandCopy(command []byte) []byte {
	if command == nil {
		return nil
	}
	cp := make([]byte, len(command))
	copy(cp, command)
	return cp
}

// persistTail durably saves everything appended since sinceIndex, plus the
// current term/vote. Callers must hold n.mu. A non-nil return means the
// write never reached stable storage; the caller must not let any
// externally visible reply imply otherwise (spec.md §7).
func (n *Node) persistTail(sinceIndex uint64) error {
	tail := n.log.Tail(sinceIndex)
	if err := n.store.Save(raftstate.Snapshot{CurrentTerm: n.currentTerm, VotedFor: n.votedFor, NewTail: tail}); err != nil {
		n.logger.Warn("persist failed", "node", n.cfg.NodeID, "error", err)
		return err
	}
	return nil
}

// persistTruncateAndTail durably truncates the log from `from` onward, then
// appends tail. Used when a follower's log conflicts with the leader's.
func (n *Node) persistTruncateAndTail(from uint64, tail []raftlog.Entry) error {
	snap := raftstate.Snapshot{CurrentTerm: n.currentTerm, VotedFor: n.votedFor, NewTail: tail, Truncated: from, HasTruncate: true}
	if err := n.store.Save(snap); err != nil {
		n.logger.Warn("persist failed", "node", n.cfg.NodeID, "error", err)
		return err
	}
	return nil
}

// persistTermAndVote durably saves current_term/voted_for with no log
// change; used before granting a vote and whenever current_term is bumped.
// The log changes a successful AppendEntries ack depends on are saved by
// persistTruncateAndTail instead.
func (n *Node) persistTermAndVote() error {
	if err := n.store.Save(raftstate.Snapshot{CurrentTerm: n.currentTerm, VotedFor: n.votedFor}); err != nil {
		n.logger.Warn("persist failed", "node", n.cfg.NodeID, "error", err)
		return err
	}
	return nil
}

// StepDown forces a Leader to relinquish leadership immediately rather than
// waiting for a peer to contact it with a higher term: an operator tool for
// draining a node ahead of e.g. a planned restart. It clears the leader's
// replication bookkeeping and backdates the election timer so the next Tick
// sees it expired, triggering a fresh election without the usual wait. It
// is a no-op for a Follower or Candidate, and never touches current_term or
// voted_for, since relinquishing leadership voluntarily is not the "higher
// term observed" case spec.md §4.E governs.
func (n *Node) StepDown() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.role != Leader {
		return
	}
	n.role = Follower
	n.leaderID = ""
	n.vol.ClearLeaderState()
	n.timer.Reset(n.clock.Now().Add(-n.cfg.ElectionTimeoutMax))
}

// Tick drives every time-based behavior: election-timeout detection on
// Follower/Candidate, and heartbeat/replication pacing on Leader. An
// embedder is expected to call this on a steady cadence (e.g. every 10ms).
func (n *Node) Tick(now time.Time) {
	n.mu.Lock()
	var ob outbox
	switch n.role {
	case Leader:
		ob = n.replicateDueLocked(now)
	case Follower, Candidate:
		if n.timer.Expired(now) {
			ob = n.startElectionLocked(now)
		}
	}
	n.mu.Unlock()
	ob.run()
}

