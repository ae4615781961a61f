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
	"testing"
	"time"

	"github.com/firefly-oss/raftcore/internal/raftclock"
	"github.com/firefly-oss/raftcore/internal/raftlog"
	"github.com/firefly-oss/raftcore/internal/raftstate"
)

// nopTransport never delivers anything; useful for nodes a test drives
// purely through direct On* calls and never expects to campaign.
type nopTransport struct{}

func (nopTransport) SendRequestVote(string, RequestVoteArgs, func(RequestVoteReply, error)) {}
func (nopTransport) SendAppendEntries(string, AppendEntriesArgs, AppendEntriesContext, func(AppendEntriesReply, error)) {
}

func newStandaloneFollower(t *testing.T, id string, peers []string) *Node {
	t.Helper()
	return newStandaloneFollowerWithStore(t, id, peers, raftstate.NewMemStore())
}

func newStandaloneFollowerWithStore(t *testing.T, id string, peers []string, store raftstate.Store) *Node {
	t.Helper()
	cfg := Config{
		NodeID:             id,
		Peers:              peers,
		ElectionTimeoutMin: 150 * time.Millisecond,
		ElectionTimeoutMax: 300 * time.Millisecond,
		HeartbeatInterval:  50 * time.Millisecond,
	}
	clock := raftclock.NewManualClock(time.Unix(0, 0))
	rng := raftclock.NewMathRandRNG(1)
	n, err := New(cfg, clock, rng, store, nopTransport{}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

// failingStore wraps a MemStore but can be flipped into a mode where every
// Save fails, for exercising the persistence-failure paths in rpc.go and
// role.go. Load always delegates to the inner store.
type failingStore struct {
	inner    *raftstate.MemStore
	failSave bool
}

func newFailingStore() *failingStore {
	return &failingStore{inner: raftstate.NewMemStore()}
}

func (f *failingStore) Load() (uint64, string, []raftlog.Entry, error) {
	return f.inner.Load()
}

func (f *failingStore) Save(s raftstate.Snapshot) error {
	if f.failSave {
		return fmt.Errorf("failingStore: simulated disk failure")
	}
	return f.inner.Save(s)
}

func (f *failingStore) Close() error { return f.inner.Close() }

// fakeTransport routes RPCs directly to the target Node's handlers,
// synchronously, in the calling goroutine — there is no real network, so
// replies are "delivered" by calling the supplied callback inline after
// the target has produced its reply. blocked marks peer ids this
// transport currently refuses to reach, modeling a network partition.
type fakeTransport struct {
	nodes   map[string]*Node
	blocked map[string]bool
}

func newFakeTransport(nodes map[string]*Node) *fakeTransport {
	return &fakeTransport{nodes: nodes, blocked: map[string]bool{}}
}

func (f *fakeTransport) SendRequestVote(peer string, args RequestVoteArgs, reply func(RequestVoteReply, error)) {
	if f.blocked[peer] {
		return
	}
	target, ok := f.nodes[peer]
	if !ok {
		return
	}
	reply(target.OnRequestVote(args), nil)
}

func (f *fakeTransport) SendAppendEntries(peer string, args AppendEntriesArgs, ctx AppendEntriesContext, reply func(AppendEntriesReply, error)) {
	if f.blocked[peer] {
		return
	}
	target, ok := f.nodes[peer]
	if !ok {
		return
	}
	reply(target.OnAppendEntries(args), nil)
}

type appliedEntry struct {
	index   uint64
	command string
}

// cluster bundles everything a scenario test needs: every node, a shared
// manual clock so Tick calls observe the same wall-clock, and each node's
// own fakeTransport so tests can partition individual links.
type cluster struct {
	nodes      []*Node
	byID       map[string]*Node
	transports map[string]*fakeTransport
	applied    map[string]*[]appliedEntry
	clock      *raftclock.ManualClock
}

func newCluster(t *testing.T, n int, preVote bool) *cluster {
	t.Helper()
	clock := raftclock.NewManualClock(time.Unix(0, 0))
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("node-%d", i)
	}

	byID := make(map[string]*Node, n)
	transports := make(map[string]*fakeTransport, n)
	applied := make(map[string]*[]appliedEntry, n)

	c := &cluster{byID: byID, transports: transports, applied: applied, clock: clock}

	for i, id := range ids {
		var peers []string
		for _, other := range ids {
			if other != id {
				peers = append(peers, other)
			}
		}
		cfg := Config{
			NodeID:             id,
			Peers:              peers,
			ElectionTimeoutMin: 150 * time.Millisecond,
			ElectionTimeoutMax: 300 * time.Millisecond,
			HeartbeatInterval:  40 * time.Millisecond,
			PreVote:            preVote,
		}
		ft := newFakeTransport(byID)
		rng := raftclock.NewMathRandRNG(int64(i)*104729 + 7)
		log := &[]appliedEntry{}
		applied[id] = log
		apply := func(idx uint64, cmd []byte) {
			*log = append(*log, appliedEntry{index: idx, command: string(cmd)})
		}
		node, err := New(cfg, clock, rng, raftstate.NewMemStore(), ft, apply, nil)
		if err != nil {
			t.Fatalf("New(%s): %v", id, err)
		}
		byID[id] = node
		transports[id] = ft
		c.nodes = append(c.nodes, node)
	}
	return c
}

// tick advances the shared clock by step and calls Tick on every node,
// repeated for rounds iterations — the test driver for every scenario.
func (c *cluster) tick(step time.Duration, rounds int) {
	for i := 0; i < rounds; i++ {
		now := c.clock.Advance(step)
		for _, n := range c.nodes {
			n.Tick(now)
		}
	}
}

func (c *cluster) leaders() []*Node {
	var out []*Node
	for _, n := range c.nodes {
		if n.Status().Role == Leader {
			out = append(out, n)
		}
	}
	return out
}

// awaitLeader ticks the cluster until exactly one leader is observed, or
// fails the test once maxRounds is exhausted.
func (c *cluster) awaitLeader(t *testing.T, step time.Duration, maxRounds int) *Node {
	t.Helper()
	for i := 0; i < maxRounds; i++ {
		if leaders := c.leaders(); len(leaders) == 1 {
			return leaders[0]
		}
		c.tick(step, 1)
	}
	t.Fatalf("no single leader emerged after %d rounds of %s", maxRounds, step)
	return nil
}

func (c *cluster) partition(a, b string) {
	c.transports[a].blocked[b] = true
	c.transports[b].blocked[a] = true
}

func (c *cluster) heal(a, b string) {
	delete(c.transports[a].blocked, b)
	delete(c.transports[b].blocked, a)
}
