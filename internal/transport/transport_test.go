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

package transport

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/firefly-oss/raftcore/internal/compression"
	"github.com/firefly-oss/raftcore/internal/raft"
	"github.com/firefly-oss/raftcore/internal/raftclock"
	"github.com/firefly-oss/raftcore/internal/raftstate"
)

// freePort asks the OS for an unused TCP port on loopback.
func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving a port failed: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// TestTwoNodeClusterElectsLeaderOverRealSockets drives two raft.Node
// instances connected by real TCP servers/clients (plain codec, no TLS)
// through election and a single Submit, proving the wire framing and codec
// round-trip correctly against the core's real RPC handlers — not just the
// in-process fakeTransport the raft package's own suite uses.
func TestTwoNodeClusterElectsLeaderOverRealSockets(t *testing.T) {
	addrs := map[string]string{"n1": freePort(t), "n2": freePort(t)}
	codec := NewCodec(compression.AlgorithmNone)

	nodes := map[string]*raft.Node{}
	servers := map[string]*Server{}
	applied := map[string][]string{}

	for _, id := range []string{"n1", "n2"} {
		id := id
		peer := "n2"
		if id == "n2" {
			peer = "n1"
		}
		cfg := raft.Config{
			NodeID:             id,
			Peers:              []string{peer},
			ElectionTimeoutMin: 150 * time.Millisecond,
			ElectionTimeoutMax: 300 * time.Millisecond,
			HeartbeatInterval:  30 * time.Millisecond,
			PreVote:            false,
		}
		client := NewClient(codec, nil)
		n, err := raft.New(cfg, raftclock.SystemClock{}, raftclock.NewMathRandRNG(int64(len(id))*104729+1),
			raftstate.NewMemStore(), &peerDialingTransport{client: client, addrs: addrs}, func(index uint64, command []byte) {
				applied[id] = append(applied[id], string(command))
			}, nil)
		if err != nil {
			t.Fatalf("raft.New(%s) failed: %v", id, err)
		}
		nodes[id] = n

		srv, err := NewServer(addrs[id], n, codec, nil)
		if err != nil {
			t.Fatalf("NewServer(%s) failed: %v", id, err)
		}
		servers[id] = srv
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for id, srv := range servers {
		srv := srv
		go func() { _ = srv.Serve(ctx) }()
		defer func(id string) { _ = servers[id].Close() }(id)
	}
	time.Sleep(20 * time.Millisecond) // let listeners come up

	stop := make(chan struct{})
	defer close(stop)
	for _, n := range nodes {
		n := n
		go func() {
			ticker := time.NewTicker(10 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case now := <-ticker.C:
					n.Tick(now)
				}
			}
		}()
	}

	deadline := time.Now().Add(5 * time.Second)
	var leader *raft.Node
	for time.Now().Before(deadline) {
		for _, n := range nodes {
			if n.Status().Role == raft.Leader {
				leader = n
				break
			}
		}
		if leader != nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if leader == nil {
		t.Fatal("no leader elected over real TCP transport within deadline")
	}

	res := leader.Submit([]byte("hello-over-the-wire"))
	if !res.Accepted {
		t.Fatal("expected leader to accept Submit")
	}

	deadline = time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		allCaughtUp := true
		for _, n := range nodes {
			if n.Status().CommitIndex < res.Index {
				allCaughtUp = false
			}
		}
		if allCaughtUp {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("command never committed across both nodes: %+v", func() map[string]raft.Status {
		out := map[string]raft.Status{}
		for id, n := range nodes {
			out[id] = n.Status()
		}
		return out
	}())
}

// peerDialingTransport resolves a peer id to its listen address before
// delegating to a real Client; production wiring would do this via cluster
// config instead of an in-test map.
type peerDialingTransport struct {
	client *Client
	addrs  map[string]string
}

func (p *peerDialingTransport) SendRequestVote(peer string, args raft.RequestVoteArgs, reply func(raft.RequestVoteReply, error)) {
	addr, ok := p.addrs[peer]
	if !ok {
		reply(raft.RequestVoteReply{}, fmt.Errorf("transport: unknown peer %q", peer))
		return
	}
	p.client.SendRequestVote(addr, args, reply)
}

func (p *peerDialingTransport) SendAppendEntries(peer string, args raft.AppendEntriesArgs, ctx raft.AppendEntriesContext, reply func(raft.AppendEntriesReply, error)) {
	addr, ok := p.addrs[peer]
	if !ok {
		reply(raft.AppendEntriesReply{}, fmt.Errorf("transport: unknown peer %q", peer))
		return
	}
	p.client.SendAppendEntries(addr, args, ctx, reply)
}
