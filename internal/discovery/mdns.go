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
Package discovery is a deployment convenience for finding seed peers on a
local network via mDNS. It has nothing to do with Raft's safety semantics:
the core (internal/raft) only ever sees a static peer-id list supplied at
construction (spec.md's Non-goals explicitly exclude membership
reconfiguration), so this package's only job is to turn "what other raftd
processes are on this LAN" into that static list before a Node is built —
cmd/raftd calls it once, at startup.
*/
package discovery

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceName is the mDNS service type raftd nodes advertise under.
const ServiceName = "_raftcore._tcp"

// Advertisement keeps a running mDNS responder alive for this process's
// node. Call Shutdown when the node stops.
type Advertisement struct {
	server *mdns.Server
}

// Advertise announces nodeID as reachable at bindAddr (host:port) over
// ServiceName. instance must be unique per process on the LAN (the node
// id is a natural choice).
func Advertise(nodeID, host string, port int) (*Advertisement, error) {
	info := []string{"raftcore-node=" + nodeID}
	service, err := mdns.NewMDNSService(nodeID, ServiceName, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("discovery: building mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("discovery: starting mdns responder: %w", err)
	}
	_ = host // advertised via the interface addresses mdns.NewMDNSService resolves automatically
	return &Advertisement{server: server}, nil
}

// Shutdown stops responding to mDNS queries for this node.
func (a *Advertisement) Shutdown() error {
	return a.server.Shutdown()
}

// Peer is a discovered cluster member.
type Peer struct {
	NodeID string
	Addr   string // host:port
}

// Discover queries the LAN for other raftd nodes for up to timeout and
// returns whatever peers answered. It never blocks past timeout, and a
// node that doesn't answer in time is simply absent from the result — the
// caller decides whether an incomplete peer list is acceptable for startup.
func Discover(timeout time.Duration) ([]Peer, error) {
	entriesCh := make(chan *mdns.ServiceEntry, 16)
	var peers []Peer
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entriesCh {
			nodeID := e.Name
			for _, field := range e.InfoFields {
				if len(field) > len("raftcore-node=") && field[:len("raftcore-node=")] == "raftcore-node=" {
					nodeID = field[len("raftcore-node="):]
				}
			}
			peers = append(peers, Peer{
				NodeID: nodeID,
				Addr:   e.AddrV4.String() + ":" + strconv.Itoa(e.Port),
			})
		}
	}()

	err := mdns.Query(&mdns.QueryParam{
		Service: ServiceName,
		Timeout: timeout,
		Entries: entriesCh,
	})
	close(entriesCh)
	<-done
	if err != nil {
		return nil, fmt.Errorf("discovery: querying for peers: %w", err)
	}
	return peers, nil
}
