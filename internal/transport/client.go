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
	"crypto/tls"
	"net"
	"time"

	"github.com/firefly-oss/raftcore/internal/raft"
)

// Client implements raft.Transport over TCP. Every Send* call dials, sends,
// waits for a reply, and invokes the callback from its own goroutine — the
// Node driving this Transport never blocks.
type Client struct {
	codec       *Codec
	tlsConfig   *tls.Config
	dialTimeout time.Duration
	rpcTimeout  time.Duration
}

// NewClient returns a Client using codec for wire encoding. tlsConfig may be
// nil for a plaintext cluster (e.g. a trusted private network or a
// loopback test).
func NewClient(codec *Codec, tlsConfig *tls.Config) *Client {
	return &Client{
		codec:       codec,
		tlsConfig:   tlsConfig,
		dialTimeout: 500 * time.Millisecond,
		rpcTimeout:  2 * time.Second,
	}
}

func (c *Client) dial(peer string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", peer, c.dialTimeout)
	if err != nil {
		return nil, err
	}
	if c.tlsConfig != nil {
		tlsConn := tls.Client(conn, c.tlsConfig)
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, err
		}
		return tlsConn, nil
	}
	return conn, nil
}

func roundTrip[TReply any](c *Client, peer string, msgType byte, args any) (TReply, error) {
	var zero TReply
	conn, err := c.dial(peer)
	if err != nil {
		return zero, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.rpcTimeout))

	body, err := c.codec.Encode(args)
	if err != nil {
		return zero, err
	}
	if _, err := conn.Write([]byte{msgType}); err != nil {
		return zero, err
	}
	if err := writeFrame(conn, body); err != nil {
		return zero, err
	}

	respBody, err := readFrame(conn)
	if err != nil {
		return zero, err
	}
	var reply TReply
	if err := c.codec.Decode(respBody, &reply); err != nil {
		return zero, err
	}
	return reply, nil
}

// SendRequestVote implements raft.Transport.
func (c *Client) SendRequestVote(peer string, args raft.RequestVoteArgs, reply func(raft.RequestVoteReply, error)) {
	go func() {
		rep, err := roundTrip[raft.RequestVoteReply](c, peer, msgRequestVote, args)
		reply(rep, err)
	}()
}

// SendAppendEntries implements raft.Transport. ctx is not carried over the
// wire — it only exists so the caller's reply closure (built under the
// Node's lock in internal/raft/replicator.go) can match a reply against the
// request it was sent for.
func (c *Client) SendAppendEntries(peer string, args raft.AppendEntriesArgs, _ raft.AppendEntriesContext, reply func(raft.AppendEntriesReply, error)) {
	go func() {
		rep, err := roundTrip[raft.AppendEntriesReply](c, peer, msgAppendEntries, args)
		reply(rep, err)
	}()
}
