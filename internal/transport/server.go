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
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/firefly-oss/raftcore/internal/raft"
	"golang.org/x/sync/errgroup"
)

// Server accepts inbound RequestVote/AppendEntries connections and
// dispatches them straight into a raft.Node's exported, self-locking
// OnRequestVote/OnAppendEntries handlers.
type Server struct {
	ln          net.Listener
	node        *raft.Node
	codec       *Codec
	readTimeout time.Duration
}

// NewServer binds addr (TLS-wrapped if tlsConfig is non-nil) and returns a
// Server ready for Serve.
func NewServer(addr string, node *raft.Node, codec *Codec, tlsConfig *tls.Config) (*Server, error) {
	var (
		ln  net.Listener
		err error
	)
	if tlsConfig != nil {
		ln, err = tls.Listen("tcp", addr, tlsConfig)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("transport: listening on %s: %w", addr, err)
	}
	return &Server{ln: ln, node: node, codec: codec, readTimeout: 5 * time.Second}, nil
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Close stops accepting new connections.
func (s *Server) Close() error { return s.ln.Close() }

// Serve runs the accept loop until ctx is canceled, handling each
// connection on its own goroutine under an errgroup — so a handler panic or
// accept error tears down the whole listener rather than leaking goroutines
// the way a bare sync.WaitGroup accept loop would (spec.md's transport is a
// pure collaborator; this is implementation detail, not core semantics).
func (s *Server) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return s.ln.Close()
	})
	g.Go(func() error {
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return nil
				default:
					return err
				}
			}
			g.Go(func() error {
				s.handleConn(conn)
				return nil
			})
		}
	})
	return g.Wait()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(s.readTimeout))

	typeBuf := make([]byte, 1)
	if _, err := io.ReadFull(conn, typeBuf); err != nil {
		return
	}
	body, err := readFrame(conn)
	if err != nil {
		return
	}

	switch typeBuf[0] {
	case msgRequestVote:
		var args raft.RequestVoteArgs
		if err := s.codec.Decode(body, &args); err != nil {
			return
		}
		s.writeReply(conn, s.node.OnRequestVote(args))
	case msgAppendEntries:
		var args raft.AppendEntriesArgs
		if err := s.codec.Decode(body, &args); err != nil {
			return
		}
		s.writeReply(conn, s.node.OnAppendEntries(args))
	}
}

func (s *Server) writeReply(conn net.Conn, v any) {
	body, err := s.codec.Encode(v)
	if err != nil {
		return
	}
	writeFrame(conn, body)
}
