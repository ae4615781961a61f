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
Package transport carries RequestVote/AppendEntries RPCs over TCP (optionally
TLS) for a raft.Node: a one-byte message type followed by a 4-byte
big-endian length-prefixed body. Every send runs in its own goroutine and
delivers its result through a callback, matching raft.Transport's
fire-and-forget contract — the core never blocks on a reply.
*/
package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/firefly-oss/raftcore/internal/protocol"
)

const (
	msgRequestVote   = byte(protocol.MsgRequestVote)
	msgAppendEntries = byte(protocol.MsgAppendEntries)
)

func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > protocol.MaxMessageSize {
		return nil, fmt.Errorf("transport: frame of %d bytes exceeds max %d", n, protocol.MaxMessageSize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
