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

import "github.com/firefly-oss/raftcore/internal/raftlog"

// LogEntryWire is the over-the-wire representation of a log entry carried
// inside AppendEntriesArgs. It mirrors raftlog.Entry field-for-field; the
// two types are kept distinct so the wire shape can evolve (e.g. to add a
// checksum) without touching the log's internal representation.
type LogEntryWire struct {
	Term    uint64
	Index   uint64
	Noop    bool
	Command []byte
}

func toWire(e raftlog.Entry) LogEntryWire {
	return LogEntryWire{Term: e.Term, Index: e.Index, Noop: e.Type == raftlog.EntryNoop, Command: e.Command}
}

func toWireAll(entries []raftlog.Entry) []LogEntryWire {
	if len(entries) == 0 {
		return nil
	}
	out := make([]LogEntryWire, len(entries))
	for i, e := range entries {
		out[i] = toWire(e)
	}
	return out
}

func fromWire(w LogEntryWire) raftlog.Entry {
	typ := raftlog.EntryCommand
	if w.Noop {
		typ = raftlog.EntryNoop
	}
	return raftlog.Entry{Term: w.Term, Index: w.Index, Type: typ, Command: w.Command}
}

func fromWireAll(entries []LogEntryWire) []raftlog.Entry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]raftlog.Entry, len(entries))
	for i, e := range entries {
		out[i] = fromWire(e)
	}
	return out
}
