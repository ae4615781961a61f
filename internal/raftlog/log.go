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
Package raftlog implements the ordered, append-only command log that backs
a Raft node.

Index 0 always holds the sentinel entry {term: 0, index: 0}; it is never
removed and simplifies every "previous entry" lookup in the AppendEntries
consistency check. Real entries start at index 1 and are stored
contiguously: log[i].index == i for every i > 0 (invariant L2).

The log never reorders or renumbers entries once appended (L3, terms are
non-decreasing along the log), and truncation refuses to touch anything at
or below the caller-supplied commit index (L4 is preserved by construction:
TruncateFrom is the only mutation that removes entries, and it is gated).
*/
package raftlog

import "fmt"

// EntryType distinguishes ordinary client commands from internal markers.
type EntryType int

const (
	// EntryCommand is an application command submitted via Node.Submit.
	EntryCommand EntryType = iota
	// EntryNoop is appended by a freshly elected leader so that entries
	// from prior terms can become committed sooner (spec.md scenario 6).
	// It is never delivered to the application apply callback.
	EntryNoop
)

// Entry is a single slot in the replicated log.
type Entry struct {
	Term    uint64
	Index   uint64
	Type    EntryType
	Command []byte
}

// Log is the ordered, append-only sequence of entries for one Raft node.
// It is not safe for concurrent use; callers (the raft package) serialize
// access themselves as required by the single-threaded-executor model.
type Log struct {
	entries []Entry // entries[0] is always the sentinel
}

// New returns a Log containing only the sentinel entry.
func New() *Log {
	return &Log{entries: []Entry{{Term: 0, Index: 0, Type: EntryNoop}}}
}

// FromEntries rebuilds a Log from a previously persisted tail that already
// includes the sentinel at index 0. It panics if the sentinel is missing or
// corrupt, since that is a safety violation rather than a recoverable error
// (spec.md §7).
func FromEntries(entries []Entry) *Log {
	if len(entries) == 0 || entries[0].Index != 0 || entries[0].Term != 0 {
		panic("raftlog: restored log is missing a valid sentinel at index 0")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Index != uint64(i) {
			panic(fmt.Sprintf("raftlog: restored log has non-contiguous index at position %d: %d", i, entries[i].Index))
		}
	}
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Log{entries: cp}
}

// LastIndex returns the index of the last entry in the log (0 if only the
// sentinel is present).
func (l *Log) LastIndex() uint64 {
	return l.entries[len(l.entries)-1].Index
}

// LastTerm returns the term of the last entry in the log.
func (l *Log) LastTerm() uint64 {
	return l.entries[len(l.entries)-1].Term
}

// TermAt returns the term of the entry at index i. It returns an error if i
// is beyond the last index; index 0 always resolves to term 0.
func (l *Log) TermAt(i uint64) (uint64, error) {
	if i > l.LastIndex() {
		return 0, fmt.Errorf("raftlog: term_at(%d): index beyond last index %d", i, l.LastIndex())
	}
	return l.entries[i].Term, nil
}

// EntryAt returns a copy of the entry at index i.
func (l *Log) EntryAt(i uint64) (Entry, error) {
	if i > l.LastIndex() {
		return Entry{}, fmt.Errorf("raftlog: entry_at(%d): index beyond last index %d", i, l.LastIndex())
	}
	return l.entries[i], nil
}

// Append appends entries starting at LastIndex()+1. It panics if the first
// new entry does not continue the log contiguously — the core never calls
// Append with a gap; a gap indicates a programming error in the caller, not
// a recoverable protocol condition.
func (l *Log) Append(entries ...Entry) {
	next := l.LastIndex() + 1
	for i, e := range entries {
		want := next + uint64(i)
		if e.Index != want {
			panic(fmt.Sprintf("raftlog: append: expected contiguous index %d, got %d", want, e.Index))
		}
	}
	l.entries = append(l.entries, entries...)
}

// TruncateFrom removes every entry with index >= from. It refuses to
// truncate at or below commitIndex: overwriting a committed entry is a
// safety violation (spec.md §3, "Committed entries MUST NEVER be
// overwritten or truncated"), so the caller is expected to treat the
// returned error as fatal rather than retry.
func (l *Log) TruncateFrom(from, commitIndex uint64) error {
	if from == 0 {
		return fmt.Errorf("raftlog: truncate_from(0): refuses to remove the sentinel")
	}
	if from <= commitIndex {
		return fmt.Errorf("raftlog: truncate_from(%d): index is at or below commit_index %d (safety violation)", from, commitIndex)
	}
	if from > l.LastIndex() {
		return nil
	}
	l.entries = l.entries[:from]
	return nil
}

// Slice returns a copy of every entry with index >= fromInclusive, in order.
// An empty slice is returned if fromInclusive is beyond the last index.
func (l *Log) Slice(fromInclusive uint64) []Entry {
	if fromInclusive > l.LastIndex() {
		return nil
	}
	if fromInclusive == 0 {
		fromInclusive = 1 // never hand back the sentinel as a "new" entry
	}
	out := make([]Entry, l.LastIndex()-fromInclusive+1)
	copy(out, l.entries[fromInclusive:])
	return out
}

// Tail returns every entry with index > sinceIndex, suitable for
// incremental persistence of "the part of the log written since the last
// save" (spec.md §4.B).
func (l *Log) Tail(sinceIndex uint64) []Entry {
	if sinceIndex >= l.LastIndex() {
		return nil
	}
	return l.Slice(sinceIndex + 1)
}

// Len returns the number of entries including the sentinel.
func (l *Log) Len() int {
	return len(l.entries)
}

// IsUpToDate reports whether a log ending at (lastTerm, lastIndex) is at
// least as up-to-date as this log, per spec.md §4.F / the Raft paper §5.4.1.
func (l *Log) IsUpToDate(lastTerm, lastIndex uint64) bool {
	ourTerm, ourIndex := l.LastTerm(), l.LastIndex()
	if lastTerm != ourTerm {
		return lastTerm > ourTerm
	}
	return lastIndex >= ourIndex
}
