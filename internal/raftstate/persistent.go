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
Package raftstate holds the persistent and volatile state a Raft node keeps
per spec.md §4.B/§4.C. The interfaces here are the storage "shape"; the
medium (disk, bbolt, memory) is supplied by a collaborator — the on-disk
implementation is internal/storage/boltstore; MemStore below keeps
everything in memory.
*/
package raftstate

import "github.com/firefly-oss/raftcore/internal/raftlog"

// Snapshot is the durable record written by a Store.Save call: the current
// term, the current vote (if any), and the log entries appended since the
// previous save (spec.md §6.4 — "Durable record ... Log entries are
// append-only; truncation rewrites a suffix").
type Snapshot struct {
	CurrentTerm uint64
	VotedFor    string // "" means no vote cast this term
	// NewTail holds entries appended since the last Save. When Truncated is
	// set, the store must first drop every entry with Index >= Truncated
	// before applying NewTail.
	NewTail    []raftlog.Entry
	Truncated  uint64
	HasTruncate bool
}

// Store is the durability contract a Raft node depends on. Implementations
// MUST make Save's effects durable (e.g. fsync) before returning, because
// the core calls Save immediately before the three durability points
// required by spec.md §4.B (granting a vote, acknowledging a successful
// AppendEntries, bumping current_term), and before a leader counts an
// entry it has just appended itself (its election no-op or a Submit).
type Store interface {
	// Load returns the persisted term, vote, and full log (sentinel
	// included) at startup. A brand-new store returns term 0, no vote, and
	// a log containing only the sentinel.
	Load() (currentTerm uint64, votedFor string, log []raftlog.Entry, err error)

	// Save durably persists the snapshot before returning nil.
	Save(Snapshot) error

	// Close releases any resources (file handles, DB handles) held by the
	// store.
	Close() error
}

// MemStore is an in-memory Store used by tests. It has no durability across process restarts by
// construction, but it honors the same call contract (Save never returns
// before the in-memory copy is updated).
type MemStore struct {
	term     uint64
	votedFor string
	log      []raftlog.Entry
}

// NewMemStore returns a MemStore seeded with a fresh sentinel-only log.
func NewMemStore() *MemStore {
	return &MemStore{log: []raftlog.Entry{{Term: 0, Index: 0}}}
}

func (m *MemStore) Load() (uint64, string, []raftlog.Entry, error) {
	cp := make([]raftlog.Entry, len(m.log))
	copy(cp, m.log)
	return m.term, m.votedFor, cp, nil
}

func (m *MemStore) Save(s Snapshot) error {
	m.term = s.CurrentTerm
	m.votedFor = s.VotedFor
	if s.HasTruncate {
		if s.Truncated == 0 {
			return errTruncateSentinel
		}
		if int(s.Truncated) <= len(m.log) {
			m.log = m.log[:s.Truncated]
		}
	}
	m.log = append(m.log, s.NewTail...)
	return nil
}

func (m *MemStore) Close() error { return nil }

var errTruncateSentinel = errPersistent("raftstate: refusing to truncate the sentinel via Save")

type errPersistent string

func (e errPersistent) Error() string { return string(e) }
