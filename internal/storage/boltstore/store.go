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
Package boltstore is the on-disk raftstate.Store backing a production
raftd node: a single bbolt file holding the current term, the current
vote, and the full log. bbolt commits each Update transaction with an
fdatasync before returning, which is exactly the durability spec.md §4.B
requires of Save — grant a vote, ack a successful AppendEntries, or bump
current_term only after the write lands on disk.
*/
package boltstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	raerrors "github.com/firefly-oss/raftcore/internal/errors"
	"github.com/firefly-oss/raftcore/internal/raftlog"
	"github.com/firefly-oss/raftcore/internal/raftstate"
	bolt "go.etcd.io/bbolt"
)

var (
	metaBucket = []byte("meta")
	logBucket  = []byte("log")

	metaKeyTerm     = []byte("current_term")
	metaKeyVotedFor = []byte("voted_for")
)

// Store is a bbolt-backed raftstate.Store.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt file at path and ensures its
// buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: opening %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(metaBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(logBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: initializing buckets in %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func entryKey(index uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, index)
	return k
}

// entryRecord is the on-disk JSON shape of a raftlog.Entry.
type entryRecord struct {
	Term    uint64            `json:"term"`
	Index   uint64            `json:"index"`
	Type    raftlog.EntryType `json:"type"`
	Command []byte            `json:"command,omitempty"`
}

// Load implements raftstate.Store.
func (s *Store) Load() (uint64, string, []raftlog.Entry, error) {
	var (
		term     uint64
		votedFor string
		entries  = []raftlog.Entry{{Term: 0, Index: 0, Type: raftlog.EntryNoop}}
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if v := meta.Get(metaKeyTerm); v != nil {
			term = binary.BigEndian.Uint64(v)
		}
		if v := meta.Get(metaKeyVotedFor); v != nil {
			votedFor = string(v)
		}

		logb := tx.Bucket(logBucket)
		return logb.ForEach(func(k, v []byte) error {
			var rec entryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("boltstore: decoding log entry at index %d: %w", binary.BigEndian.Uint64(k), err)
			}
			entries = append(entries, raftlog.Entry{Term: rec.Term, Index: rec.Index, Type: rec.Type, Command: rec.Command})
			return nil
		})
	})
	if err != nil {
		return 0, "", nil, raerrors.PersistenceFailed("Load", err)
	}
	return term, votedFor, entries, nil
}

// Save implements raftstate.Store. The entire snapshot is applied within a
// single bbolt transaction, so a crash mid-Save never leaves term/vote and
// log entries out of sync with each other.
func (s *Store) Save(snap raftstate.Snapshot) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		termBuf := make([]byte, 8)
		binary.BigEndian.PutUint64(termBuf, snap.CurrentTerm)
		if err := meta.Put(metaKeyTerm, termBuf); err != nil {
			return err
		}
		if err := meta.Put(metaKeyVotedFor, []byte(snap.VotedFor)); err != nil {
			return err
		}

		logb := tx.Bucket(logBucket)
		if snap.HasTruncate {
			c := logb.Cursor()
			for k, _ := c.Seek(entryKey(snap.Truncated)); k != nil; k, _ = c.Next() {
				if err := logb.Delete(k); err != nil {
					return err
				}
			}
		}
		for _, e := range snap.NewTail {
			rec := entryRecord{Term: e.Term, Index: e.Index, Type: e.Type, Command: e.Command}
			v, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("boltstore: encoding log entry at index %d: %w", e.Index, err)
			}
			if err := logb.Put(entryKey(e.Index), v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return raerrors.PersistenceFailed("Save", err)
	}
	return nil
}

// Close implements raftstate.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
