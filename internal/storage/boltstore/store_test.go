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

package boltstore

import (
	"path/filepath"
	"testing"

	"github.com/firefly-oss/raftcore/internal/raftlog"
	"github.com/firefly-oss/raftcore/internal/raftstate"
)

func TestFreshStoreLoadsSentinelOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	term, votedFor, log, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if term != 0 || votedFor != "" {
		t.Fatalf("expected zero-value term/vote on a fresh store, got term=%d votedFor=%q", term, votedFor)
	}
	if len(log) != 1 || log[0].Index != 0 || log[0].Term != 0 {
		t.Fatalf("expected only the sentinel entry, got %+v", log)
	}
}

func TestSavePersistsTermVoteAndTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	tail := []raftlog.Entry{
		{Term: 1, Index: 1, Type: raftlog.EntryCommand, Command: []byte("set x=1")},
		{Term: 1, Index: 2, Type: raftlog.EntryCommand, Command: []byte("set y=2")},
	}
	if err := s.Save(raftstate.Snapshot{CurrentTerm: 1, VotedFor: "n2", NewTail: tail}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	term, votedFor, log, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if term != 1 || votedFor != "n2" {
		t.Fatalf("expected term=1 votedFor=n2, got term=%d votedFor=%q", term, votedFor)
	}
	if len(log) != 3 {
		t.Fatalf("expected sentinel plus two entries, got %d", len(log))
	}
	if string(log[1].Command) != "set x=1" || string(log[2].Command) != "set y=2" {
		t.Fatalf("unexpected log contents: %+v", log)
	}
}

func TestSaveTruncateRemovesConflictingTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := s.Save(raftstate.Snapshot{CurrentTerm: 1, NewTail: []raftlog.Entry{
		{Term: 1, Index: 1, Type: raftlog.EntryCommand, Command: []byte("a")},
		{Term: 1, Index: 2, Type: raftlog.EntryCommand, Command: []byte("b")},
		{Term: 1, Index: 3, Type: raftlog.EntryCommand, Command: []byte("c")},
	}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := s.Save(raftstate.Snapshot{
		CurrentTerm: 2,
		NewTail:     []raftlog.Entry{{Term: 2, Index: 2, Type: raftlog.EntryCommand, Command: []byte("conflict")}},
		Truncated:   2,
		HasTruncate: true,
	}); err != nil {
		t.Fatalf("Save with truncate failed: %v", err)
	}

	_, _, log, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("expected sentinel plus one surviving entry after truncate, got %d: %+v", len(log), log)
	}
	if string(log[1].Command) != "conflict" {
		t.Fatalf("expected the new entry to replace the truncated tail, got %+v", log[1])
	}
}

func TestReopenRestoresPersistedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Save(raftstate.Snapshot{CurrentTerm: 5, VotedFor: "n3", NewTail: []raftlog.Entry{
		{Term: 5, Index: 1, Type: raftlog.EntryNoop},
	}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopening store failed: %v", err)
	}
	defer reopened.Close()

	term, votedFor, log, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load after reopen failed: %v", err)
	}
	if term != 5 || votedFor != "n3" {
		t.Fatalf("expected persisted state to survive a close/reopen, got term=%d votedFor=%q", term, votedFor)
	}
	if len(log) != 2 || log[1].Type != raftlog.EntryNoop {
		t.Fatalf("expected the no-op entry to survive a close/reopen, got %+v", log)
	}
}
