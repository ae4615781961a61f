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

import "testing"

type fakeMetricsSink struct {
	electionsStarted int
	electionsWon     int
	appendAccepted   int
	appendRejected   int
}

func (f *fakeMetricsSink) RecordElectionStarted() { f.electionsStarted++ }
func (f *fakeMetricsSink) RecordElectionWon()      { f.electionsWon++ }
func (f *fakeMetricsSink) RecordAppendEntries(success bool) {
	if success {
		f.appendAccepted++
		return
	}
	f.appendRejected++
}

func TestSetMetricsSinkRecordsSingleNodeElection(t *testing.T) {
	n := newStandaloneFollower(t, "A", nil)
	sink := &fakeMetricsSink{}
	n.SetMetricsSink(sink)

	n.Tick(n.clock.Now().Add(n.cfg.ElectionTimeoutMax + 1))

	if sink.electionsStarted != 1 {
		t.Errorf("electionsStarted = %d, want 1", sink.electionsStarted)
	}
	if sink.electionsWon != 1 {
		t.Errorf("electionsWon = %d, want 1 (a single-node cluster wins immediately)", sink.electionsWon)
	}
	if n.Status().Role != Leader {
		t.Fatalf("expected node to become Leader, got %v", n.Status().Role)
	}
}

func TestSetMetricsSinkRecordsAppendEntriesOutcomes(t *testing.T) {
	f := newStandaloneFollower(t, "A", nil)
	sink := &fakeMetricsSink{}
	f.SetMetricsSink(sink)

	ok := f.OnAppendEntries(AppendEntriesArgs{Term: 1, LeaderID: "L1", PrevLogIndex: 0, PrevLogTerm: 0})
	if !ok.Success {
		t.Fatalf("expected heartbeat to succeed, got %+v", ok)
	}
	bad := f.OnAppendEntries(AppendEntriesArgs{Term: 1, LeaderID: "L1", PrevLogIndex: 99, PrevLogTerm: 0})
	if bad.Success {
		t.Fatalf("expected out-of-range prevLogIndex to be rejected, got %+v", bad)
	}

	if sink.appendAccepted != 1 {
		t.Errorf("appendAccepted = %d, want 1", sink.appendAccepted)
	}
	if sink.appendRejected != 1 {
		t.Errorf("appendRejected = %d, want 1", sink.appendRejected)
	}
}

func TestSetMetricsSinkNilRestoresNoop(t *testing.T) {
	n := newStandaloneFollower(t, "A", nil)
	n.SetMetricsSink(&fakeMetricsSink{})
	n.SetMetricsSink(nil) // must not panic on the next transition
	n.Tick(n.clock.Now().Add(n.cfg.ElectionTimeoutMax + 1))
}
