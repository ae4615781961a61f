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

// tryApplyLocked delivers every committed entry the application hasn't
// seen yet, strictly in index order and with no gaps (spec.md §4.H,
// "Apply Contiguity"). It stops, rather than skipping, the first time an
// expected entry is missing from the log — that would mean last_applied
// has outrun what this node has actually replicated, which should never
// happen given the invariants the Log and Replicator maintain.
func (n *Node) tryApplyLocked() {
	for n.vol.LastApplied < n.vol.CommitIndex {
		idx := n.vol.LastApplied + 1
		entry, err := n.log.EntryAt(idx)
		if err != nil {
			n.logger.Warn("apply: missing committed entry", "node", n.cfg.NodeID, "index", idx, "error", err)
			return
		}
		if entry.Type != raftlog.EntryNoop && n.apply != nil {
			n.apply(idx, entry.Command)
		}
		n.vol.LastApplied = idx
	}
}
