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

// Transport is the only way a Node talks to its peers. The core never
// blocks waiting on a reply: both Send methods are fire-and-forget from
// the caller's point of view, and the supplied callback is invoked at most
// once, whenever (and however) the implementation obtains a reply or gives
// up. If a callback is never invoked the node simply tries again on its
// next tick — there is no core-level RPC timeout (spec.md §6.2, §9).
//
// Node calls the Send methods only after releasing its own lock, so an
// implementation may invoke the callback synchronously inside Send (the
// in-process test fake does) or later from another goroutine (as
// internal/transport's Client does). internal/transport provides the real
// networked implementation; tests use an in-process fake.
type Transport interface {
	SendRequestVote(peer string, args RequestVoteArgs, reply func(RequestVoteReply, error))
	SendAppendEntries(peer string, args AppendEntriesArgs, ctx AppendEntriesContext, reply func(AppendEntriesReply, error))
}
