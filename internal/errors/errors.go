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
Package errors provides the structured error taxonomy for the Raft
collaborators surrounding internal/raft (spec.md §7):

  - Term errors: a message carried a term this node has since moved past.
  - Log errors: the AppendEntries consistency check failed, or a truncate
    was refused because it would have touched a committed entry.
  - Role errors: an operation (e.g. Submit) requires leadership this node
    doesn't currently hold.
  - Transport errors: a peer could not be reached or timed out — always
    recoverable, since the core's retry-on-next-tick design absorbs these.
  - Persistence errors: a Store.Save/Load call failed.
  - Safety errors: an invariant spec.md §3 requires was about to be (or
    was) violated. These are always Fatal: the node must halt rather than
    risk divergence from the rest of the cluster.

internal/raft itself only returns plain errors for constructor-time
misconfiguration (e.g. an empty NodeID); this package is for the
collaborators (storage, transport, the operator CLI) that need richer,
categorized errors to decide whether to retry, log, or halt.
*/
package errors

import "fmt"

// ErrorCode is a unique, stable error identifier.
type ErrorCode int

const (
	// Term errors (1000-1999)
	ErrCodeStaleTerm ErrorCode = 1000

	// Log errors (2000-2999)
	ErrCodeLogInconsistency ErrorCode = 2000
	ErrCodeTruncateRefused  ErrorCode = 2001

	// Role errors (3000-3999)
	ErrCodeNotLeader ErrorCode = 3000

	// Transport errors (4000-4999)
	ErrCodeTransportTimeout      ErrorCode = 4000
	ErrCodeTransportUnreachable  ErrorCode = 4001

	// Persistence errors (5000-5999)
	ErrCodePersistenceFailed ErrorCode = 5000

	// Safety errors (6000-6999) — always fatal
	ErrCodeSafetyViolation ErrorCode = 6000
)

// Category groups related error codes.
type Category string

const (
	CategoryTerm        Category = "TERM"
	CategoryLog         Category = "LOG"
	CategoryRole        Category = "ROLE"
	CategoryTransport   Category = "TRANSPORT"
	CategoryPersistence Category = "PERSISTENCE"
	CategorySafety      Category = "SAFETY"
)

// RaftError is a structured error raised by a Raft collaborator.
type RaftError struct {
	Code     ErrorCode
	Category Category
	Message  string
	Detail   string
	Hint     string
	Cause    error
	fatal    bool
}

// Error implements the error interface.
func (e *RaftError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("raft error %d (%s): %s - %s", e.Code, e.Category, e.Message, e.Detail)
	}
	return fmt.Sprintf("raft error %d (%s): %s", e.Code, e.Category, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *RaftError) Unwrap() error { return e.Cause }

// Fatal reports whether the process should halt rather than continue
// operating after this error — true for CategorySafety errors and for
// TruncateRefused, a refused attempt to remove a committed entry.
func (e *RaftError) Fatal() bool { return e.fatal }

// UserMessage renders a message suitable for an operator-facing CLI.
func (e *RaftError) UserMessage() string {
	msg := fmt.Sprintf("ERROR: %s", e.Message)
	if e.Detail != "" {
		msg += fmt.Sprintf(" (%s)", e.Detail)
	}
	if e.Hint != "" {
		msg += fmt.Sprintf("\nHINT: %s", e.Hint)
	}
	return msg
}

// WithDetail attaches additional detail and returns the receiver.
func (e *RaftError) WithDetail(detail string) *RaftError {
	e.Detail = detail
	return e
}

// WithHint attaches an operator-facing hint and returns the receiver.
func (e *RaftError) WithHint(hint string) *RaftError {
	e.Hint = hint
	return e
}

// WithCause attaches the underlying cause and returns the receiver.
func (e *RaftError) WithCause(cause error) *RaftError {
	e.Cause = cause
	return e
}

// ============================================================================
// Term errors
// ============================================================================

// StaleTerm reports that a message carrying gotTerm was rejected because
// this node has already advanced to currentTerm.
func StaleTerm(gotTerm, currentTerm uint64) *RaftError {
	return &RaftError{
		Code:     ErrCodeStaleTerm,
		Category: CategoryTerm,
		Message:  fmt.Sprintf("stale term %d (current term is %d)", gotTerm, currentTerm),
		Hint:     "the sender should step down to Follower on seeing the higher term in the reply",
	}
}

// ============================================================================
// Log errors
// ============================================================================

// LogInconsistency reports an AppendEntries consistency-check failure at
// the given index.
func LogInconsistency(index uint64, detail string) *RaftError {
	return &RaftError{
		Code:     ErrCodeLogInconsistency,
		Category: CategoryLog,
		Message:  fmt.Sprintf("log inconsistency at index %d", index),
		Detail:   detail,
	}
}

// TruncateRefused reports that a truncate was refused because it would
// have removed an already-committed entry — a safety violation if it had
// gone through, so the caller must treat this as fatal rather than retry.
func TruncateRefused(index, commitIndex uint64) *RaftError {
	return &RaftError{
		Code:     ErrCodeTruncateRefused,
		Category: CategoryLog,
		Message:  fmt.Sprintf("refused to truncate at index %d at or below commit_index %d", index, commitIndex),
		fatal:    true,
	}
}

// ============================================================================
// Role errors
// ============================================================================

// NotLeader reports that an operation requiring leadership was rejected;
// hint is the last known leader id, if any, to redirect the caller.
func NotLeader(hint string) *RaftError {
	e := &RaftError{
		Code:     ErrCodeNotLeader,
		Category: CategoryRole,
		Message:  "this node is not the leader",
	}
	if hint != "" {
		e.Hint = fmt.Sprintf("retry against %s", hint)
	}
	return e
}

// ============================================================================
// Transport errors
// ============================================================================

// TransportTimeout reports that an RPC to peer did not complete in time.
// Always recoverable: the core simply retries on its next tick.
func TransportTimeout(peer string) *RaftError {
	return &RaftError{
		Code:     ErrCodeTransportTimeout,
		Category: CategoryTransport,
		Message:  fmt.Sprintf("RPC to peer %s timed out", peer),
	}
}

// TransportUnreachable reports that peer could not be reached at all.
func TransportUnreachable(peer string, cause error) *RaftError {
	return &RaftError{
		Code:     ErrCodeTransportUnreachable,
		Category: CategoryTransport,
		Message:  fmt.Sprintf("peer %s unreachable", peer),
		Cause:    cause,
	}
}

// ============================================================================
// Persistence errors
// ============================================================================

// PersistenceFailed reports that a Store.Save/Load call failed during op.
func PersistenceFailed(op string, cause error) *RaftError {
	return &RaftError{
		Code:     ErrCodePersistenceFailed,
		Category: CategoryPersistence,
		Message:  fmt.Sprintf("persistence failed during %s", op),
		Cause:    cause,
	}
}

// ============================================================================
// Safety errors
// ============================================================================

// SafetyViolation reports that an invariant spec.md §3 requires was about
// to be (or was) violated. Always fatal.
func SafetyViolation(detail string) *RaftError {
	return &RaftError{
		Code:     ErrCodeSafetyViolation,
		Category: CategorySafety,
		Message:  "safety invariant violated",
		Detail:   detail,
		fatal:    true,
	}
}

// ============================================================================
// Helpers
// ============================================================================

// IsStaleTerm reports whether err is a CategoryTerm RaftError.
func IsStaleTerm(err error) bool {
	e, ok := err.(*RaftError)
	return ok && e.Category == CategoryTerm
}

// IsNotLeader reports whether err is a CategoryRole RaftError.
func IsNotLeader(err error) bool {
	e, ok := err.(*RaftError)
	return ok && e.Category == CategoryRole
}

// IsFatal reports whether err must halt the process rather than be
// retried or logged and ignored.
func IsFatal(err error) bool {
	e, ok := err.(*RaftError)
	return ok && e.fatal
}

// GetCode returns err's ErrorCode, or 0 if err isn't a *RaftError.
func GetCode(err error) ErrorCode {
	if e, ok := err.(*RaftError); ok {
		return e.Code
	}
	return 0
}

// FormatError renders err for operator-facing output.
func FormatError(err error) string {
	if e, ok := err.(*RaftError); ok {
		return e.UserMessage()
	}
	return fmt.Sprintf("ERROR: %v", err)
}
