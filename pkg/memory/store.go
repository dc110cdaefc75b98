// Package memory defines the durable storage contract for the Chronicler
// long-term narrative memory engine.
//
// Three record families are kept per session: the turn log (session +
// [Turn] records), committed [Summary] records, and assembled [StoryArchive]
// records. The [Store] interface owns all durable state; in-memory caches
// held by callers are transient and rebuilt from the store at process start.
//
// Two implementations are provided: a PostgreSQL store
// ([github.com/MrWong99/chronicler/pkg/memory/postgres]) for shared
// cross-process deployments, and an in-memory store
// ([github.com/MrWong99/chronicler/pkg/memory/memstore]) for tests and
// single-process use.
//
// Every implementation must be safe for concurrent use.
package memory

import (
	"context"
	"errors"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrUnknownSession is returned by operations that require an existing
	// session record (export, scenario read) when none exists.
	ErrUnknownSession = errors.New("unknown session")

	// ErrLockHeld is returned by TryLockSession when another holder already
	// owns the session's advisory lock.
	ErrLockHeld = errors.New("session lock already held")

	// ErrStaleCommit is returned by CommitSummary when the summary's covered
	// range or sequence number no longer lines up with the session record —
	// typically because a concurrent writer advanced the high-water mark.
	// Committing anyway would break the no-gap/no-overlap partition
	// invariant, so the store refuses.
	ErrStaleCommit = errors.New("summary commit out of date with session state")
)

// UnlockFunc releases a session advisory lock. Safe to call exactly once;
// implementations guarantee release even if the protected operation failed.
type UnlockFunc func()

// Store is the persistence layer for sessions, summaries, and archives.
//
// Write operations are atomic: a crash mid-write leaves the previously
// committed state intact, never a partial record. CommitSummary writes the
// summary record and the high-water-mark advance as one all-or-nothing unit.
type Store interface {
	// AppendTurn assigns the next contiguous sequence number to t, persists
	// it atomically, and returns the new turn count. The session record is
	// created lazily on the first turn. Concurrent appends to the same
	// session are serialized by the store; sequence numbers are never
	// duplicated or skipped. A persistence failure leaves the turn entirely
	// unwritten.
	AppendTurn(ctx context.Context, sessionID string, t Turn) (int, error)

	// Session returns the bookkeeping record for sessionID, or
	// ErrUnknownSession when no such session exists.
	Session(ctx context.Context, sessionID string) (SessionInfo, error)

	// Sessions lists all known sessions, newest first.
	Sessions(ctx context.Context) ([]SessionInfo, error)

	// TurnCount returns the current turn count. Unknown sessions report 0.
	TurnCount(ctx context.Context, sessionID string) (int, error)

	// UnsummarizedTurns returns the turns with sequence numbers in
	// (last_summarized_seq, turn_count], oldest first. Returns an empty
	// (non-nil) slice when nothing is pending.
	UnsummarizedTurns(ctx context.Context, sessionID string) ([]Turn, error)

	// SetScenario updates the session's scenario metadata, creating the
	// session record if needed.
	SetScenario(ctx context.Context, sessionID string, sc Scenario) error

	// Summaries returns all committed summaries for sessionID ordered by
	// sequence number. Returns an empty (non-nil) slice when none exist.
	Summaries(ctx context.Context, sessionID string) ([]Summary, error)

	// CommitSummary durably writes s and advances the session's
	// last_summarized_seq to s.EndSeq in a single atomic unit. The store
	// validates that s.Seq is the next summary sequence number and that
	// s.StartSeq == last_summarized_seq+1, returning ErrStaleCommit
	// otherwise. The high-water mark is never observable as advanced without
	// the summary record being durable.
	CommitSummary(ctx context.Context, s Summary) error

	// AppendArchive persists a new story archive. Prior archives are kept.
	AppendArchive(ctx context.Context, a StoryArchive) error

	// Archives returns all archives for sessionID, oldest first. Returns an
	// empty (non-nil) slice when none exist.
	Archives(ctx context.Context, sessionID string) ([]StoryArchive, error)

	// LatestArchive returns the most recently created archive for sessionID,
	// or ErrUnknownSession when the session has no archives.
	LatestArchive(ctx context.Context, sessionID string) (StoryArchive, error)

	// ClearSession resets the session's turn log and counters. When
	// keepSummaries is false it also deletes the session's summaries and
	// archives and the session record itself. Destructive; callers gate it
	// behind an explicit confirmation at the API boundary.
	ClearSession(ctx context.Context, sessionID string, keepSummaries bool) error

	// Export returns a read-only dump of all three record families for one
	// session. Returns ErrUnknownSession when the session does not exist.
	Export(ctx context.Context, sessionID string) (SessionExport, error)

	// TryLockSession acquires the advisory lock scoped to sessionID, which
	// guards the read-check-generate-commit sequence of a summarization run.
	// It does not block: if the lock is already held — by this process or
	// another one sharing the store — ErrLockHeld is returned immediately.
	// On success the returned UnlockFunc must be called to release the lock
	// on every exit path.
	TryLockSession(ctx context.Context, sessionID string) (UnlockFunc, error)

	// Ping verifies the backing store is reachable. Used by readiness checks.
	Ping(ctx context.Context) error
}
