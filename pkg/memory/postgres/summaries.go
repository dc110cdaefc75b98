package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/chronicler/pkg/memory"
)

// Summaries implements [memory.Store.Summaries].
func (s *Store) Summaries(ctx context.Context, sessionID string) ([]memory.Summary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, seq, start_seq, end_seq, text, created_at
		 FROM   summaries
		 WHERE  session_id = $1
		 ORDER  BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres store: summaries: %w", err)
	}
	return collectSummaries(rows)
}

// CommitSummary implements [memory.Store.CommitSummary]. The high-water-mark
// advance carries the contiguity guard in its WHERE clause: it only matches
// when last_summarized_seq is exactly start_seq-1 and the covered range is
// within the turn log. When the guard misses — a concurrent writer got there
// first — the transaction rolls back with [memory.ErrStaleCommit] and
// nothing is written. The summary insert and the mark advance commit as one
// unit, so a crash between them is impossible to observe: the session is
// either fully "summarized through end_seq" or not at all.
func (s *Store) CommitSummary(ctx context.Context, sum memory.Summary) error {
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: commit summary: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE sessions
		 SET    last_summarized_seq = $3
		 WHERE  id = $1
		   AND  last_summarized_seq = $2 - 1
		   AND  turn_count >= $3`,
		sum.SessionID, sum.StartSeq, sum.EndSeq,
	)
	if err != nil {
		return fmt.Errorf("postgres store: commit summary: advance mark: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: commit summary %d [%d,%d] for session %q: %w",
			sum.Seq, sum.StartSeq, sum.EndSeq, sum.SessionID, memory.ErrStaleCommit)
	}

	// The session row is now locked by the UPDATE above, so the count check
	// cannot race with another commit.
	var count int
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM summaries WHERE session_id = $1`,
		sum.SessionID,
	).Scan(&count); err != nil {
		return fmt.Errorf("postgres store: commit summary: count: %w", err)
	}
	if sum.Seq != count+1 {
		return fmt.Errorf("postgres store: commit summary seq %d (have %d) for session %q: %w",
			sum.Seq, count, sum.SessionID, memory.ErrStaleCommit)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO summaries (session_id, seq, start_seq, end_seq, text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sum.SessionID, sum.Seq, sum.StartSeq, sum.EndSeq, sum.Text, sum.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres store: commit summary: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: commit summary: commit: %w", err)
	}
	return nil
}

// collectSummaries scans pgx rows into a slice of Summary values.
func collectSummaries(rows pgx.Rows) ([]memory.Summary, error) {
	sums, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Summary, error) {
		var m memory.Summary
		err := row.Scan(&m.SessionID, &m.Seq, &m.StartSeq, &m.EndSeq, &m.Text, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan summaries: %w", err)
	}
	if sums == nil {
		sums = []memory.Summary{}
	}
	return sums, nil
}
