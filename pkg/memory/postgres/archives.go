package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/chronicler/pkg/memory"
)

// AppendArchive implements [memory.Store.AppendArchive].
func (s *Store) AppendArchive(ctx context.Context, a memory.StoryArchive) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO archives (id, session_id, summary_seqs, style_tag, text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.SessionID, a.SummarySeqs, a.StyleTag, a.Text, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres store: append archive: %w", err)
	}
	return nil
}

// Archives implements [memory.Store.Archives].
func (s *Store) Archives(ctx context.Context, sessionID string) ([]memory.StoryArchive, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, summary_seqs, style_tag, text, created_at
		 FROM   archives
		 WHERE  session_id = $1
		 ORDER  BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres store: archives: %w", err)
	}

	archives, err := pgx.CollectRows(rows, scanArchive)
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan archives: %w", err)
	}
	if archives == nil {
		archives = []memory.StoryArchive{}
	}
	return archives, nil
}

// LatestArchive implements [memory.Store.LatestArchive].
func (s *Store) LatestArchive(ctx context.Context, sessionID string) (memory.StoryArchive, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, summary_seqs, style_tag, text, created_at
		 FROM   archives
		 WHERE  session_id = $1
		 ORDER  BY created_at DESC, id DESC
		 LIMIT  1`,
		sessionID,
	)
	if err != nil {
		return memory.StoryArchive{}, fmt.Errorf("postgres store: latest archive: %w", err)
	}

	a, err := pgx.CollectOneRow(rows, scanArchive)
	if errors.Is(err, pgx.ErrNoRows) {
		return memory.StoryArchive{}, fmt.Errorf("postgres store: latest archive for %q: %w",
			sessionID, memory.ErrUnknownSession)
	}
	if err != nil {
		return memory.StoryArchive{}, fmt.Errorf("postgres store: latest archive: %w", err)
	}
	return a, nil
}

// scanArchive scans one archive row.
func scanArchive(row pgx.CollectableRow) (memory.StoryArchive, error) {
	var a memory.StoryArchive
	err := row.Scan(&a.ID, &a.SessionID, &a.SummarySeqs, &a.StyleTag, &a.Text, &a.CreatedAt)
	return a, err
}
