package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/chronicler/pkg/memory"
)

// Export implements [memory.Store.Export]. All four reads run inside one
// repeatable-read transaction so the dump is a consistent snapshot even
// while other writers are appending.
func (s *Store) Export(ctx context.Context, sessionID string) (memory.SessionExport, error) {
	var exp memory.SessionExport

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return exp, fmt.Errorf("postgres store: export: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+selectSessionCols+` FROM sessions s WHERE s.id = $1`, sessionID)
	exp.Session, err = scanSessionInfo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return exp, fmt.Errorf("postgres store: export %q: %w", sessionID, memory.ErrUnknownSession)
	}
	if err != nil {
		return exp, fmt.Errorf("postgres store: export: session: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT seq, role, content, created_at FROM turns
		 WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return exp, fmt.Errorf("postgres store: export: turns: %w", err)
	}
	if exp.Turns, err = collectTurns(rows); err != nil {
		return exp, err
	}

	rows, err = tx.Query(ctx,
		`SELECT session_id, seq, start_seq, end_seq, text, created_at FROM summaries
		 WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return exp, fmt.Errorf("postgres store: export: summaries: %w", err)
	}
	if exp.Summaries, err = collectSummaries(rows); err != nil {
		return exp, err
	}

	rows, err = tx.Query(ctx,
		`SELECT id, session_id, summary_seqs, style_tag, text, created_at FROM archives
		 WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return exp, fmt.Errorf("postgres store: export: archives: %w", err)
	}
	exp.Archives, err = pgx.CollectRows(rows, scanArchive)
	if err != nil {
		return exp, fmt.Errorf("postgres store: export: scan archives: %w", err)
	}
	if exp.Archives == nil {
		exp.Archives = []memory.StoryArchive{}
	}

	if err := tx.Commit(ctx); err != nil {
		return exp, fmt.Errorf("postgres store: export: commit: %w", err)
	}
	return exp, nil
}
