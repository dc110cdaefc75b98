package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/chronicler/pkg/memory"
)

// selectSessionCols is the column list used by all session-info queries.
// Summary and archive counts are derived so they can never drift from the
// record families themselves.
const selectSessionCols = `
	s.id, s.synopsis, s.stage, s.era, s.turn_count, s.last_summarized_seq,
	(SELECT count(*) FROM summaries m WHERE m.session_id = s.id),
	(SELECT count(*) FROM archives  a WHERE a.session_id = s.id),
	s.created_at`

// AppendTurn implements [memory.Store.AppendTurn]. The session row is
// created lazily and its counter update takes a row lock, so concurrent
// appends to the same session are serialized by the database and sequence
// numbers stay contiguous. The counter advance and the turn insert commit
// together or not at all.
func (s *Store) AppendTurn(ctx context.Context, sessionID string, t memory.Turn) (int, error) {
	if sessionID == "" {
		return 0, fmt.Errorf("postgres store: append turn: empty session id")
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres store: append turn: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO sessions (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`,
		sessionID,
	); err != nil {
		return 0, fmt.Errorf("postgres store: append turn: ensure session: %w", err)
	}

	var seq int
	err = tx.QueryRow(ctx,
		`UPDATE sessions SET turn_count = turn_count + 1 WHERE id = $1 RETURNING turn_count`,
		sessionID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("postgres store: append turn: advance count: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO turns (session_id, seq, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		sessionID, seq, string(t.Role), t.Content, t.Timestamp,
	); err != nil {
		return 0, fmt.Errorf("postgres store: append turn: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres store: append turn: commit: %w", err)
	}
	return seq, nil
}

// Session implements [memory.Store.Session].
func (s *Store) Session(ctx context.Context, sessionID string) (memory.SessionInfo, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectSessionCols+` FROM sessions s WHERE s.id = $1`, sessionID)

	info, err := scanSessionInfo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return memory.SessionInfo{}, fmt.Errorf("postgres store: session %q: %w", sessionID, memory.ErrUnknownSession)
	}
	if err != nil {
		return memory.SessionInfo{}, fmt.Errorf("postgres store: session: %w", err)
	}
	return info, nil
}

// Sessions implements [memory.Store.Sessions].
func (s *Store) Sessions(ctx context.Context) ([]memory.SessionInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectSessionCols+` FROM sessions s ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: sessions: %w", err)
	}

	infos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.SessionInfo, error) {
		return scanSessionInfo(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: sessions: scan: %w", err)
	}
	if infos == nil {
		infos = []memory.SessionInfo{}
	}
	return infos, nil
}

// TurnCount implements [memory.Store.TurnCount]. Unknown sessions report 0.
func (s *Store) TurnCount(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT turn_count FROM sessions WHERE id = $1`, sessionID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres store: turn count: %w", err)
	}
	return count, nil
}

// UnsummarizedTurns implements [memory.Store.UnsummarizedTurns].
func (s *Store) UnsummarizedTurns(ctx context.Context, sessionID string) ([]memory.Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT t.seq, t.role, t.content, t.created_at
		 FROM   turns t
		 JOIN   sessions s ON s.id = t.session_id
		 WHERE  t.session_id = $1
		   AND  t.seq > s.last_summarized_seq
		 ORDER  BY t.seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres store: unsummarized turns: %w", err)
	}
	return collectTurns(rows)
}

// SetScenario implements [memory.Store.SetScenario]. The session row is
// created if it does not exist yet.
func (s *Store) SetScenario(ctx context.Context, sessionID string, sc memory.Scenario) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, synopsis, stage, era) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET synopsis = EXCLUDED.synopsis, stage = EXCLUDED.stage, era = EXCLUDED.era`,
		sessionID, sc.Synopsis, sc.Stage, sc.Era,
	)
	if err != nil {
		return fmt.Errorf("postgres store: set scenario: %w", err)
	}
	return nil
}

// ClearSession implements [memory.Store.ClearSession]. Without keepSummaries
// the session row is deleted and the turn/summary/archive rows cascade with
// it. With keepSummaries only the turn log and counters reset.
func (s *Store) ClearSession(ctx context.Context, sessionID string, keepSummaries bool) error {
	if !keepSummaries {
		if _, err := s.pool.Exec(ctx,
			`DELETE FROM sessions WHERE id = $1`, sessionID); err != nil {
			return fmt.Errorf("postgres store: clear session: %w", err)
		}
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: clear session: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM turns WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("postgres store: clear session: delete turns: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE sessions SET turn_count = 0, last_summarized_seq = 0 WHERE id = $1`,
		sessionID); err != nil {
		return fmt.Errorf("postgres store: clear session: reset counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: clear session: commit: %w", err)
	}
	return nil
}

// scanSessionInfo scans one session-info row (selectSessionCols order).
func scanSessionInfo(row pgx.Row) (memory.SessionInfo, error) {
	var info memory.SessionInfo
	err := row.Scan(
		&info.ID,
		&info.Scenario.Synopsis,
		&info.Scenario.Stage,
		&info.Scenario.Era,
		&info.TurnCount,
		&info.LastSummarizedSeq,
		&info.SummaryCount,
		&info.ArchiveCount,
		&info.CreatedAt,
	)
	return info, err
}

// collectTurns scans pgx rows into a slice of Turn values.
func collectTurns(rows pgx.Rows) ([]memory.Turn, error) {
	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Turn, error) {
		var (
			t    memory.Turn
			role string
		)
		if err := row.Scan(&t.Seq, &role, &t.Content, &t.Timestamp); err != nil {
			return memory.Turn{}, err
		}
		t.Role = memory.Role(role)
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan turns: %w", err)
	}
	if turns == nil {
		turns = []memory.Turn{}
	}
	return turns, nil
}
