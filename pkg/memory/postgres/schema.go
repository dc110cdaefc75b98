// Package postgres provides a PostgreSQL-backed implementation of
// [memory.Store] suitable for multiple processes sharing one durable memory.
//
// The three record families live in four tables: sessions (bookkeeping row
// per session), turns (append-only log), summaries, and archives. The
// summary commit writes the summary row and the session high-water mark in
// one transaction; the per-session advisory lock uses PostgreSQL session
// advisory locks held on a dedicated pooled connection.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	count, err := store.AppendTurn(ctx, sessionID, turn)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id                   TEXT         PRIMARY KEY,
    synopsis             TEXT         NOT NULL DEFAULT '',
    stage                TEXT         NOT NULL DEFAULT '',
    era                  TEXT         NOT NULL DEFAULT '',
    turn_count           INTEGER      NOT NULL DEFAULT 0,
    last_summarized_seq  INTEGER      NOT NULL DEFAULT 0,
    created_at           TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlTurns = `
CREATE TABLE IF NOT EXISTS turns (
    session_id  TEXT         NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    seq         INTEGER      NOT NULL,
    role        TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (session_id, seq)
);
`

const ddlSummaries = `
CREATE TABLE IF NOT EXISTS summaries (
    session_id  TEXT         NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    seq         INTEGER      NOT NULL,
    start_seq   INTEGER      NOT NULL,
    end_seq     INTEGER      NOT NULL,
    text        TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (session_id, seq),
    CHECK (start_seq >= 1 AND end_seq >= start_seq)
);
`

const ddlArchives = `
CREATE TABLE IF NOT EXISTS archives (
    id            TEXT         PRIMARY KEY,
    session_id    TEXT         NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    summary_seqs  INTEGER[]    NOT NULL,
    style_tag     TEXT         NOT NULL DEFAULT '',
    text          TEXT         NOT NULL,
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_archives_session_created
    ON archives (session_id, created_at);
`

// Migrate creates or ensures all required tables exist. It is idempotent
// (CREATE TABLE IF NOT EXISTS) and safe to call on every application start,
// which is how the backing store gets created lazily on first use.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlSessions,
		ddlTurns,
		ddlSummaries,
		ddlArchives,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
