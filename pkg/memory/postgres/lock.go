package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/chronicler/pkg/memory"
)

// lockNamespace is the first key of the two-key advisory lock, fixed so
// chronicler locks never collide with other advisory-lock users sharing the
// database.
const lockNamespace = "chronicler:summarize"

// TryLockSession implements [memory.Store.TryLockSession] with a PostgreSQL
// session advisory lock. The lock is held on a dedicated pooled connection
// for its whole lifetime — session advisory locks belong to the connection
// that took them — and released by the returned UnlockFunc, which also
// returns the connection to the pool. Because the lock lives in the
// database it excludes summarization runs across processes, not just within
// this one.
func (s *Store) TryLockSession(ctx context.Context, sessionID string) (memory.UnlockFunc, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres store: lock session: acquire conn: %w", err)
	}

	var acquired bool
	err = conn.QueryRow(ctx,
		`SELECT pg_try_advisory_lock(hashtext($1), hashtext($2))`,
		lockNamespace, sessionID,
	).Scan(&acquired)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("postgres store: lock session: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, fmt.Errorf("postgres store: lock session %q: %w", sessionID, memory.ErrLockHeld)
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			// Unlock on a fresh context: the caller's ctx may already be
			// cancelled, and the lock must be released regardless.
			var released bool
			err := conn.QueryRow(context.Background(),
				`SELECT pg_advisory_unlock(hashtext($1), hashtext($2))`,
				lockNamespace, sessionID,
			).Scan(&released)
			if err != nil || !released {
				// Releasing the connection drops its advisory locks anyway;
				// log so an operator can see it happened.
				slog.Warn("advisory unlock failed, releasing connection",
					"session_id", sessionID,
					"error", err,
				)
			}
			conn.Release()
		})
	}
	return unlock, nil
}
