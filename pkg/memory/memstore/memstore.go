// Package memstore provides a thread-safe, in-memory implementation of
// [memory.Store]. It is suitable for tests and single-process use; the
// advisory session lock is scoped to the process. Deployments with multiple
// writers sharing durable state should use the postgres store instead.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MrWong99/chronicler/pkg/memory"
)

// Compile-time assertion that Store satisfies the memory.Store interface.
var _ memory.Store = (*Store)(nil)

// sessionState bundles the three record families for one session.
type sessionState struct {
	info      memory.SessionInfo
	turns     []memory.Turn
	summaries []memory.Summary
	archives  []memory.StoryArchive
	locked    bool
}

// Store is an in-memory [memory.Store]. The zero value is not ready to use;
// construct it with [New].
type Store struct {
	mu       sync.Mutex
	sessions map[string]*sessionState

	// now is swappable for tests.
	now func() time.Time
}

// New returns an initialised [Store].
func New() *Store {
	return &Store{
		sessions: make(map[string]*sessionState),
		now:      time.Now,
	}
}

// session returns the state for sessionID, creating it when create is set.
// Must be called with s.mu held.
func (s *Store) session(sessionID string, create bool) (*sessionState, error) {
	st, ok := s.sessions[sessionID]
	if ok {
		return st, nil
	}
	if !create {
		return nil, fmt.Errorf("memstore: session %q: %w", sessionID, memory.ErrUnknownSession)
	}
	st = &sessionState{
		info: memory.SessionInfo{
			ID:        sessionID,
			CreatedAt: s.now(),
		},
	}
	s.sessions[sessionID] = st
	return st, nil
}

// AppendTurn implements [memory.Store.AppendTurn].
func (s *Store) AppendTurn(ctx context.Context, sessionID string, t memory.Turn) (int, error) {
	if sessionID == "" {
		return 0, fmt.Errorf("memstore: append turn: empty session id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, _ := s.session(sessionID, true)
	t.Seq = st.info.TurnCount + 1
	if t.Timestamp.IsZero() {
		t.Timestamp = s.now()
	}
	st.turns = append(st.turns, t)
	st.info.TurnCount = t.Seq
	return st.info.TurnCount, nil
}

// Session implements [memory.Store.Session].
func (s *Store) Session(ctx context.Context, sessionID string) (memory.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.session(sessionID, false)
	if err != nil {
		return memory.SessionInfo{}, err
	}
	return st.info, nil
}

// Sessions implements [memory.Store.Sessions].
func (s *Store) Sessions(ctx context.Context) ([]memory.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]memory.SessionInfo, 0, len(s.sessions))
	for _, st := range s.sessions {
		infos = append(infos, st.info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos, nil
}

// TurnCount implements [memory.Store.TurnCount]. Unknown sessions report 0.
func (s *Store) TurnCount(ctx context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return 0, nil
	}
	return st.info.TurnCount, nil
}

// UnsummarizedTurns implements [memory.Store.UnsummarizedTurns].
func (s *Store) UnsummarizedTurns(ctx context.Context, sessionID string) ([]memory.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []memory.Turn{}
	st, ok := s.sessions[sessionID]
	if !ok {
		return out, nil
	}
	for _, t := range st.turns {
		if t.Seq > st.info.LastSummarizedSeq {
			out = append(out, t)
		}
	}
	return out, nil
}

// SetScenario implements [memory.Store.SetScenario].
func (s *Store) SetScenario(ctx context.Context, sessionID string, sc memory.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, _ := s.session(sessionID, true)
	st.info.Scenario = sc
	return nil
}

// Summaries implements [memory.Store.Summaries].
func (s *Store) Summaries(ctx context.Context, sessionID string) ([]memory.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []memory.Summary{}
	st, ok := s.sessions[sessionID]
	if !ok {
		return out, nil
	}
	out = append(out, st.summaries...)
	return out, nil
}

// CommitSummary implements [memory.Store.CommitSummary]. The summary record
// and the high-water-mark advance are applied under one lock acquisition, so
// readers never observe one without the other.
func (s *Store) CommitSummary(ctx context.Context, sum memory.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.session(sum.SessionID, false)
	if err != nil {
		return err
	}

	if sum.Seq != len(st.summaries)+1 ||
		sum.StartSeq != st.info.LastSummarizedSeq+1 ||
		sum.EndSeq < sum.StartSeq ||
		sum.EndSeq > st.info.TurnCount {
		return fmt.Errorf("memstore: commit summary %d [%d,%d] for session %q: %w",
			sum.Seq, sum.StartSeq, sum.EndSeq, sum.SessionID, memory.ErrStaleCommit)
	}

	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = s.now()
	}
	st.summaries = append(st.summaries, sum)
	st.info.LastSummarizedSeq = sum.EndSeq
	st.info.SummaryCount = len(st.summaries)
	return nil
}

// AppendArchive implements [memory.Store.AppendArchive].
func (s *Store) AppendArchive(ctx context.Context, a memory.StoryArchive) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.session(a.SessionID, false)
	if err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	st.archives = append(st.archives, a)
	st.info.ArchiveCount = len(st.archives)
	return nil
}

// Archives implements [memory.Store.Archives].
func (s *Store) Archives(ctx context.Context, sessionID string) ([]memory.StoryArchive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []memory.StoryArchive{}
	st, ok := s.sessions[sessionID]
	if !ok {
		return out, nil
	}
	out = append(out, st.archives...)
	return out, nil
}

// LatestArchive implements [memory.Store.LatestArchive].
func (s *Store) LatestArchive(ctx context.Context, sessionID string) (memory.StoryArchive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok || len(st.archives) == 0 {
		return memory.StoryArchive{}, fmt.Errorf("memstore: latest archive for %q: %w", sessionID, memory.ErrUnknownSession)
	}
	return st.archives[len(st.archives)-1], nil
}

// ClearSession implements [memory.Store.ClearSession].
//
// With keepSummaries the turn log and both counters reset while summaries,
// archives, and scenario metadata survive; retained summary numbering
// continues monotonically but the committed summary count stays, so the
// next summary seq follows on from the kept history.
func (s *Store) ClearSession(ctx context.Context, sessionID string, keepSummaries bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	if !keepSummaries {
		delete(s.sessions, sessionID)
		return nil
	}
	st.turns = nil
	st.info.TurnCount = 0
	st.info.LastSummarizedSeq = 0
	return nil
}

// Export implements [memory.Store.Export].
func (s *Store) Export(ctx context.Context, sessionID string) (memory.SessionExport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.session(sessionID, false)
	if err != nil {
		return memory.SessionExport{}, err
	}

	exp := memory.SessionExport{
		Session:   st.info,
		Turns:     append([]memory.Turn{}, st.turns...),
		Summaries: append([]memory.Summary{}, st.summaries...),
		Archives:  append([]memory.StoryArchive{}, st.archives...),
	}
	return exp, nil
}

// TryLockSession implements [memory.Store.TryLockSession]. The lock is
// process-local; it serializes summarization runs between goroutines sharing
// this Store instance.
func (s *Store) TryLockSession(ctx context.Context, sessionID string) (memory.UnlockFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.session(sessionID, false)
	if err != nil {
		return nil, err
	}
	if st.locked {
		return nil, fmt.Errorf("memstore: lock session %q: %w", sessionID, memory.ErrLockHeld)
	}
	st.locked = true

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if cur, ok := s.sessions[sessionID]; ok {
				cur.locked = false
			}
		})
	}, nil
}

// Ping implements [memory.Store.Ping]. Always healthy.
func (s *Store) Ping(ctx context.Context) error { return nil }
