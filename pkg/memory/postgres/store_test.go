package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/chronicler/pkg/memory"
	"github.com/MrWong99/chronicler/pkg/memory/postgres"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if CHRONICLER_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("CHRONICLER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHRONICLER_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema.
// It calls t.Cleanup to close the store when the test finishes.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cleanPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(cleanPool.Close)
	dropSchema(t, ctx, cleanPool)

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

// dropSchema removes all tables created by Migrate in reverse dependency order.
func dropSchema(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS archives CASCADE",
		"DROP TABLE IF EXISTS summaries CASCADE",
		"DROP TABLE IF EXISTS turns CASCADE",
		"DROP TABLE IF EXISTS sessions CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("dropSchema %q: %v", stmt, err)
		}
	}
}

func appendN(t *testing.T, store *postgres.Store, sessionID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if _, err := store.AppendTurn(ctx, sessionID, memory.Turn{
			Role:    memory.RolePlayer,
			Content: "content",
		}); err != nil {
			t.Fatalf("AppendTurn %d: %v", i+1, err)
		}
	}
}

func TestAppendTurn_SequencesAreContiguous(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for want := 1; want <= 5; want++ {
		got, err := store.AppendTurn(ctx, "s1", memory.Turn{Role: memory.RoleNarrator, Content: "x"})
		if err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
		if got != want {
			t.Errorf("turn count = %d, want %d", got, want)
		}
	}

	turns, err := store.UnsummarizedTurns(ctx, "s1")
	if err != nil {
		t.Fatalf("UnsummarizedTurns: %v", err)
	}
	for i, turn := range turns {
		if turn.Seq != i+1 {
			t.Errorf("turns[%d].Seq = %d, want %d", i, turn.Seq, i+1)
		}
	}
}

func TestAppendTurn_ConcurrentAppendsNeverCollide(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const writers = 8
	const perWriter = 10

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := store.AppendTurn(ctx, "s1", memory.Turn{
					Role:    memory.RolePlayer,
					Content: "concurrent",
				}); err != nil {
					t.Errorf("AppendTurn: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	turns, err := store.UnsummarizedTurns(ctx, "s1")
	if err != nil {
		t.Fatalf("UnsummarizedTurns: %v", err)
	}
	if len(turns) != writers*perWriter {
		t.Fatalf("turns = %d, want %d", len(turns), writers*perWriter)
	}
	for i, turn := range turns {
		if turn.Seq != i+1 {
			t.Fatalf("turns[%d].Seq = %d, want %d (gap or duplicate)", i, turn.Seq, i+1)
		}
	}
}

func TestCommitSummary_MovesWatermark(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	appendN(t, store, "s1", 15)

	err := store.CommitSummary(ctx, memory.Summary{
		SessionID: "s1", Seq: 1, StartSeq: 1, EndSeq: 15, Text: "chapter one",
	})
	if err != nil {
		t.Fatalf("CommitSummary: %v", err)
	}

	info, err := store.Session(ctx, "s1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if info.LastSummarizedSeq != 15 || info.SummaryCount != 1 {
		t.Errorf("watermark %d summaries %d, want 15 and 1", info.LastSummarizedSeq, info.SummaryCount)
	}

	turns, _ := store.UnsummarizedTurns(ctx, "s1")
	if len(turns) != 0 {
		t.Errorf("unsummarized = %d, want 0", len(turns))
	}
}

func TestCommitSummary_StaleRangeRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	appendN(t, store, "s1", 15)

	ok := memory.Summary{SessionID: "s1", Seq: 1, StartSeq: 1, EndSeq: 15, Text: "t"}
	if err := store.CommitSummary(ctx, ok); err != nil {
		t.Fatalf("CommitSummary: %v", err)
	}

	// Committing the same range again must fail without mutating anything.
	err := store.CommitSummary(ctx, ok)
	if !errors.Is(err, memory.ErrStaleCommit) {
		t.Fatalf("duplicate CommitSummary = %v, want ErrStaleCommit", err)
	}

	// A range leaving a gap must fail too.
	appendN(t, store, "s1", 5)
	err = store.CommitSummary(ctx, memory.Summary{
		SessionID: "s1", Seq: 2, StartSeq: 17, EndSeq: 20, Text: "t",
	})
	if !errors.Is(err, memory.ErrStaleCommit) {
		t.Fatalf("gapped CommitSummary = %v, want ErrStaleCommit", err)
	}

	info, _ := store.Session(ctx, "s1")
	if info.SummaryCount != 1 {
		t.Errorf("summary count = %d, want 1", info.SummaryCount)
	}
}

func TestTryLockSession_Exclusive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	appendN(t, store, "s1", 1)

	unlock, err := store.TryLockSession(ctx, "s1")
	if err != nil {
		t.Fatalf("TryLockSession: %v", err)
	}

	_, err = store.TryLockSession(ctx, "s1")
	if !errors.Is(err, memory.ErrLockHeld) {
		t.Fatalf("second TryLockSession = %v, want ErrLockHeld", err)
	}

	// Other sessions are unaffected.
	unlock2, err := store.TryLockSession(ctx, "s2")
	if err != nil {
		t.Fatalf("TryLockSession other session: %v", err)
	}
	unlock2()

	unlock()
	unlock3, err := store.TryLockSession(ctx, "s1")
	if err != nil {
		t.Fatalf("TryLockSession after unlock: %v", err)
	}
	unlock3()
}

func TestClearSession_KeepSummaries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	appendN(t, store, "s1", 15)

	if err := store.CommitSummary(ctx, memory.Summary{
		SessionID: "s1", Seq: 1, StartSeq: 1, EndSeq: 15, Text: "kept",
	}); err != nil {
		t.Fatalf("CommitSummary: %v", err)
	}
	if err := store.AppendArchive(ctx, memory.StoryArchive{
		ID: "a1", SessionID: "s1", SummarySeqs: []int{1}, StyleTag: "default", Text: "story",
	}); err != nil {
		t.Fatalf("AppendArchive: %v", err)
	}

	if err := store.ClearSession(ctx, "s1", true); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}

	info, err := store.Session(ctx, "s1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if info.TurnCount != 0 || info.LastSummarizedSeq != 0 {
		t.Errorf("after clear: turns %d watermark %d, want 0 and 0", info.TurnCount, info.LastSummarizedSeq)
	}
	if info.SummaryCount != 1 || info.ArchiveCount != 1 {
		t.Errorf("after clear: summaries %d archives %d, want 1 and 1", info.SummaryCount, info.ArchiveCount)
	}

	// Turn numbering restarts, summary numbering continues.
	n, err := store.AppendTurn(ctx, "s1", memory.Turn{Role: memory.RolePlayer, Content: "fresh start"})
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if n != 1 {
		t.Errorf("turn count after clear = %d, want 1", n)
	}
}

func TestClearSession_DropEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	appendN(t, store, "s1", 3)

	if err := store.ClearSession(ctx, "s1", false); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	_, err := store.Session(ctx, "s1")
	if !errors.Is(err, memory.ErrUnknownSession) {
		t.Fatalf("Session after full clear = %v, want ErrUnknownSession", err)
	}
}

func TestExport_SnapshotContainsAllRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	appendN(t, store, "s1", 15)

	if err := store.CommitSummary(ctx, memory.Summary{
		SessionID: "s1", Seq: 1, StartSeq: 1, EndSeq: 15, Text: "chapter",
	}); err != nil {
		t.Fatalf("CommitSummary: %v", err)
	}
	if err := store.AppendArchive(ctx, memory.StoryArchive{
		ID: "a1", SessionID: "s1", SummarySeqs: []int{1}, StyleTag: "default", Text: "story",
	}); err != nil {
		t.Fatalf("AppendArchive: %v", err)
	}

	exp, err := store.Export(ctx, "s1")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(exp.Turns) != 15 || len(exp.Summaries) != 1 || len(exp.Archives) != 1 {
		t.Errorf("export = %d turns %d summaries %d archives, want 15/1/1",
			len(exp.Turns), len(exp.Summaries), len(exp.Archives))
	}
}

func TestScenario_Upsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sc := memory.Scenario{Synopsis: "a drowned village", Stage: "act one", Era: "medieval"}
	if err := store.SetScenario(ctx, "s1", sc); err != nil {
		t.Fatalf("SetScenario: %v", err)
	}

	info, err := store.Session(ctx, "s1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if info.Scenario != sc {
		t.Errorf("scenario = %+v, want %+v", info.Scenario, sc)
	}

	sc.Stage = "act two"
	if err := store.SetScenario(ctx, "s1", sc); err != nil {
		t.Fatalf("SetScenario update: %v", err)
	}
	info, _ = store.Session(ctx, "s1")
	if info.Scenario.Stage != "act two" {
		t.Errorf("stage = %q, want act two", info.Scenario.Stage)
	}
}
