package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/chronicler/pkg/memory"
)

// Assembler weaves a session's summaries into a single continuous story and
// archives the result. Assembly reads session state but never modifies the
// turn log or the summaries, so it can run at any time, any number of times.
//
// Safe for concurrent use.
type Assembler struct {
	engine *Engine
}

// NewAssembler creates an [Assembler] sharing the engine's store, provider,
// and retry configuration.
func NewAssembler(engine *Engine) *Assembler {
	return &Assembler{engine: engine}
}

// AssembleStory generates the full story from every summary committed so far
// and appends it to the session's archive history.
//
// Returns [ErrNoSummaries] when the session has no summaries yet, and
// [ErrGenerationUnavailable] after retry exhaustion. A failed run archives
// nothing.
func (a *Assembler) AssembleStory(ctx context.Context, sessionID string) (memory.StoryArchive, error) {
	e := a.engine

	info, err := e.store.Session(ctx, sessionID)
	if err != nil {
		return memory.StoryArchive{}, fmt.Errorf("reading session %q: %w", sessionID, err)
	}
	summaries, err := e.store.Summaries(ctx, sessionID)
	if err != nil {
		return memory.StoryArchive{}, fmt.Errorf("reading summaries: %w", err)
	}
	if len(summaries) == 0 {
		return memory.StoryArchive{}, fmt.Errorf("session %q: %w", sessionID, ErrNoSummaries)
	}

	style := StyleFor(info.Scenario.Era)
	system, user := buildStoryPrompt(info, summaries, style)

	start := time.Now()
	text, err := e.generate(ctx, "story", system, user, storyLengthHint)
	if err != nil {
		e.metrics.RecordGeneration(ctx, "story", "error", time.Since(start).Seconds())
		return memory.StoryArchive{}, err
	}
	e.metrics.RecordGeneration(ctx, "story", "ok", time.Since(start).Seconds())

	seqs := make([]int, len(summaries))
	for i, s := range summaries {
		seqs[i] = s.Seq
	}
	arc := memory.StoryArchive{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		SummarySeqs: seqs,
		StyleTag:    style.Tag,
		Text:        text,
	}
	if err := e.store.AppendArchive(ctx, arc); err != nil {
		return memory.StoryArchive{}, fmt.Errorf("archiving story for session %q: %w", sessionID, err)
	}

	e.metrics.ArchivesAssembled.Add(ctx, 1,
		metric.WithAttributes(attribute.String("style", style.Tag)),
	)
	slog.InfoContext(ctx, "story archived",
		"session_id", sessionID,
		"archive_id", arc.ID,
		"summaries", len(seqs),
		"style", style.Tag,
	)
	return arc, nil
}
