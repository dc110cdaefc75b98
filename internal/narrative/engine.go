package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/chronicler/internal/observe"
	"github.com/MrWong99/chronicler/pkg/memory"
	"github.com/MrWong99/chronicler/pkg/provider/llm"
)

// Default generation retry parameters.
const (
	defaultMaxAttempts    = 3
	defaultAttemptTimeout = 60 * time.Second
	defaultBackoff        = 1 * time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// Engine runs summarization for sessions: it locks the session, decides
// whether a summary is due, generates it via the LLM provider, and commits
// it to the store.
//
// At most one summarization runs per session at any time, across all
// processes sharing the store. A second caller gets [ErrSummarizeInFlight]
// instead of queueing.
//
// Safe for concurrent use.
type Engine struct {
	store memory.Store
	llm   llm.Provider

	triggerMu sync.RWMutex
	trigger   Trigger

	maxAttempts    int
	attemptTimeout time.Duration
	backoff        time.Duration
	maxBackoff     time.Duration

	metrics *observe.Metrics
}

// EngineConfig configures an [Engine].
type EngineConfig struct {
	// Store holds session state. Required.
	Store memory.Store

	// Provider generates summary text. Required.
	Provider llm.Provider

	// Trigger decides when summarization is due. The zero value uses the
	// default thresholds.
	Trigger Trigger

	// MaxAttempts is the number of generation attempts before giving up.
	// Defaults to 3 if zero.
	MaxAttempts int

	// AttemptTimeout bounds each individual generation attempt. Defaults to
	// 60s if zero.
	AttemptTimeout time.Duration

	// Backoff is the initial delay between attempts. Doubles each attempt up
	// to MaxBackoff. Defaults to 1s if zero.
	Backoff time.Duration

	// MaxBackoff is the upper limit on backoff duration. Defaults to 30s if zero.
	MaxBackoff time.Duration

	// Metrics receives instrumentation. Defaults to [observe.DefaultMetrics]
	// if nil.
	Metrics *observe.Metrics
}

// NewEngine creates a new [Engine] with the given configuration.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		store:          cfg.Store,
		llm:            cfg.Provider,
		trigger:        cfg.Trigger,
		maxAttempts:    cfg.MaxAttempts,
		attemptTimeout: cfg.AttemptTimeout,
		backoff:        cfg.Backoff,
		maxBackoff:     cfg.MaxBackoff,
		metrics:        cfg.Metrics,
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = defaultMaxAttempts
	}
	if e.attemptTimeout <= 0 {
		e.attemptTimeout = defaultAttemptTimeout
	}
	if e.backoff <= 0 {
		e.backoff = defaultBackoff
	}
	if e.maxBackoff <= 0 {
		e.maxBackoff = defaultMaxBackoff
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// Trigger returns the engine's trigger so callers can report whether a
// summary is due after appending turns.
func (e *Engine) Trigger() Trigger {
	e.triggerMu.RLock()
	defer e.triggerMu.RUnlock()
	return e.trigger
}

// SetTrigger swaps the trigger thresholds at runtime. Runs already past
// their trigger check are unaffected.
func (e *Engine) SetTrigger(t Trigger) {
	e.triggerMu.Lock()
	e.trigger = t
	e.triggerMu.Unlock()
}

// Summarize runs one summarization for the session. It acquires the
// per-session lock, re-checks the trigger condition under the lock, generates
// the summary text with bounded retries, and commits summary and updated
// watermark in a single store transaction.
//
// The turn log is never modified: a failed run leaves the unsummarized range
// exactly as it was, so the next run covers the same turns.
//
// Returns [ErrSummarizeInFlight] when another run holds the session lock,
// [ErrNothingToSummarize], [ErrInsufficientTurns], or [ErrNotDue] when the
// trigger declines, and [ErrGenerationUnavailable] after retry exhaustion.
func (e *Engine) Summarize(ctx context.Context, sessionID string, mode Mode) (memory.Summary, error) {
	unlock, err := e.store.TryLockSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, memory.ErrLockHeld) {
			return memory.Summary{}, fmt.Errorf("session %q: %w", sessionID, ErrSummarizeInFlight)
		}
		return memory.Summary{}, fmt.Errorf("locking session %q: %w", sessionID, err)
	}
	defer unlock()

	e.metrics.ActiveSummarizations.Add(ctx, 1)
	defer e.metrics.ActiveSummarizations.Add(ctx, -1)

	// Re-read under the lock: a run that finished between the caller's
	// trigger check and now may have moved the watermark.
	info, err := e.store.Session(ctx, sessionID)
	if err != nil {
		return memory.Summary{}, fmt.Errorf("reading session %q: %w", sessionID, err)
	}
	if err := e.Trigger().Decide(mode, info.TurnCount, info.LastSummarizedSeq); err != nil {
		return memory.Summary{}, err
	}

	turns, err := e.store.UnsummarizedTurns(ctx, sessionID)
	if err != nil {
		return memory.Summary{}, fmt.Errorf("reading unsummarized turns: %w", err)
	}
	if len(turns) == 0 {
		return memory.Summary{}, ErrNothingToSummarize
	}

	style := StyleFor(info.Scenario.Era)
	system, user := buildSummaryPrompt(info, turns, style)

	start := time.Now()
	text, err := e.generate(ctx, "summary", system, user, summaryLengthHint)
	if err != nil {
		e.metrics.RecordGeneration(ctx, "summary", "error", time.Since(start).Seconds())
		return memory.Summary{}, err
	}
	e.metrics.RecordGeneration(ctx, "summary", "ok", time.Since(start).Seconds())

	sum := memory.Summary{
		SessionID: sessionID,
		Seq:       info.SummaryCount + 1,
		StartSeq:  turns[0].Seq,
		EndSeq:    turns[len(turns)-1].Seq,
		Text:      text,
	}
	if err := e.store.CommitSummary(ctx, sum); err != nil {
		return memory.Summary{}, fmt.Errorf("committing summary %d for session %q: %w", sum.Seq, sessionID, err)
	}

	e.metrics.SummariesCreated.Add(ctx, 1,
		metric.WithAttributes(attribute.String("mode", string(mode))),
	)
	slog.InfoContext(ctx, "summary committed",
		"session_id", sessionID,
		"summary_seq", sum.Seq,
		"start_seq", sum.StartSeq,
		"end_seq", sum.EndSeq,
		"mode", mode,
	)
	return sum, nil
}

// generate calls the provider with bounded retries and exponential backoff.
// An empty or whitespace-only completion counts as a failed attempt.
func (e *Engine) generate(ctx context.Context, kind, system, user string, maxTokens int) (string, error) {
	req := llm.CompletionRequest{
		SystemPrompt: system,
		Messages: []llm.Message{
			{Role: "user", Content: user},
		},
		Temperature: 0.7,
		MaxTokens:   maxTokens,
	}

	backoff := e.backoff
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if attempt > 1 {
			e.metrics.GenerationRetries.Add(ctx, 1,
				metric.WithAttributes(attribute.String("kind", kind)),
			)
			slog.WarnContext(ctx, "generation attempt failed, retrying",
				"kind", kind,
				"attempt", attempt-1,
				"backoff", backoff,
				"error", lastErr,
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", fmt.Errorf("generate %s: %w", kind, ctx.Err())
			}
			backoff *= 2
			if backoff > e.maxBackoff {
				backoff = e.maxBackoff
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
		resp, err := e.llm.Complete(attemptCtx, req)
		cancel()
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return "", fmt.Errorf("generate %s: %w", kind, ctx.Err())
			}
			continue
		}
		text := strings.TrimSpace(resp.Content)
		if text == "" {
			lastErr = errors.New("provider returned empty completion")
			continue
		}
		return text, nil
	}

	e.metrics.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
	return "", fmt.Errorf("generate %s after %d attempts: %w: %w", kind, e.maxAttempts, ErrGenerationUnavailable, lastErr)
}
