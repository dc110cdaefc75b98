package narrative

import "errors"

// Sentinel errors for the summarization and assembly flows. Callers classify
// with errors.Is; the HTTP layer maps them to response codes.
var (
	// ErrNothingToSummarize is returned when the unsummarized range is empty.
	ErrNothingToSummarize = errors.New("nothing to summarize")

	// ErrInsufficientTurns is returned when a manual trigger arrives before
	// the minimum number of new turns has accumulated.
	ErrInsufficientTurns = errors.New("insufficient new turns to summarize")

	// ErrNotDue is returned when an automatic trigger evaluation finds the
	// unsummarized span still below the auto threshold — typically because a
	// concurrent run summarized part of it between the post-append check and
	// lock acquisition. Auto callers treat it as a no-op.
	ErrNotDue = errors.New("auto summarization not due")

	// ErrSummarizeInFlight is returned when a summarization run is already
	// holding the session's advisory lock. The request is rejected, not
	// queued; the caller may retry after backoff.
	ErrSummarizeInFlight = errors.New("summarization already in flight for session")

	// ErrNoSummaries is returned by story assembly when the session has no
	// committed summaries to weave together.
	ErrNoSummaries = errors.New("no memory available to assemble")

	// ErrGenerationUnavailable is returned after the generation service has
	// failed every allowed attempt. The unsummarized range is untouched and
	// the next trigger re-attempts the same span.
	ErrGenerationUnavailable = errors.New("generation service unavailable")
)
