package narrative

import "fmt"

// Default trigger thresholds.
const (
	// DefaultAutoThreshold is the number of unsummarized turns at which a
	// summarization fires automatically after an append.
	DefaultAutoThreshold = 15

	// DefaultManualMinimum is the smallest number of unsummarized turns for
	// which a manual summarize request is accepted.
	DefaultManualMinimum = 5
)

// Mode distinguishes how a summarization run was requested.
type Mode string

const (
	// ModeAuto is the post-append trigger evaluation.
	ModeAuto Mode = "auto"

	// ModeManual is an explicit request from the narrator.
	ModeManual Mode = "manual"
)

// Trigger is the stateless decision function that determines whether a
// summarization run is due. It holds only thresholds; all counters live in
// the session record owned by the store.
type Trigger struct {
	// AutoThreshold fires an automatic run once this many turns are
	// unsummarized. Defaults to DefaultAutoThreshold if zero.
	AutoThreshold int

	// ManualMinimum rejects manual requests below this many unsummarized
	// turns. Defaults to DefaultManualMinimum if zero.
	ManualMinimum int
}

// autoThreshold returns the effective auto threshold.
func (t Trigger) autoThreshold() int {
	if t.AutoThreshold > 0 {
		return t.AutoThreshold
	}
	return DefaultAutoThreshold
}

// manualMinimum returns the effective manual minimum.
func (t Trigger) manualMinimum() int {
	if t.ManualMinimum > 0 {
		return t.ManualMinimum
	}
	return DefaultManualMinimum
}

// AutoDue reports whether an automatic summarization is due for a session
// with the given turn count and high-water mark.
func (t Trigger) AutoDue(turnCount, lastSummarizedSeq int) bool {
	return turnCount-lastSummarizedSeq >= t.autoThreshold()
}

// TurnsUntilAuto returns how many more turns must be appended before an
// automatic summarization fires. Zero when one is already due.
func (t Trigger) TurnsUntilAuto(turnCount, lastSummarizedSeq int) int {
	remaining := t.autoThreshold() - (turnCount - lastSummarizedSeq)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Decide validates that a summarization run in the given mode may proceed.
// The pending count is turnCount-lastSummarizedSeq. It returns
// ErrNothingToSummarize when nothing is pending, ErrInsufficientTurns when a
// manual request is below the minimum, ErrNotDue when an auto evaluation is
// below the auto threshold, and nil when the run may proceed. The engine
// re-evaluates Decide under the session lock, so the decision always rests
// on counters no concurrent run can be mutating.
func (t Trigger) Decide(mode Mode, turnCount, lastSummarizedSeq int) error {
	pending := turnCount - lastSummarizedSeq
	if pending <= 0 {
		return ErrNothingToSummarize
	}
	switch mode {
	case ModeManual:
		if pending < t.manualMinimum() {
			return fmt.Errorf("%w: %d new turns, need at least %d",
				ErrInsufficientTurns, pending, t.manualMinimum())
		}
	case ModeAuto:
		if pending < t.autoThreshold() {
			return fmt.Errorf("%w: %d new turns, threshold %d",
				ErrNotDue, pending, t.autoThreshold())
		}
	}
	return nil
}
