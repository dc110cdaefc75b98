package memory

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	// RoleNarrator is the human game narrator (keeper, DM).
	RoleNarrator Role = "narrator"

	// RolePlayer is a player-side message.
	RolePlayer Role = "player"

	// RoleSystem is machine-generated content (dice results, stage notes).
	RoleSystem Role = "system"
)

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	switch r {
	case RoleNarrator, RolePlayer, RoleSystem:
		return true
	}
	return false
}

// Turn is one message in a session's conversation log. Turns are immutable
// once appended; Seq is assigned by the store and is strictly increasing and
// contiguous from 1 within a session.
type Turn struct {
	// Seq is the per-session sequence number. Assigned on append.
	Seq int `json:"seq"`

	// Role identifies the speaker.
	Role Role `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// Timestamp is when the turn was appended.
	Timestamp time.Time `json:"timestamp"`
}

// Scenario is the narrative setting metadata attached to a session. The Era
// tag drives prose-style selection for summaries and assembled stories.
type Scenario struct {
	// Synopsis is a short description of the scenario being played.
	Synopsis string `json:"synopsis"`

	// Stage is the narrator's free-form marker for the current story phase.
	Stage string `json:"stage"`

	// Era is the historical/cultural setting tag (e.g. "medieval",
	// "republican-era"). Unknown tags fall back to a plain register.
	Era string `json:"era"`
}

// SessionInfo is the per-session bookkeeping record. Turn content itself is
// retrieved separately; SessionInfo carries the counters the summarization
// trigger operates on.
type SessionInfo struct {
	// ID is the session identifier.
	ID string `json:"id"`

	// Scenario is the narrative setting metadata.
	Scenario Scenario `json:"scenario"`

	// TurnCount is the number of turns appended since creation (or the last
	// clear).
	TurnCount int `json:"turn_count"`

	// LastSummarizedSeq is the high-water mark: the highest turn sequence
	// number already folded into a committed summary. It only advances
	// together with a durably committed Summary.
	LastSummarizedSeq int `json:"last_summarized_seq"`

	// SummaryCount is the number of committed summaries for this session.
	SummaryCount int `json:"summary_count"`

	// ArchiveCount is the number of assembled story archives.
	ArchiveCount int `json:"archive_count"`

	// CreatedAt is when the session record was first created.
	CreatedAt time.Time `json:"created_at"`
}

// Summary is a bounded-length narrative compression of a contiguous turn
// range. Immutable once committed. For a session, summary ranges never
// overlap and never leave gaps below LastSummarizedSeq.
type Summary struct {
	// SessionID is the owning session.
	SessionID string `json:"session_id"`

	// Seq is the per-session summary sequence number, contiguous from 1.
	Seq int `json:"seq"`

	// StartSeq is the first turn covered (inclusive).
	StartSeq int `json:"start_seq"`

	// EndSeq is the last turn covered (inclusive).
	EndSeq int `json:"end_seq"`

	// Text is the summary prose. Length is bounded (300–500 words) by the
	// generation contract, not enforced locally.
	Text string `json:"text"`

	// CreatedAt is when the summary was committed.
	CreatedAt time.Time `json:"created_at"`
}

// StoryArchive is a single continuous narrative assembled from all summaries
// of a session at one point in time. Archives are append-only history; the
// most recently created one is the "current" story.
type StoryArchive struct {
	// ID uniquely identifies this archive.
	ID string `json:"id"`

	// SessionID is the owning session.
	SessionID string `json:"session_id"`

	// SummarySeqs lists the summary sequence numbers woven into this archive,
	// in order.
	SummarySeqs []int `json:"summary_seqs"`

	// StyleTag is the era tag whose style directive was applied.
	StyleTag string `json:"style_tag"`

	// Text is the assembled narrative.
	Text string `json:"text"`

	// CreatedAt is when the archive was assembled.
	CreatedAt time.Time `json:"created_at"`
}

// SessionExport is a read-only dump of all three record families for one
// session, suitable for backup and debugging.
type SessionExport struct {
	Session   SessionInfo    `json:"session"`
	Turns     []Turn         `json:"turns"`
	Summaries []Summary      `json:"summaries"`
	Archives  []StoryArchive `json:"archives"`
}
