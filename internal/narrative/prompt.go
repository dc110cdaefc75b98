package narrative

import (
	"fmt"
	"strings"

	"github.com/MrWong99/chronicler/pkg/memory"
)

// summaryTaskPrompt frames the compression task. The style directive and
// scenario context are appended per request.
const summaryTaskPrompt = `You are the chronicler of a tabletop horror campaign.
Condense the following play transcript into a narrative synopsis of 300-500 words.
Describe the investigators' actions and encounters as a story, in the third person,
as if recording an expedition log. Preserve every discovered clue, revelation, and
plot twist with its significance intact, and keep a tense, suspenseful register
throughout. Do not invent events that are not in the transcript.`

// storyTaskPrompt frames the assembly task that weaves all summaries into a
// single continuous story.
const storyTaskPrompt = `You are the chronicler of a tabletop horror campaign.
Weave the chapter synopses below into one complete, continuous story — not a list
of recaps. Keep the chapters' causal and chronological order, connect them with
coherent transitions, open with a brief scene-setting, and close on the story's
current state. Emphasise key clues and turning points, sustain an atmosphere of
suspense and dread, and add nothing that the synopses do not contain. Use a
third-person omniscient voice.`

// summaryLengthHint caps summary completions; generous against the 300-500
// word target so the model is never truncated mid-sentence.
const summaryLengthHint = 1000

// storyLengthHint caps assembled-story completions.
const storyLengthHint = 3000

// buildSummaryPrompt renders the system prompt and transcript for one
// summarization run.
func buildSummaryPrompt(info memory.SessionInfo, turns []memory.Turn, style Style) (system, user string) {
	var sb strings.Builder
	sb.WriteString(summaryTaskPrompt)
	sb.WriteString("\n")
	sb.WriteString(style.Directive)
	writeScenario(&sb, info.Scenario)
	system = sb.String()

	var tb strings.Builder
	tb.WriteString("Transcript:\n")
	for _, t := range turns {
		fmt.Fprintf(&tb, "[%s]: %s\n", t.Role, t.Content)
	}
	return system, tb.String()
}

// buildStoryPrompt renders the system prompt and chapter list for one
// assembly run.
func buildStoryPrompt(info memory.SessionInfo, summaries []memory.Summary, style Style) (system, user string) {
	var sb strings.Builder
	sb.WriteString(storyTaskPrompt)
	sb.WriteString("\n")
	sb.WriteString(style.Directive)
	writeScenario(&sb, info.Scenario)
	system = sb.String()

	var cb strings.Builder
	for i, s := range summaries {
		fmt.Fprintf(&cb, "Chapter %d:\n%s\n\n", i+1, s.Text)
	}
	return system, cb.String()
}

// writeScenario appends scenario context lines when they are set.
func writeScenario(sb *strings.Builder, sc memory.Scenario) {
	if sc.Synopsis != "" {
		fmt.Fprintf(sb, "\nScenario background: %s", sc.Synopsis)
	}
	if sc.Stage != "" {
		fmt.Fprintf(sb, "\nCurrent stage: %s", sc.Stage)
	}
}
