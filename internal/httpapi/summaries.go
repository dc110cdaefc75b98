package httpapi

import (
	"net/http"

	"github.com/MrWong99/chronicler/internal/narrative"
)

// handleSummarize runs a manual summarization for the session. The response
// is the committed summary; trigger refusals and provider exhaustion map to
// their HTTP statuses via respondDomainError.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	sum, err := s.engine.Summarize(r.Context(), sessionID(r), narrative.ModeManual)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sum)
}

func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	sums, err := s.store.Summaries(r.Context(), sessionID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"summaries": sums})
}
