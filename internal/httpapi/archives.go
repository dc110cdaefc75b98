package httpapi

import (
	"net/http"
)

// handleAssemble weaves every summary committed so far into a full story and
// appends it to the archive history.
func (s *Server) handleAssemble(w http.ResponseWriter, r *http.Request) {
	arc, err := s.assembler.AssembleStory(r.Context(), sessionID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, arc)
}

func (s *Server) handleListArchives(w http.ResponseWriter, r *http.Request) {
	arcs, err := s.store.Archives(r.Context(), sessionID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"archives": arcs})
}

func (s *Server) handleLatestArchive(w http.ResponseWriter, r *http.Request) {
	arc, err := s.store.LatestArchive(r.Context(), sessionID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, arc)
}
