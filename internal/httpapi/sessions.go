package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/chronicler/internal/narrative"
	"github.com/MrWong99/chronicler/internal/observe"
	"github.com/MrWong99/chronicler/pkg/memory"
)

// autoFireTimeout bounds a background summarization launched after an append.
const autoFireTimeout = 5 * time.Minute

type appendTurnRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type appendTurnResponse struct {
	Seq        int  `json:"seq"`
	TurnCount  int  `json:"turn_count"`
	SummaryDue bool `json:"summary_due"`
}

func (s *Server) handleAppendTurn(w http.ResponseWriter, r *http.Request) {
	var req appendTurnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	role := memory.Role(strings.TrimSpace(req.Role))
	if !role.IsValid() {
		respondError(w, http.StatusBadRequest, "invalid_role", "role must be narrator, player, or system")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}

	id := sessionID(r)
	count, err := s.store.AppendTurn(r.Context(), id, memory.Turn{
		Role:    role,
		Content: req.Content,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	s.metrics.TurnsAppended.Add(r.Context(), 1,
		metric.WithAttributes(attribute.String("role", string(role))),
	)

	info, err := s.store.Session(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	due := s.engine.Trigger().AutoDue(info.TurnCount, info.LastSummarizedSeq)

	// Appending never blocks on generation. A due summary either runs in the
	// background or is left for the narrator to trigger.
	if due && s.autoFire {
		go s.fireSummarize(id)
	}

	respondJSON(w, http.StatusCreated, appendTurnResponse{
		Seq:        count,
		TurnCount:  info.TurnCount,
		SummaryDue: due,
	})
}

// fireSummarize runs one auto-mode summarization detached from the request.
// A concurrent run or a lost race on the trigger is expected and not an error.
func (s *Server) fireSummarize(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), autoFireTimeout)
	defer cancel()

	_, err := s.engine.Summarize(ctx, id, narrative.ModeAuto)
	switch {
	case err == nil:
	case errors.Is(err, narrative.ErrSummarizeInFlight),
		errors.Is(err, narrative.ErrNotDue),
		errors.Is(err, narrative.ErrNothingToSummarize):
		observe.Logger(ctx).Debug("background summarization skipped", "session_id", id, "reason", err)
	default:
		observe.Logger(ctx).Error("background summarization failed", "session_id", id, "error", err)
	}
}

type sessionResponse struct {
	memory.SessionInfo
	PendingTurns   int  `json:"pending_turns"`
	TurnsUntilAuto int  `json:"turns_until_auto"`
	SummaryDue     bool `json:"summary_due"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.Session(r.Context(), sessionID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	trig := s.engine.Trigger()
	respondJSON(w, http.StatusOK, sessionResponse{
		SessionInfo:    info,
		PendingTurns:   info.TurnCount - info.LastSummarizedSeq,
		TurnsUntilAuto: trig.TurnsUntilAuto(info.TurnCount, info.LastSummarizedSeq),
		SummaryDue:     trig.AutoDue(info.TurnCount, info.LastSummarizedSeq),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.Sessions(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": infos})
}

func (s *Server) handleListUnsummarizedTurns(w http.ResponseWriter, r *http.Request) {
	turns, err := s.store.UnsummarizedTurns(r.Context(), sessionID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func (s *Server) handleSetScenario(w http.ResponseWriter, r *http.Request) {
	var sc memory.Scenario
	if err := decodeJSON(r, &sc); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.store.SetScenario(r.Context(), sessionID(r), sc); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sc)
}

type clearSessionResponse struct {
	Cleared       bool `json:"cleared"`
	KeptSummaries bool `json:"kept_summaries"`
}

// handleClearSession resets a session's turn log. Destructive, so it requires
// ?confirm=true; without it the request is a dry run describing what would
// happen. ?keep_summaries=true preserves summaries and archives.
func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	keep := r.URL.Query().Get("keep_summaries") == "true"

	if r.URL.Query().Get("confirm") != "true" {
		info, err := s.store.Session(r.Context(), sessionID(r))
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"cleared":          false,
			"confirm_required": true,
			"would_drop_turns": info.TurnCount,
			"keep_summaries":   keep,
		})
		return
	}

	if err := s.store.ClearSession(r.Context(), sessionID(r), keep); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, clearSessionResponse{Cleared: true, KeptSummaries: keep})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	exp, err := s.store.Export(r.Context(), sessionID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, exp)
}
