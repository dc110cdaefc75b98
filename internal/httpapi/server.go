// Package httpapi exposes the Chronicler session, summarization, and archive
// operations over a JSON REST API.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/chronicler/internal/health"
	"github.com/MrWong99/chronicler/internal/narrative"
	"github.com/MrWong99/chronicler/internal/observe"
	"github.com/MrWong99/chronicler/pkg/memory"
)

// Server holds the handler dependencies and assembles the router.
type Server struct {
	store     memory.Store
	engine    *narrative.Engine
	assembler *narrative.Assembler
	metrics   *observe.Metrics

	// autoFire runs due summarizations in the background after an append.
	autoFire bool
}

// Config configures a [Server].
type Config struct {
	// Store holds session state. Required.
	Store memory.Store

	// Engine runs summarizations. Required.
	Engine *narrative.Engine

	// Assembler builds story archives. Required.
	Assembler *narrative.Assembler

	// Metrics receives instrumentation. Defaults to [observe.DefaultMetrics]
	// if nil.
	Metrics *observe.Metrics

	// AutoFire launches a background summarization when an append makes one
	// due. When false, appends only report summary_due.
	AutoFire bool
}

// New creates a [Server] from cfg.
func New(cfg Config) *Server {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Server{
		store:     cfg.Store,
		engine:    cfg.Engine,
		assembler: cfg.Assembler,
		metrics:   m,
		autoFire:  cfg.AutoFire,
	}
}

// Router assembles the chi router with all API, health, and metrics routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(observe.Middleware(s.metrics))

	health.New(health.StoreChecker(s.store)).Register(r)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleClearSession)
			r.Put("/scenario", s.handleSetScenario)
			r.Get("/export", s.handleExport)
			r.Post("/turns", s.handleAppendTurn)
			r.Get("/turns", s.handleListUnsummarizedTurns)
			r.Post("/summaries", s.handleSummarize)
			r.Get("/summaries", s.handleListSummaries)
			r.Post("/archives", s.handleAssemble)
			r.Get("/archives", s.handleListArchives)
			r.Get("/archives/latest", s.handleLatestArchive)
		})
	})

	return r
}

// sessionID extracts the {id} path parameter.
func sessionID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondDomainError maps a domain error to its HTTP status and error code.
//
// Input problems map to 400, a busy session to 409, an unknown session to
// 404, provider exhaustion to 502, and everything else (store failures) to
// 500 with the detail kept out of the response body.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, memory.ErrUnknownSession):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, narrative.ErrNothingToSummarize):
		respondError(w, http.StatusBadRequest, "nothing_to_summarize", err.Error())
	case errors.Is(err, narrative.ErrInsufficientTurns):
		respondError(w, http.StatusBadRequest, "insufficient_turns", err.Error())
	case errors.Is(err, narrative.ErrNotDue):
		respondError(w, http.StatusBadRequest, "not_due", err.Error())
	case errors.Is(err, narrative.ErrNoSummaries):
		respondError(w, http.StatusBadRequest, "no_summaries", err.Error())
	case errors.Is(err, narrative.ErrSummarizeInFlight):
		respondError(w, http.StatusConflict, "summarize_in_flight", err.Error())
	case errors.Is(err, narrative.ErrGenerationUnavailable):
		respondError(w, http.StatusBadGateway, "generation_unavailable", err.Error())
	default:
		observe.Logger(r.Context()).Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
