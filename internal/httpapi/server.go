// Package httpapi exposes the ingestion and reporting boundaries as thin
// JSON handlers. The production routing/auth middleware stack sits in front
// of this and is out of scope here.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/ganot/coursetrace/internal/domain/progress"
	"github.com/ganot/coursetrace/internal/domain/state"
	"github.com/ganot/coursetrace/internal/domain/statement"
	"github.com/ganot/coursetrace/internal/domain/verbs"
	"github.com/ganot/coursetrace/internal/storage"
)

// Services are the domain entry points the boundary exposes.
type Services struct {
	Statements *statement.Store
	State      *state.Store
	Progress   *progress.Engine
	Verbs      *verbs.Registry
}

// Server dispatches boundary requests.
type Server struct {
	svc    Services
	logger *slog.Logger
}

// NewHandler builds the boundary router.
func NewHandler(svc Services, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /statements", s.handleAppendStatement)
	mux.HandleFunc("GET /statements", s.handleQueryStatements)
	mux.HandleFunc("GET /statements/{id}", s.handleGetStatement)
	mux.HandleFunc("GET /activities/state", s.handleGetState)
	mux.HandleFunc("PUT /activities/state", s.handleSaveState)
	mux.HandleFunc("DELETE /activities/state", s.handleDeleteState)
	mux.HandleFunc("POST /progress/launch", s.handleLaunch)
	mux.HandleFunc("POST /progress/sync", s.handleSync)
	mux.HandleFunc("GET /progress", s.handleGetProgress)
	mux.HandleFunc("GET /verbs", s.handleListVerbs)
	mux.HandleFunc("GET /verbs/usage", s.handleVerbUsage)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) handleListVerbs(w http.ResponseWriter, _ *http.Request) {
	entries := s.svc.Verbs.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleVerbUsage(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Verbs.UsageSnapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleAppendStatement(w http.ResponseWriter, r *http.Request) {
	var stmt statement.Statement
	if err := json.NewDecoder(r.Body).Decode(&stmt); err != nil {
		http.Error(w, "invalid statement body", http.StatusBadRequest)
		return
	}

	id, err := s.svc.Statements.Append(r.Context(), stmt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleQueryStatements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	actor := actorFromQuery(q.Get("agent"), q.Get("mbox"), q.Get("account_homepage"), q.Get("account_name"))
	if actor.CanonicalID() == "" {
		http.Error(w, "agent identifier required", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	page, err := s.svc.Statements.QueryByActor(r.Context(), actor, statement.Query{
		ActivityID:   q.Get("activity"),
		VerbID:       q.Get("verb"),
		Registration: q.Get("registration"),
		Limit:        limit,
		Offset:       offset,
		Cursor:       q.Get("cursor"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	statements := page.Statements
	if statements == nil {
		statements = []statement.Statement{}
	}
	resp := map[string]any{"statements": statements}
	if page.NextCursor != "" {
		resp["cursor"] = page.NextCursor
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetStatement(w http.ResponseWriter, r *http.Request) {
	stmt, err := s.svc.Statements.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stmt)
}

func (s *Server) handleSaveState(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	actor := actorFromQuery(q.Get("agent"), q.Get("mbox"), q.Get("account_homepage"), q.Get("account_name"))

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading payload", http.StatusBadRequest)
		return
	}

	err = s.svc.State.Save(r.Context(), q.Get("activityId"), actor, q.Get("stateId"), payload, q.Get("registration"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	actor := actorFromQuery(q.Get("agent"), q.Get("mbox"), q.Get("account_homepage"), q.Get("account_name"))

	payload, err := s.svc.State.Get(r.Context(), q.Get("activityId"), actor, q.Get("stateId"), q.Get("registration"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) handleDeleteState(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	actor := actorFromQuery(q.Get("agent"), q.Get("mbox"), q.Get("account_homepage"), q.Get("account_name"))

	err := s.svc.State.Delete(r.Context(), q.Get("activityId"), actor, q.Get("stateId"), q.Get("registration"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type launchRequest struct {
	Actor        statement.Actor `json:"actor"`
	CourseID     string          `json:"course_id"`
	Registration string          `json:"registration"`
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var req launchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid launch body", http.StatusBadRequest)
		return
	}

	rec, err := s.svc.Progress.RecordLaunch(r.Context(), req.Actor, req.CourseID, req.Registration)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

type syncRequest struct {
	Actor        statement.Actor `json:"actor"`
	CourseID     string          `json:"course_id"`
	ActivityID   string          `json:"activity_id"`
	Registration string          `json:"registration"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid sync body", http.StatusBadRequest)
		return
	}

	rec, err := s.svc.Progress.Sync(r.Context(), req.Actor, req.CourseID, req.ActivityID, req.Registration)
	if errors.Is(err, progress.ErrNoData) {
		s.writeJSON(w, http.StatusOK, map[string]string{"result": "no-data"})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	actor := actorFromQuery(q.Get("agent"), q.Get("mbox"), q.Get("account_homepage"), q.Get("account_name"))
	if actor.CanonicalID() == "" {
		http.Error(w, "agent identifier required", http.StatusBadRequest)
		return
	}

	records, err := s.svc.Progress.GetProgress(r.Context(), actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []progress.Progress{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

// actorFromQuery accepts either a JSON agent parameter or discrete
// mbox/account parameters.
func actorFromQuery(agentJSON, mbox, homepage, accountName string) statement.Actor {
	if agentJSON != "" {
		var actor statement.Actor
		if err := json.Unmarshal([]byte(agentJSON), &actor); err == nil {
			return actor
		}
	}
	actor := statement.Actor{Mbox: mbox}
	if accountName != "" {
		actor.Account = &statement.Account{HomePage: homepage, Name: accountName}
	}
	return actor
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case statement.IsNotFound(err), errors.Is(err, state.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case storage.StatusOf(err) >= 400 && storage.StatusOf(err) < 500:
		http.Error(w, err.Error(), storage.StatusOf(err))
	default:
		s.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
