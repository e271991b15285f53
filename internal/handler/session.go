package handler

import (
	"log/slog"
	"net/http"

	"inkwell/internal/httputil"
	sessionSvc "inkwell/internal/service/session"
)

// SessionHandler handles chat session HTTP requests.
type SessionHandler struct {
	sessions *sessionSvc.Service
	logger   *slog.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(sessions *sessionSvc.Service, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// CreateSession creates a chat session against a story. Incognito
// sessions live in memory and never reach the database.
// POST /api/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionSvc.CreateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}
	req.UserID = httputil.GetUserID(r)

	sess, err := h.sessions.Create(r.Context(), &req)
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, sess)
}

// ListSessions lists a story's sessions, newest activity first.
// GET /api/sessions?story_id=:id
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	storyID, ok := queryID(w, r, "story_id")
	if !ok {
		return
	}

	sessions, err := h.sessions.ListByStory(r.Context(), storyID, httputil.GetUserID(r))
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, sessions)
}

// GetSession retrieves a session with its full message history.
// GET /api/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	sess, err := h.sessions.Get(r.Context(), sessionID, httputil.GetUserID(r))
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, sess)
}

// UpdateSession patches name, system prompt, or the web search flag.
// PATCH /api/sessions/{id}
func (h *SessionHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req sessionSvc.UpdateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}
	req.SessionID = sessionID
	req.UserID = httputil.GetUserID(r)

	sess, err := h.sessions.Update(r.Context(), &req)
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, sess)
}

// DeleteSession removes a session and its messages.
// DELETE /api/sessions/{id}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.sessions.Delete(r.Context(), sessionID, httputil.GetUserID(r)); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
