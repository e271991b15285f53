package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/chat"
	"inkwell/internal/engine/turn"
	"inkwell/internal/httputil"
)

// TurnEngine is the slice of the chat turn engine the handler drives.
type TurnEngine interface {
	Send(ctx context.Context, req *turn.SendRequest) (*turn.SendResult, error)
	Regenerate(ctx context.Context, sessionID, userID, activeChapterID string) (*turn.SendResult, error)
	Stop(sessionID string) bool
	ResolveThrottle(sessionID string, d turn.Decision) error
	State(sessionID string) turn.State
	EditMessage(ctx context.Context, sessionID, userID, messageID, text string) (*chat.Session, error)
	DeleteMessage(ctx context.Context, sessionID, userID, messageID string) (*chat.Session, error)
}

// ChatHandler handles the chat turn lifecycle: sending, stopping,
// regenerating, throttle decisions, and message edits.
type ChatHandler struct {
	engine TurnEngine
	logger *slog.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(engine TurnEngine, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{engine: engine, logger: logger}
}

type sendMessageRequest struct {
	Text            string `json:"text"`
	ActiveChapterID string `json:"active_chapter_id"`
}

// SendMessage appends a user message and starts a turn. The turn runs
// in the background; the response carries the ids of the appended user
// message and the model message the turn streams into, plus the SSE
// URL to watch. A turn already in flight responds 409.
// POST /api/sessions/{id}/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var body sendMessageRequest
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	result, err := h.engine.Send(r.Context(), &turn.SendRequest{
		SessionID:       sessionID,
		UserID:          httputil.GetUserID(r),
		Text:            body.Text,
		ActiveChapterID: body.ActiveChapterID,
	})
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusAccepted, result)
}

type regenerateRequest struct {
	ActiveChapterID string `json:"active_chapter_id"`
}

// Regenerate truncates history back through the latest model message
// and reruns the turn from the preceding user message.
// POST /api/sessions/{id}/regenerate
func (h *ChatHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	// The body is optional; an empty one regenerates with no active
	// chapter.
	var body regenerateRequest
	if r.ContentLength != 0 {
		if err := httputil.ParseJSON(w, r, &body); err != nil {
			httputil.RespondDomainError(w, h.logger, err)
			return
		}
	}

	result, err := h.engine.Regenerate(r.Context(), sessionID, httputil.GetUserID(r), body.ActiveChapterID)
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusAccepted, result)
}

// Stop requests cooperative cancellation of the active turn. Advisory:
// the turn halts at its next checkpoint, and messages already appended
// stay. Stopping an idle session is a no-op.
// POST /api/sessions/{id}/stop
func (h *ChatHandler) Stop(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	stopped := h.engine.Stop(sessionID)
	httputil.RespondJSON(w, http.StatusOK, map[string]bool{"stopped": stopped})
}

type throttleRequest struct {
	Decision string `json:"decision"`
}

// Throttle answers a turn paused at the tool-call gate: stop, continue
// for another batch, or lift the limit for the rest of the session.
// POST /api/sessions/{id}/throttle
func (h *ChatHandler) Throttle(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var body throttleRequest
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	decision, valid := turn.ParseDecision(body.Decision)
	if !valid {
		httputil.RespondDomainError(w, h.logger,
			fmt.Errorf("%w: decision must be stop, continue, or unlimited", domain.ErrValidation))
		return
	}

	if err := h.engine.ResolveThrottle(sessionID, decision); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type editMessageRequest struct {
	Text string `json:"text"`
}

// EditMessage replaces the text of a user or model message and returns
// the updated session. Rejected with 409 while a turn is in flight.
// PATCH /api/sessions/{id}/messages/{mid}
func (h *ChatHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	messageID, ok := pathID(w, r, "mid")
	if !ok {
		return
	}

	var body editMessageRequest
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	sess, err := h.engine.EditMessage(r.Context(), sessionID, httputil.GetUserID(r), messageID, body.Text)
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, sess)
}

// DeleteMessage removes a message, cascading over the tool results
// that answer it, and returns the updated session.
// DELETE /api/sessions/{id}/messages/{mid}
func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	messageID, ok := pathID(w, r, "mid")
	if !ok {
		return
	}

	sess, err := h.engine.DeleteMessage(r.Context(), sessionID, httputil.GetUserID(r), messageID)
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, sess)
}
