package handler

import (
	"context"
	"log/slog"
	"net/http"

	"inkwell/internal/engine/suggest"
	"inkwell/internal/httputil"
)

// SuggestEngine is the slice of the continuation engine the handler
// drives.
type SuggestEngine interface {
	Trigger(ctx context.Context, req *suggest.TriggerRequest) (*suggest.State, error)
	Accept(ctx context.Context, req *suggest.AcceptRequest) (*suggest.State, error)
	Keyboard(ctx context.Context, req *suggest.KeyboardRequest) (*suggest.State, error)
	Get(chapterID string) *suggest.State
}

// SuggestionHandler handles the continuation suggestion surface.
type SuggestionHandler struct {
	engine SuggestEngine
	logger *slog.Logger
}

// NewSuggestionHandler creates a suggestion handler.
func NewSuggestionHandler(engine SuggestEngine, logger *slog.Logger) *SuggestionHandler {
	return &SuggestionHandler{engine: engine, logger: logger}
}

type triggerRequest struct {
	Cursor  *int    `json:"cursor"`
	Mode    string  `json:"mode"`
	Content *string `json:"content"`
}

// Trigger opens a suggestion session at the cursor and starts
// generating candidates. The response snapshot reports generating; the
// client polls GET until the continuations land. A generation already
// in flight responds 409.
// POST /api/chapters/{id}/suggestions
func (h *SuggestionHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	chapterID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	// The body is optional; an empty one triggers at the end of the
	// stored content in structured mode.
	var body triggerRequest
	if r.ContentLength != 0 {
		if err := httputil.ParseJSON(w, r, &body); err != nil {
			httputil.RespondDomainError(w, h.logger, err)
			return
		}
	}

	state, err := h.engine.Trigger(r.Context(), &suggest.TriggerRequest{
		ChapterID:       chapterID,
		UserID:          httputil.GetUserID(r),
		Cursor:          body.Cursor,
		Mode:            body.Mode,
		ContentOverride: body.Content,
	})
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusAccepted, state)
}

// GetState reports the chapter's suggestion session: cursor, candidate
// continuations, and undo depth. A chapter with no session reports
// inactive.
// GET /api/chapters/{id}/suggestions
func (h *SuggestionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	chapterID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	httputil.RespondJSON(w, http.StatusOK, h.engine.Get(chapterID))
}

type acceptRequest struct {
	Text string `json:"text"`
}

// Accept splices a continuation into the chapter at the session cursor
// and starts generating from the new position. Empty text dismisses
// the session without touching the document.
// POST /api/chapters/{id}/suggestions/accept
func (h *SuggestionHandler) Accept(w http.ResponseWriter, r *http.Request) {
	chapterID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var body acceptRequest
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	state, err := h.engine.Accept(r.Context(), &suggest.AcceptRequest{
		ChapterID: chapterID,
		UserID:    httputil.GetUserID(r),
		Text:      body.Text,
	})
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, state)
}

type keyboardRequest struct {
	Action string `json:"action"`
	Mode   string `json:"mode"`
}

// Keyboard dispatches a keystroke-level command: trigger, chooseLeft,
// chooseRight, regenerate, undo, or exit.
// POST /api/chapters/{id}/suggestions/keyboard
func (h *SuggestionHandler) Keyboard(w http.ResponseWriter, r *http.Request) {
	chapterID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var body keyboardRequest
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	state, err := h.engine.Keyboard(r.Context(), &suggest.KeyboardRequest{
		ChapterID: chapterID,
		UserID:    httputil.GetUserID(r),
		Action:    body.Action,
		Mode:      body.Mode,
	})
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, state)
}
