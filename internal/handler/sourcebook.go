package handler

import (
	"log/slog"
	"net/http"

	"inkwell/internal/httputil"
	storySvc "inkwell/internal/service/story"
)

// SourcebookHandler handles sourcebook entry HTTP requests.
type SourcebookHandler struct {
	stories *storySvc.Service
	logger  *slog.Logger
}

// NewSourcebookHandler creates a sourcebook handler.
func NewSourcebookHandler(stories *storySvc.Service, logger *slog.Logger) *SourcebookHandler {
	return &SourcebookHandler{stories: stories, logger: logger}
}

// CreateEntry adds a sourcebook entry. A duplicate name within the
// story responds 409.
// POST /api/sourcebook
func (h *SourcebookHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req storySvc.CreateEntryRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}
	req.UserID = httputil.GetUserID(r)

	entry, err := h.stories.CreateEntry(r.Context(), &req)
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, entry)
}

// ListEntries lists a story's sourcebook.
// GET /api/sourcebook?story_id=:id
func (h *SourcebookHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	storyID, ok := queryID(w, r, "story_id")
	if !ok {
		return
	}

	entries, err := h.stories.ListEntries(r.Context(), storyID, httputil.GetUserID(r))
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, entries)
}

// GetEntry retrieves one sourcebook entry.
// GET /api/sourcebook/{id}
func (h *SourcebookHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.stories.GetEntry(r.Context(), entryID, httputil.GetUserID(r))
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, entry)
}

// UpdateEntry patches name, kind, or description.
// PATCH /api/sourcebook/{id}
func (h *SourcebookHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	entryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req storySvc.UpdateEntryRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}
	req.EntryID = entryID
	req.UserID = httputil.GetUserID(r)

	entry, err := h.stories.UpdateEntry(r.Context(), &req)
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, entry)
}

// DeleteEntry removes a sourcebook entry.
// DELETE /api/sourcebook/{id}
func (h *SourcebookHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	entryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.stories.DeleteEntry(r.Context(), entryID, httputil.GetUserID(r)); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
