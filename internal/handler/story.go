package handler

import (
	"log/slog"
	"net/http"

	"inkwell/internal/httputil"
	storySvc "inkwell/internal/service/story"
)

// StoryHandler handles story HTTP requests.
type StoryHandler struct {
	stories *storySvc.Service
	logger  *slog.Logger
}

// NewStoryHandler creates a story handler.
func NewStoryHandler(stories *storySvc.Service, logger *slog.Logger) *StoryHandler {
	return &StoryHandler{stories: stories, logger: logger}
}

// CreateStory creates a story seeded with its first book and chapter.
// POST /api/stories
func (h *StoryHandler) CreateStory(w http.ResponseWriter, r *http.Request) {
	var req storySvc.CreateStoryRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}
	req.UserID = httputil.GetUserID(r)

	story, err := h.stories.CreateStory(r.Context(), &req)
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, story)
}

// ListStories lists the caller's stories.
// GET /api/stories
func (h *StoryHandler) ListStories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.stories.ListStories(r.Context(), httputil.GetUserID(r))
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, stories)
}

// GetStory retrieves one story.
// GET /api/stories/{id}
func (h *StoryHandler) GetStory(w http.ResponseWriter, r *http.Request) {
	storyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	story, err := h.stories.GetStory(r.Context(), storyID, httputil.GetUserID(r))
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, story)
}

// GetState retrieves the full story state: the story with its books,
// chapters, and sourcebook entries.
// GET /api/stories/{id}/state
func (h *StoryHandler) GetState(w http.ResponseWriter, r *http.Request) {
	storyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	state, err := h.stories.State(r.Context(), storyID, httputil.GetUserID(r))
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, state)
}

// UpdateStory patches title, synopsis, or system prompt.
// PATCH /api/stories/{id}
func (h *StoryHandler) UpdateStory(w http.ResponseWriter, r *http.Request) {
	storyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req storySvc.UpdateStoryRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}
	req.StoryID = storyID
	req.UserID = httputil.GetUserID(r)

	story, err := h.stories.UpdateStory(r.Context(), &req)
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, story)
}

// DeleteStory soft-deletes a story.
// DELETE /api/stories/{id}
func (h *StoryHandler) DeleteStory(w http.ResponseWriter, r *http.Request) {
	storyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.stories.DeleteStory(r.Context(), storyID, httputil.GetUserID(r)); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
