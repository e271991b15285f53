package handler

import (
	"log/slog"
	"net/http"

	"inkwell/internal/httputil"
	storySvc "inkwell/internal/service/story"
)

// ChapterHandler handles chapter HTTP requests.
type ChapterHandler struct {
	stories *storySvc.Service
	logger  *slog.Logger
}

// NewChapterHandler creates a chapter handler.
func NewChapterHandler(stories *storySvc.Service, logger *slog.Logger) *ChapterHandler {
	return &ChapterHandler{stories: stories, logger: logger}
}

// CreateChapter appends a chapter to a book.
// POST /api/chapters
func (h *ChapterHandler) CreateChapter(w http.ResponseWriter, r *http.Request) {
	var req storySvc.CreateChapterRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}
	req.UserID = httputil.GetUserID(r)

	chapter, err := h.stories.CreateChapter(r.Context(), &req)
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, chapter)
}

// ListChapters lists a book's chapters in position order.
// GET /api/chapters?book_id=:id
func (h *ChapterHandler) ListChapters(w http.ResponseWriter, r *http.Request) {
	bookID, ok := queryID(w, r, "book_id")
	if !ok {
		return
	}

	chapters, err := h.stories.ListChapters(r.Context(), bookID, httputil.GetUserID(r))
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, chapters)
}

// GetChapter retrieves one chapter with content.
// GET /api/chapters/{id}
func (h *ChapterHandler) GetChapter(w http.ResponseWriter, r *http.Request) {
	chapterID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	chapter, err := h.stories.GetChapter(r.Context(), chapterID, httputil.GetUserID(r))
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, chapter)
}

// UpdateChapter patches title or content. A content patch recomputes
// the word count; the last writer wins.
// PATCH /api/chapters/{id}
func (h *ChapterHandler) UpdateChapter(w http.ResponseWriter, r *http.Request) {
	chapterID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req storySvc.UpdateChapterRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}
	req.ChapterID = chapterID
	req.UserID = httputil.GetUserID(r)

	chapter, err := h.stories.UpdateChapter(r.Context(), &req)
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, chapter)
}

// DeleteChapter removes a chapter.
// DELETE /api/chapters/{id}
func (h *ChapterHandler) DeleteChapter(w http.ResponseWriter, r *http.Request) {
	chapterID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.stories.DeleteChapter(r.Context(), chapterID, httputil.GetUserID(r)); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
