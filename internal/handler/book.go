package handler

import (
	"log/slog"
	"net/http"

	"inkwell/internal/httputil"
	storySvc "inkwell/internal/service/story"
)

// BookHandler handles book HTTP requests.
type BookHandler struct {
	stories *storySvc.Service
	logger  *slog.Logger
}

// NewBookHandler creates a book handler.
func NewBookHandler(stories *storySvc.Service, logger *slog.Logger) *BookHandler {
	return &BookHandler{stories: stories, logger: logger}
}

// CreateBook appends a book to a story.
// POST /api/books
func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req storySvc.CreateBookRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}
	req.UserID = httputil.GetUserID(r)

	book, err := h.stories.CreateBook(r.Context(), &req)
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, book)
}

// ListBooks lists a story's books in position order.
// GET /api/books?story_id=:id
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	storyID, ok := queryID(w, r, "story_id")
	if !ok {
		return
	}

	books, err := h.stories.ListBooks(r.Context(), storyID, httputil.GetUserID(r))
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, books)
}

// GetBook retrieves one book.
// GET /api/books/{id}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	book, err := h.stories.GetBook(r.Context(), bookID, httputil.GetUserID(r))
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, book)
}

// UpdateBook patches a book's title.
// PATCH /api/books/{id}
func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req storySvc.UpdateBookRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}
	req.BookID = bookID
	req.UserID = httputil.GetUserID(r)

	book, err := h.stories.UpdateBook(r.Context(), &req)
	if err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, book)
}

// DeleteBook removes a book and its chapters.
// DELETE /api/books/{id}
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.stories.DeleteBook(r.Context(), bookID, httputil.GetUserID(r)); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
