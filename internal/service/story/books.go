package story

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"inkwell/internal/config"
	"inkwell/internal/domain"
	models "inkwell/internal/domain/models/story"
)

// CreateBookRequest carries the fields for a new book.
type CreateBookRequest struct {
	StoryID string `json:"story_id"`
	UserID  string `json:"-"`
	Title   string `json:"title"`
}

// Validate checks the request fields.
func (r *CreateBookRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.StoryID, validation.Required),
		validation.Field(&r.Title, validation.Required, validation.Length(1, config.MaxChapterTitleLength)),
	)
}

// CreateBook appends a book to the story.
func (s *Service) CreateBook(ctx context.Context, req *CreateBookRequest) (*models.Book, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := s.ensureOwner(ctx, req.StoryID, req.UserID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	bk := &models.Book{StoryID: req.StoryID, Title: req.Title, CreatedAt: now, UpdatedAt: now}
	if err := s.books.Create(ctx, bk); err != nil {
		return nil, err
	}
	return bk, nil
}

// GetBook retrieves one book scoped to the owning user.
func (s *Service) GetBook(ctx context.Context, bookID, userID string) (*models.Book, error) {
	bk, err := s.books.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureOwner(ctx, bk.StoryID, userID); err != nil {
		return nil, err
	}
	return bk, nil
}

// ListBooks retrieves a story's books in position order.
func (s *Service) ListBooks(ctx context.Context, storyID, userID string) ([]models.Book, error) {
	if err := s.ensureOwner(ctx, storyID, userID); err != nil {
		return nil, err
	}
	return s.books.ListByStory(ctx, storyID)
}

// UpdateBookRequest carries a partial book update.
type UpdateBookRequest struct {
	BookID string  `json:"-"`
	UserID string  `json:"-"`
	Title  *string `json:"title"`
}

// Validate checks the request fields.
func (r *UpdateBookRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.BookID, validation.Required),
		validation.Field(&r.Title, validation.Length(1, config.MaxChapterTitleLength)),
	)
}

// UpdateBook applies a partial update to the book row.
func (s *Service) UpdateBook(ctx context.Context, req *UpdateBookRequest) (*models.Book, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	bk, err := s.GetBook(ctx, req.BookID, req.UserID)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		bk.Title = *req.Title
	}
	if err := s.books.Update(ctx, bk); err != nil {
		return nil, err
	}
	return bk, nil
}

// DeleteBook removes a book and, through the schema, its chapters.
func (s *Service) DeleteBook(ctx context.Context, bookID, userID string) error {
	if _, err := s.GetBook(ctx, bookID, userID); err != nil {
		return err
	}
	if err := s.books.Delete(ctx, bookID); err != nil {
		return err
	}
	s.logger.Info("book deleted", "book_id", bookID, "user_id", userID)
	return nil
}
