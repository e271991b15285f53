package story

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"inkwell/internal/config"
	"inkwell/internal/domain"
	models "inkwell/internal/domain/models/story"
	"inkwell/internal/utils"
)

// CreateChapterRequest carries the fields for a new chapter.
type CreateChapterRequest struct {
	BookID  string `json:"book_id"`
	UserID  string `json:"-"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Validate checks the request fields.
func (r *CreateChapterRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.BookID, validation.Required),
		validation.Field(&r.Title, validation.Required, validation.Length(1, config.MaxChapterTitleLength)),
	)
}

// CreateChapter appends a chapter to the book.
func (s *Service) CreateChapter(ctx context.Context, req *CreateChapterRequest) (*models.Chapter, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	bk, err := s.GetBook(ctx, req.BookID, req.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ch := &models.Chapter{
		BookID:    bk.ID,
		StoryID:   bk.StoryID,
		Title:     req.Title,
		Content:   req.Content,
		WordCount: utils.CountWords(req.Content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.chapters.Create(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// ListChapters retrieves a book's chapters in position order.
func (s *Service) ListChapters(ctx context.Context, bookID, userID string) ([]models.Chapter, error) {
	if _, err := s.GetBook(ctx, bookID, userID); err != nil {
		return nil, err
	}
	return s.chapters.ListByBook(ctx, bookID)
}

// UpdateChapterRequest carries a partial chapter update.
type UpdateChapterRequest struct {
	ChapterID string  `json:"-"`
	UserID    string  `json:"-"`
	Title     *string `json:"title"`
	Content   *string `json:"content"`
}

// Validate checks the request fields.
func (r *UpdateChapterRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ChapterID, validation.Required),
		validation.Field(&r.Title, validation.Length(1, config.MaxChapterTitleLength)),
	)
}

// UpdateChapter applies a partial update. A content change recomputes
// the word count.
func (s *Service) UpdateChapter(ctx context.Context, req *UpdateChapterRequest) (*models.Chapter, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	ch, err := s.GetChapter(ctx, req.ChapterID, req.UserID)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		ch.Title = *req.Title
	}
	if req.Content != nil {
		ch.Content = *req.Content
		ch.WordCount = utils.CountWords(*req.Content)
	}
	if err := s.chapters.Update(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// DeleteChapter removes a chapter.
func (s *Service) DeleteChapter(ctx context.Context, chapterID, userID string) error {
	if _, err := s.GetChapter(ctx, chapterID, userID); err != nil {
		return err
	}
	if err := s.chapters.Delete(ctx, chapterID); err != nil {
		return err
	}
	s.logger.Info("chapter deleted", "chapter_id", chapterID, "user_id", userID)
	return nil
}
