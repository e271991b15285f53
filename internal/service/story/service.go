// Package story implements the story-tree service: CRUD over stories,
// books, chapters and the sourcebook, plus the store boundary the
// engines mutate chapters through. Child rows are not user-scoped in
// the database; every operation resolves ownership through the parent
// story before acting.
package story

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"inkwell/internal/config"
	"inkwell/internal/domain"
	models "inkwell/internal/domain/models/story"
	"inkwell/internal/domain/repositories"
	storyRepo "inkwell/internal/domain/repositories/story"
	"inkwell/internal/utils"
)

// Service owns all story-tree operations. It implements
// services.StoryStore for the engines.
type Service struct {
	stories    storyRepo.StoryRepository
	books      storyRepo.BookRepository
	chapters   storyRepo.ChapterRepository
	sourcebook storyRepo.SourcebookRepository
	tx         repositories.TransactionManager
	logger     *slog.Logger
}

// NewService creates the story service.
func NewService(
	stories storyRepo.StoryRepository,
	books storyRepo.BookRepository,
	chapters storyRepo.ChapterRepository,
	sourcebook storyRepo.SourcebookRepository,
	tx repositories.TransactionManager,
	logger *slog.Logger,
) *Service {
	return &Service{
		stories:    stories,
		books:      books,
		chapters:   chapters,
		sourcebook: sourcebook,
		tx:         tx,
		logger:     logger,
	}
}

// ensureOwner verifies the story belongs to the user. A foreign story
// reads as missing so ids cannot be probed.
func (s *Service) ensureOwner(ctx context.Context, storyID, userID string) error {
	_, err := s.stories.Get(ctx, storyID, userID)
	return err
}

// CreateStoryRequest carries the fields for a new story.
type CreateStoryRequest struct {
	UserID       string  `json:"-"`
	Title        string  `json:"title"`
	Synopsis     string  `json:"synopsis"`
	SystemPrompt *string `json:"system_prompt"`
}

// Validate checks the request fields.
func (r *CreateStoryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.Title, validation.Required, validation.Length(1, config.MaxStoryTitleLength)),
	)
}

// CreateStory creates a story together with its first book and chapter,
// so the editor has something to open. The three inserts commit or roll
// back as one.
func (s *Service) CreateStory(ctx context.Context, req *CreateStoryRequest) (*models.Story, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	now := time.Now().UTC()
	st := &models.Story{
		UserID:       req.UserID,
		Title:        req.Title,
		Synopsis:     req.Synopsis,
		SystemPrompt: req.SystemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.tx.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.stories.Create(txCtx, st); err != nil {
			return err
		}
		bk := &models.Book{StoryID: st.ID, Title: "Book One", CreatedAt: now, UpdatedAt: now}
		if err := s.books.Create(txCtx, bk); err != nil {
			return err
		}
		ch := &models.Chapter{
			BookID:    bk.ID,
			StoryID:   st.ID,
			Title:     "Chapter One",
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.chapters.Create(txCtx, ch)
	})
	if err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}

	s.logger.Info("story created", "story_id", st.ID, "user_id", req.UserID)
	return st, nil
}

// GetStory retrieves one story.
func (s *Service) GetStory(ctx context.Context, storyID, userID string) (*models.Story, error) {
	return s.stories.Get(ctx, storyID, userID)
}

// ListStories retrieves the user's stories, newest first.
func (s *Service) ListStories(ctx context.Context, userID string) ([]models.Story, error) {
	return s.stories.List(ctx, userID)
}

// UpdateStoryRequest carries a partial story update. Nil fields are
// left untouched.
type UpdateStoryRequest struct {
	StoryID      string  `json:"-"`
	UserID       string  `json:"-"`
	Title        *string `json:"title"`
	Synopsis     *string `json:"synopsis"`
	SystemPrompt *string `json:"system_prompt"`
}

// Validate checks the request fields.
func (r *UpdateStoryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.StoryID, validation.Required),
		validation.Field(&r.Title, validation.Length(1, config.MaxStoryTitleLength)),
	)
}

// UpdateStory applies a partial update to the story row.
func (s *Service) UpdateStory(ctx context.Context, req *UpdateStoryRequest) (*models.Story, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	st, err := s.stories.Get(ctx, req.StoryID, req.UserID)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		st.Title = *req.Title
	}
	if req.Synopsis != nil {
		st.Synopsis = *req.Synopsis
	}
	if req.SystemPrompt != nil {
		st.SystemPrompt = req.SystemPrompt
	}
	if err := s.stories.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// DeleteStory soft-deletes a story. Books, chapters and sourcebook rows
// stay behind but become unreachable through the story.
func (s *Service) DeleteStory(ctx context.Context, storyID, userID string) error {
	if err := s.stories.Delete(ctx, storyID, userID); err != nil {
		return err
	}
	s.logger.Info("story deleted", "story_id", storyID, "user_id", userID)
	return nil
}

// State assembles the full story view for the workspace: the story row
// plus books, chapters and sourcebook entries in display order.
func (s *Service) State(ctx context.Context, storyID, userID string) (*models.State, error) {
	return s.stories.GetState(ctx, storyID, userID)
}

// GetChapter retrieves one chapter scoped to the owning user.
// Implements services.StoryStore.
func (s *Service) GetChapter(ctx context.Context, chapterID, userID string) (*models.Chapter, error) {
	ch, err := s.chapters.Get(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureOwner(ctx, ch.StoryID, userID); err != nil {
		return nil, err
	}
	return ch, nil
}

// UpdateChapterContent overwrites a chapter's content and recomputes
// its word count. Last writer wins. Implements services.StoryStore.
func (s *Service) UpdateChapterContent(ctx context.Context, chapterID, userID, content string) (*models.Chapter, error) {
	ch, err := s.GetChapter(ctx, chapterID, userID)
	if err != nil {
		return nil, err
	}

	words := utils.CountWords(content)
	if err := s.chapters.UpdateContent(ctx, chapterID, content, words); err != nil {
		return nil, err
	}

	ch.Content = content
	ch.WordCount = words
	ch.UpdatedAt = time.Now().UTC()
	s.logger.Debug("chapter content updated",
		"chapter_id", chapterID,
		"words", words,
	)
	return ch, nil
}

// Refresh rereads the full story state. Implements services.StoryStore.
func (s *Service) Refresh(ctx context.Context, storyID, userID string) (*models.State, error) {
	return s.stories.GetState(ctx, storyID, userID)
}
