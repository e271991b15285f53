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

// CreateEntryRequest carries the fields for a new sourcebook entry.
type CreateEntryRequest struct {
	StoryID     string `json:"story_id"`
	UserID      string `json:"-"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// Validate checks the request fields.
func (r *CreateEntryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.StoryID, validation.Required),
		validation.Field(&r.Name, validation.Required, validation.Length(1, config.MaxEntryNameLength)),
	)
}

// CreateEntry adds a sourcebook entry to the story. Entry names are
// unique per story; a duplicate returns domain.ErrConflict.
func (s *Service) CreateEntry(ctx context.Context, req *CreateEntryRequest) (*models.SourcebookEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := s.ensureOwner(ctx, req.StoryID, req.UserID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	en := &models.SourcebookEntry{
		StoryID:     req.StoryID,
		Name:        req.Name,
		Kind:        req.Kind,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.sourcebook.Create(ctx, en); err != nil {
		return nil, err
	}
	return en, nil
}

// GetEntry retrieves one entry scoped to the owning user.
func (s *Service) GetEntry(ctx context.Context, entryID, userID string) (*models.SourcebookEntry, error) {
	en, err := s.sourcebook.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureOwner(ctx, en.StoryID, userID); err != nil {
		return nil, err
	}
	return en, nil
}

// ListEntries retrieves a story's sourcebook entries by name.
func (s *Service) ListEntries(ctx context.Context, storyID, userID string) ([]models.SourcebookEntry, error) {
	if err := s.ensureOwner(ctx, storyID, userID); err != nil {
		return nil, err
	}
	return s.sourcebook.ListByStory(ctx, storyID)
}

// UpdateEntryRequest carries a partial entry update.
type UpdateEntryRequest struct {
	EntryID     string  `json:"-"`
	UserID      string  `json:"-"`
	Name        *string `json:"name"`
	Kind        *string `json:"kind"`
	Description *string `json:"description"`
}

// Validate checks the request fields.
func (r *UpdateEntryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EntryID, validation.Required),
		validation.Field(&r.Name, validation.Length(1, config.MaxEntryNameLength)),
	)
}

// UpdateEntry applies a partial update to the entry.
func (s *Service) UpdateEntry(ctx context.Context, req *UpdateEntryRequest) (*models.SourcebookEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	en, err := s.GetEntry(ctx, req.EntryID, req.UserID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		en.Name = *req.Name
	}
	if req.Kind != nil {
		en.Kind = *req.Kind
	}
	if req.Description != nil {
		en.Description = *req.Description
	}
	if err := s.sourcebook.Update(ctx, en); err != nil {
		return nil, err
	}
	return en, nil
}

// DeleteEntry removes an entry.
func (s *Service) DeleteEntry(ctx context.Context, entryID, userID string) error {
	if _, err := s.GetEntry(ctx, entryID, userID); err != nil {
		return err
	}
	if err := s.sourcebook.Delete(ctx, entryID); err != nil {
		return err
	}
	s.logger.Info("sourcebook entry deleted", "entry_id", entryID, "user_id", userID)
	return nil
}
