// Package session manages chat sessions: creation, listing, renames,
// deletion, and the persistence boundary the turn engine saves through.
// Incognito sessions route to an in-memory store and never touch the
// database; ordinary sessions live in postgres. Unnamed sessions are
// titled automatically after their first completed exchange.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"inkwell/internal/config"
	"inkwell/internal/domain"
	"inkwell/internal/domain/models/chat"
	chatRepo "inkwell/internal/domain/repositories/chat"
	storyRepo "inkwell/internal/domain/repositories/story"
)

// Service owns session lifecycle. It implements turn.Store.
type Service struct {
	repo    chatRepo.SessionRepository
	memory  *MemoryStore
	stories storyRepo.StoryRepository
	titler  *Titler
	logger  *slog.Logger

	mu      sync.Mutex
	titling map[string]bool
}

// NewService creates the session service.
func NewService(
	repo chatRepo.SessionRepository,
	memory *MemoryStore,
	stories storyRepo.StoryRepository,
	titler *Titler,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:    repo,
		memory:  memory,
		stories: stories,
		titler:  titler,
		logger:  logger,
		titling: make(map[string]bool),
	}
}

// CreateRequest carries the fields for a new session.
type CreateRequest struct {
	StoryID        string `json:"story_id"`
	UserID         string `json:"-"`
	Name           string `json:"name"`
	SystemPrompt   string `json:"system_prompt"`
	Incognito      bool   `json:"incognito"`
	AllowWebSearch bool   `json:"allow_web_search"`
}

// Validate checks the request fields.
func (r *CreateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.StoryID, validation.Required),
		validation.Field(&r.Name, validation.Length(0, config.MaxSessionNameLength)),
	)
}

// Create starts a session on a story the user owns. Sessions created
// without a name are titled automatically after the first exchange.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*chat.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if _, err := s.stories.Get(ctx, req.StoryID, req.UserID); err != nil {
		return nil, err
	}

	sess := chat.NewSession(req.StoryID, req.UserID)
	sess.Name = req.Name
	sess.SystemPrompt = req.SystemPrompt
	sess.Incognito = req.Incognito
	sess.AllowWebSearch = req.AllowWebSearch

	if sess.Incognito {
		s.memory.Put(sess)
	} else if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info("session created",
		"session_id", sess.ID,
		"story_id", sess.StoryID,
		"incognito", sess.Incognito,
	)
	return sess, nil
}

// Get retrieves a session from whichever store holds it. Implements
// turn.Store.
func (s *Service) Get(ctx context.Context, sessionID, userID string) (*chat.Session, error) {
	if sess, ok := s.memory.Get(sessionID, userID); ok {
		return sess, nil
	}
	return s.repo.Get(ctx, sessionID, userID)
}

// ListByStory returns the user's sessions for a story, incognito ones
// included, newest first.
func (s *Service) ListByStory(ctx context.Context, storyID, userID string) ([]chat.Session, error) {
	persisted, err := s.repo.ListByStory(ctx, storyID, userID)
	if err != nil {
		return nil, err
	}
	all := append(s.memory.ListByStory(storyID, userID), persisted...)
	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})
	return all, nil
}

// UpdateRequest carries a partial session update. Nil fields are left
// untouched.
type UpdateRequest struct {
	SessionID      string  `json:"-"`
	UserID         string  `json:"-"`
	Name           *string `json:"name"`
	SystemPrompt   *string `json:"system_prompt"`
	AllowWebSearch *bool   `json:"allow_web_search"`
}

// Validate checks the request fields.
func (r *UpdateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SessionID, validation.Required),
		validation.Field(&r.Name, validation.Length(1, config.MaxSessionNameLength)),
	)
}

// Update applies a partial update to the session.
func (s *Service) Update(ctx context.Context, req *UpdateRequest) (*chat.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	sess, err := s.Get(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		sess.Name = *req.Name
	}
	if req.SystemPrompt != nil {
		sess.SystemPrompt = *req.SystemPrompt
	}
	if req.AllowWebSearch != nil {
		sess.AllowWebSearch = *req.AllowWebSearch
	}
	sess.UpdatedAt = time.Now().UTC()

	if sess.Incognito {
		s.memory.Put(sess)
		return sess, nil
	}
	if err := s.repo.Update(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete removes a session from whichever store holds it.
func (s *Service) Delete(ctx context.Context, sessionID, userID string) error {
	if s.memory.Delete(sessionID, userID) {
		s.logger.Info("incognito session deleted", "session_id", sessionID)
		return nil
	}
	if err := s.repo.Delete(ctx, sessionID, userID); err != nil {
		return err
	}
	s.logger.Info("session deleted", "session_id", sessionID)
	return nil
}

// SaveMessages flushes the session's message history and, when the
// session is still unnamed after its first completed exchange, kicks
// off auto-titling. Implements turn.Store.
func (s *Service) SaveMessages(ctx context.Context, sess *chat.Session) error {
	if sess.Incognito {
		s.memory.Put(sess)
	} else if err := s.repo.UpdateMessages(ctx, sess.ID, sess.UserID, sess.Messages); err != nil {
		return err
	}

	s.maybeAutoTitle(sess)
	return nil
}

func hasModelReply(sess *chat.Session) bool {
	for i := range sess.Messages {
		if sess.Messages[i].Role == chat.RoleModel {
			return true
		}
	}
	return false
}

// maybeAutoTitle names the session in the background. At most one
// titling run per session; the rename is skipped if the user names the
// session first.
func (s *Service) maybeAutoTitle(sess *chat.Session) {
	if sess.Name != "" || !hasModelReply(sess) {
		return
	}
	source := sess.TitleSource()
	if source == "" {
		return
	}

	s.mu.Lock()
	if s.titling[sess.ID] {
		s.mu.Unlock()
		return
	}
	s.titling[sess.ID] = true
	s.mu.Unlock()

	sessionID, userID := sess.ID, sess.UserID
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.titling, sessionID)
			s.mu.Unlock()
		}()

		name, err := s.titler.Title(context.Background(), source)
		if err != nil {
			s.logger.Warn("session auto-title failed", "session_id", sessionID, "error", err)
			return
		}
		if err := s.applyTitle(context.Background(), sessionID, userID, name); err != nil {
			s.logger.Warn("session auto-title apply failed", "session_id", sessionID, "error", err)
			return
		}
		s.logger.Info("session auto-titled", "session_id", sessionID, "name", name)
	}()
}

// applyTitle renames the session unless it picked up a name in the
// meantime.
func (s *Service) applyTitle(ctx context.Context, sessionID, userID, name string) error {
	sess, err := s.Get(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if sess.Name != "" {
		return nil
	}
	sess.Name = name
	sess.UpdatedAt = time.Now().UTC()

	if sess.Incognito {
		s.memory.Put(sess)
		return nil
	}
	return s.repo.Update(ctx, sess)
}
