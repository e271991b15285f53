package chat

import (
	"time"

	"github.com/google/uuid"
)

// Session is a persistent multi-turn conversation scoped to a story.
type Session struct {
	ID      string `json:"id" db:"id"`
	StoryID string `json:"story_id" db:"story_id"`
	UserID  string `json:"user_id" db:"user_id"`
	Name    string `json:"name" db:"name"`

	// Messages is the ordered history. Stored as a JSONB document; the
	// engine mutates it in memory and the autosave task flushes it.
	Messages []Message `json:"messages" db:"messages"`

	// SystemPrompt overrides the role default when non-empty.
	SystemPrompt string `json:"system_prompt,omitempty" db:"system_prompt"`

	// Incognito sessions live only in memory and are never persisted.
	Incognito bool `json:"incognito" db:"-"`

	// AllowWebSearch gates whether the web_search tool is offered to the
	// model for turns in this session.
	AllowWebSearch bool `json:"allow_web_search" db:"allow_web_search"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewSession creates a session with a fresh id and empty history.
func NewSession(storyID, userID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		StoryID:   storyID,
		UserID:    userID,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LastUserIndex returns the index of the most recent user message, or -1
// when the history contains none.
func (s *Session) LastUserIndex() int {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// MessageIndex returns the position of the message with the given id, or
// -1 when absent.
func (s *Session) MessageIndex(id string) int {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// TitleSource returns the text a title generator should summarize: the
// first user message, falling back to the first model reply.
func (s *Session) TitleSource() string {
	for i := range s.Messages {
		if s.Messages[i].Role == RoleUser && s.Messages[i].Text != "" {
			return s.Messages[i].Text
		}
	}
	for i := range s.Messages {
		if s.Messages[i].Role == RoleModel && s.Messages[i].Text != "" {
			return s.Messages[i].Text
		}
	}
	return ""
}
