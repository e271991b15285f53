package chat

import (
	"context"

	"inkwell/internal/domain/models/chat"
)

// SessionRepository defines data access for chat sessions. Incognito
// sessions never reach this layer; the in-memory store handles them.
type SessionRepository interface {
	// Create inserts a new session.
	Create(ctx context.Context, session *chat.Session) error

	// Get retrieves a session by ID scoped to a user.
	// Returns domain.ErrNotFound if not found.
	Get(ctx context.Context, sessionID, userID string) (*chat.Session, error)

	// ListByStory retrieves all sessions for a story, newest first.
	// Returns an empty slice when the story has none.
	ListByStory(ctx context.Context, storyID, userID string) ([]chat.Session, error)

	// Update persists a session's mutable fields (name, messages,
	// system_prompt, allow_web_search, updated_at).
	// Returns domain.ErrNotFound if not found.
	Update(ctx context.Context, session *chat.Session) error

	// UpdateMessages persists only the message history. Used by the
	// autosave task so a rename racing a turn cannot clobber messages.
	// Returns domain.ErrNotFound if the session does not exist.
	UpdateMessages(ctx context.Context, sessionID, userID string, messages []chat.Message) error

	// Delete removes a session.
	// Returns domain.ErrNotFound if not found.
	Delete(ctx context.Context, sessionID, userID string) error
}
