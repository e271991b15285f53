package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/chat"
	chatRepo "inkwell/internal/domain/repositories/chat"
)

// PostgresSessionRepository implements the SessionRepository interface.
// Message history lives in a JSONB column; the engine owns ordering and
// shape, the database just stores the document.
type PostgresSessionRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewSessionRepository creates a new chat session repository.
func NewSessionRepository(config *RepositoryConfig) chatRepo.SessionRepository {
	return &PostgresSessionRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a new session. The caller mints the id so incognito
// and persistent sessions share one id scheme.
func (r *PostgresSessionRepository) Create(ctx context.Context, session *chat.Session) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, story_id, user_id, name, messages, system_prompt, allow_web_search, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.tables.Sessions)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		session.ID,
		session.StoryID,
		session.UserID,
		session.Name,
		session.Messages, // pgx encodes the slice to JSONB
		session.SystemPrompt,
		session.AllowWebSearch,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("session %s already exists", session.ID),
				ResourceType: "session",
				ResourceID:   session.ID,
			}
		}
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("story %s: %w", session.StoryID, domain.ErrNotFound)
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID scoped to a user.
func (r *PostgresSessionRepository) Get(ctx context.Context, sessionID, userID string) (*chat.Session, error) {
	query := fmt.Sprintf(`
		SELECT id, story_id, user_id, name, messages, system_prompt, allow_web_search, created_at, updated_at
		FROM %s
		WHERE id = $1 AND user_id = $2
	`, r.tables.Sessions)

	var s chat.Session
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, sessionID, userID).Scan(
		&s.ID,
		&s.StoryID,
		&s.UserID,
		&s.Name,
		&s.Messages, // pgx decodes the JSONB document
		&s.SystemPrompt,
		&s.AllowWebSearch,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if s.Messages == nil {
		s.Messages = []chat.Message{}
	}
	return &s, nil
}

// ListByStory retrieves all sessions for a story, newest first. The
// messages column stays in the database; list views only need the
// metadata.
func (r *PostgresSessionRepository) ListByStory(ctx context.Context, storyID, userID string) ([]chat.Session, error) {
	query := fmt.Sprintf(`
		SELECT id, story_id, user_id, name, system_prompt, allow_web_search, created_at, updated_at
		FROM %s
		WHERE story_id = $1 AND user_id = $2
		ORDER BY updated_at DESC
	`, r.tables.Sessions)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, storyID, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []chat.Session{}
	for rows.Next() {
		var s chat.Session
		if err := rows.Scan(
			&s.ID,
			&s.StoryID,
			&s.UserID,
			&s.Name,
			&s.SystemPrompt,
			&s.AllowWebSearch,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Messages = []chat.Message{}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Update persists the session's mutable fields.
func (r *PostgresSessionRepository) Update(ctx context.Context, session *chat.Session) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, messages = $2, system_prompt = $3, allow_web_search = $4, updated_at = $5
		WHERE id = $6 AND user_id = $7
	`, r.tables.Sessions)

	session.UpdatedAt = time.Now().UTC()
	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query,
		session.Name,
		session.Messages,
		session.SystemPrompt,
		session.AllowWebSearch,
		session.UpdatedAt,
		session.ID,
		session.UserID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", session.ID, domain.ErrNotFound)
	}
	return nil
}

// UpdateMessages persists only the message history, so a concurrent
// rename cannot clobber messages and vice versa.
func (r *PostgresSessionRepository) UpdateMessages(ctx context.Context, sessionID, userID string, messages []chat.Message) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET messages = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4
	`, r.tables.Sessions)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, messages, time.Now().UTC(), sessionID, userID)
	if err != nil {
		return fmt.Errorf("update session messages: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a session.
func (r *PostgresSessionRepository) Delete(ctx context.Context, sessionID, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, r.tables.Sessions)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, sessionID, userID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	return nil
}
