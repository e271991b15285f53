package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/story"
	storyRepo "inkwell/internal/domain/repositories/story"
)

// PostgresStoryRepository implements the StoryRepository interface.
type PostgresStoryRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewStoryRepository creates a new story repository.
func NewStoryRepository(config *RepositoryConfig) storyRepo.StoryRepository {
	return &PostgresStoryRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a new story.
func (r *PostgresStoryRepository) Create(ctx context.Context, s *story.Story) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, title, synopsis, system_prompt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, r.tables.Stories)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		s.UserID,
		s.Title,
		s.Synopsis,
		s.SystemPrompt,
		s.CreatedAt,
		s.UpdatedAt,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create story: %w", err)
	}
	return nil
}

// Get retrieves a story by ID scoped to a user.
func (r *PostgresStoryRepository) Get(ctx context.Context, storyID, userID string) (*story.Story, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, synopsis, system_prompt, created_at, updated_at
		FROM %s
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, r.tables.Stories)

	var s story.Story
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, storyID, userID).Scan(
		&s.ID,
		&s.UserID,
		&s.Title,
		&s.Synopsis,
		&s.SystemPrompt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("story %s: %w", storyID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get story: %w", err)
	}
	return &s, nil
}

// List retrieves all stories for a user, newest first.
func (r *PostgresStoryRepository) List(ctx context.Context, userID string) ([]story.Story, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, synopsis, system_prompt, created_at, updated_at
		FROM %s
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY updated_at DESC
	`, r.tables.Stories)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	stories := []story.Story{}
	for rows.Next() {
		var s story.Story
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.Title,
			&s.Synopsis,
			&s.SystemPrompt,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		stories = append(stories, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	return stories, nil
}

// Update persists title, synopsis and system_prompt.
func (r *PostgresStoryRepository) Update(ctx context.Context, s *story.Story) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, synopsis = $2, system_prompt = $3, updated_at = $4
		WHERE id = $5 AND user_id = $6 AND deleted_at IS NULL
	`, r.tables.Stories)

	s.UpdatedAt = time.Now().UTC()
	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query,
		s.Title,
		s.Synopsis,
		s.SystemPrompt,
		s.UpdatedAt,
		s.ID,
		s.UserID,
	)
	if err != nil {
		return fmt.Errorf("update story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("story %s: %w", s.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete soft-deletes a story.
func (r *PostgresStoryRepository) Delete(ctx context.Context, storyID, userID string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = $1
		WHERE id = $2 AND user_id = $3 AND deleted_at IS NULL
	`, r.tables.Stories)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, time.Now().UTC(), storyID, userID)
	if err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("story %s: %w", storyID, domain.ErrNotFound)
	}
	return nil
}

// GetState assembles the full story view in one round per table.
func (r *PostgresStoryRepository) GetState(ctx context.Context, storyID, userID string) (*story.State, error) {
	s, err := r.Get(ctx, storyID, userID)
	if err != nil {
		return nil, err
	}

	executor := GetExecutor(ctx, r.pool)
	state := &story.State{Story: s, Books: []story.Book{}, Chapters: []story.Chapter{}, Sourcebook: []story.SourcebookEntry{}}

	bookQuery := fmt.Sprintf(`
		SELECT id, story_id, title, position, created_at, updated_at
		FROM %s
		WHERE story_id = $1
		ORDER BY position
	`, r.tables.Books)
	rows, err := executor.Query(ctx, bookQuery, storyID)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b story.Book
		if err := rows.Scan(&b.ID, &b.StoryID, &b.Title, &b.Position, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		state.Books = append(state.Books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	chapterQuery := fmt.Sprintf(`
		SELECT c.id, c.book_id, c.story_id, c.title, c.content, c.position, c.word_count, c.created_at, c.updated_at
		FROM %s c
		JOIN %s b ON c.book_id = b.id
		WHERE c.story_id = $1
		ORDER BY b.position, c.position
	`, r.tables.Chapters, r.tables.Books)
	rows, err = executor.Query(ctx, chapterQuery, storyID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c story.Chapter
		if err := rows.Scan(&c.ID, &c.BookID, &c.StoryID, &c.Title, &c.Content, &c.Position, &c.WordCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		state.Chapters = append(state.Chapters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}

	entryQuery := fmt.Sprintf(`
		SELECT id, story_id, name, kind, description, created_at, updated_at
		FROM %s
		WHERE story_id = $1
		ORDER BY name
	`, r.tables.Sourcebook)
	rows, err = executor.Query(ctx, entryQuery, storyID)
	if err != nil {
		return nil, fmt.Errorf("list sourcebook entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e story.SourcebookEntry
		if err := rows.Scan(&e.ID, &e.StoryID, &e.Name, &e.Kind, &e.Description, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sourcebook entry: %w", err)
		}
		state.Sourcebook = append(state.Sourcebook, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sourcebook entries: %w", err)
	}

	return state, nil
}
