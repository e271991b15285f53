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

// PostgresSourcebookRepository implements the SourcebookRepository
// interface.
type PostgresSourcebookRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewSourcebookRepository creates a new sourcebook repository.
func NewSourcebookRepository(config *RepositoryConfig) storyRepo.SourcebookRepository {
	return &PostgresSourcebookRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a new entry.
func (r *PostgresSourcebookRepository) Create(ctx context.Context, e *story.SourcebookEntry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (story_id, name, kind, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, r.tables.Sourcebook)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		e.StoryID,
		e.Name,
		e.Kind,
		e.Description,
		e.CreatedAt,
		e.UpdatedAt,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)

	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("sourcebook entry '%s' already exists in this story", e.Name),
				ResourceType: "sourcebook_entry",
			}
		}
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("story %s: %w", e.StoryID, domain.ErrNotFound)
		}
		return fmt.Errorf("create sourcebook entry: %w", err)
	}
	return nil
}

// Get retrieves an entry by ID.
func (r *PostgresSourcebookRepository) Get(ctx context.Context, entryID string) (*story.SourcebookEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, story_id, name, kind, description, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, r.tables.Sourcebook)

	var e story.SourcebookEntry
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, entryID).Scan(
		&e.ID,
		&e.StoryID,
		&e.Name,
		&e.Kind,
		&e.Description,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("sourcebook entry %s: %w", entryID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get sourcebook entry: %w", err)
	}
	return &e, nil
}

// ListByStory retrieves a story's entries ordered by name.
func (r *PostgresSourcebookRepository) ListByStory(ctx context.Context, storyID string) ([]story.SourcebookEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, story_id, name, kind, description, created_at, updated_at
		FROM %s
		WHERE story_id = $1
		ORDER BY name
	`, r.tables.Sourcebook)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, storyID)
	if err != nil {
		return nil, fmt.Errorf("list sourcebook entries: %w", err)
	}
	defer rows.Close()

	entries := []story.SourcebookEntry{}
	for rows.Next() {
		var e story.SourcebookEntry
		if err := rows.Scan(&e.ID, &e.StoryID, &e.Name, &e.Kind, &e.Description, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sourcebook entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sourcebook entries: %w", err)
	}
	return entries, nil
}

// Update persists name, kind and description.
func (r *PostgresSourcebookRepository) Update(ctx context.Context, e *story.SourcebookEntry) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, kind = $2, description = $3, updated_at = $4
		WHERE id = $5
	`, r.tables.Sourcebook)

	e.UpdatedAt = time.Now().UTC()
	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, e.Name, e.Kind, e.Description, e.UpdatedAt, e.ID)
	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("sourcebook entry '%s' already exists in this story", e.Name),
				ResourceType: "sourcebook_entry",
			}
		}
		return fmt.Errorf("update sourcebook entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sourcebook entry %s: %w", e.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes an entry.
func (r *PostgresSourcebookRepository) Delete(ctx context.Context, entryID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Sourcebook)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, entryID)
	if err != nil {
		return fmt.Errorf("delete sourcebook entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sourcebook entry %s: %w", entryID, domain.ErrNotFound)
	}
	return nil
}
