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

// PostgresChapterRepository implements the ChapterRepository interface.
type PostgresChapterRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewChapterRepository creates a new chapter repository.
func NewChapterRepository(config *RepositoryConfig) storyRepo.ChapterRepository {
	return &PostgresChapterRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a chapter at the end of the book's chapter list.
func (r *PostgresChapterRepository) Create(ctx context.Context, c *story.Chapter) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (book_id, story_id, title, content, position, word_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, (SELECT COALESCE(MAX(position) + 1, 0) FROM %s WHERE book_id = $1), $5, $6, $7)
		RETURNING id, position, created_at, updated_at
	`, r.tables.Chapters, r.tables.Chapters)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		c.BookID,
		c.StoryID,
		c.Title,
		c.Content,
		c.WordCount,
		c.CreatedAt,
		c.UpdatedAt,
	).Scan(&c.ID, &c.Position, &c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("book %s: %w", c.BookID, domain.ErrNotFound)
		}
		return fmt.Errorf("create chapter: %w", err)
	}
	return nil
}

// Get retrieves a chapter by ID.
func (r *PostgresChapterRepository) Get(ctx context.Context, chapterID string) (*story.Chapter, error) {
	query := fmt.Sprintf(`
		SELECT id, book_id, story_id, title, content, position, word_count, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, r.tables.Chapters)

	var c story.Chapter
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, chapterID).Scan(
		&c.ID,
		&c.BookID,
		&c.StoryID,
		&c.Title,
		&c.Content,
		&c.Position,
		&c.WordCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("chapter %s: %w", chapterID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get chapter: %w", err)
	}
	return &c, nil
}

// ListByBook retrieves a book's chapters ordered by position.
func (r *PostgresChapterRepository) ListByBook(ctx context.Context, bookID string) ([]story.Chapter, error) {
	query := fmt.Sprintf(`
		SELECT id, book_id, story_id, title, content, position, word_count, created_at, updated_at
		FROM %s
		WHERE book_id = $1
		ORDER BY position
	`, r.tables.Chapters)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, bookID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	chapters := []story.Chapter{}
	for rows.Next() {
		var c story.Chapter
		if err := rows.Scan(&c.ID, &c.BookID, &c.StoryID, &c.Title, &c.Content, &c.Position, &c.WordCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		chapters = append(chapters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return chapters, nil
}

// Update persists title, content, position and word_count.
func (r *PostgresChapterRepository) Update(ctx context.Context, c *story.Chapter) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, content = $2, position = $3, word_count = $4, updated_at = $5
		WHERE id = $6
	`, r.tables.Chapters)

	c.UpdatedAt = time.Now().UTC()
	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, c.Title, c.Content, c.Position, c.WordCount, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update chapter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chapter %s: %w", c.ID, domain.ErrNotFound)
	}
	return nil
}

// UpdateContent persists only content and word_count. Last writer wins;
// there is no version column on purpose.
func (r *PostgresChapterRepository) UpdateContent(ctx context.Context, chapterID, content string, wordCount int) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET content = $1, word_count = $2, updated_at = $3
		WHERE id = $4
	`, r.tables.Chapters)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, content, wordCount, time.Now().UTC(), chapterID)
	if err != nil {
		return fmt.Errorf("update chapter content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chapter %s: %w", chapterID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a chapter.
func (r *PostgresChapterRepository) Delete(ctx context.Context, chapterID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Chapters)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, chapterID)
	if err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chapter %s: %w", chapterID, domain.ErrNotFound)
	}
	return nil
}
