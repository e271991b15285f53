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

// PostgresBookRepository implements the BookRepository interface.
type PostgresBookRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewBookRepository creates a new book repository.
func NewBookRepository(config *RepositoryConfig) storyRepo.BookRepository {
	return &PostgresBookRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a book at the end of the story's book list.
func (r *PostgresBookRepository) Create(ctx context.Context, b *story.Book) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (story_id, title, position, created_at, updated_at)
		VALUES ($1, $2, (SELECT COALESCE(MAX(position) + 1, 0) FROM %s WHERE story_id = $1), $3, $4)
		RETURNING id, position, created_at, updated_at
	`, r.tables.Books, r.tables.Books)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		b.StoryID,
		b.Title,
		b.CreatedAt,
		b.UpdatedAt,
	).Scan(&b.ID, &b.Position, &b.CreatedAt, &b.UpdatedAt)

	if err != nil {
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("story %s: %w", b.StoryID, domain.ErrNotFound)
		}
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

// Get retrieves a book by ID.
func (r *PostgresBookRepository) Get(ctx context.Context, bookID string) (*story.Book, error) {
	query := fmt.Sprintf(`
		SELECT id, story_id, title, position, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, r.tables.Books)

	var b story.Book
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, bookID).Scan(
		&b.ID,
		&b.StoryID,
		&b.Title,
		&b.Position,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("book %s: %w", bookID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &b, nil
}

// ListByStory retrieves a story's books ordered by position.
func (r *PostgresBookRepository) ListByStory(ctx context.Context, storyID string) ([]story.Book, error) {
	query := fmt.Sprintf(`
		SELECT id, story_id, title, position, created_at, updated_at
		FROM %s
		WHERE story_id = $1
		ORDER BY position
	`, r.tables.Books)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, storyID)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := []story.Book{}
	for rows.Next() {
		var b story.Book
		if err := rows.Scan(&b.ID, &b.StoryID, &b.Title, &b.Position, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// Update persists title and position.
func (r *PostgresBookRepository) Update(ctx context.Context, b *story.Book) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, position = $2, updated_at = $3
		WHERE id = $4
	`, r.tables.Books)

	b.UpdatedAt = time.Now().UTC()
	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, b.Title, b.Position, b.UpdatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("book %s: %w", b.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a book. Chapters cascade at the schema level.
func (r *PostgresBookRepository) Delete(ctx context.Context, bookID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Books)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, bookID)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("book %s: %w", bookID, domain.ErrNotFound)
	}
	return nil
}
