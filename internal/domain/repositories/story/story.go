package story

import (
	"context"

	"inkwell/internal/domain/models/story"
)

// StoryRepository defines data access for story roots.
type StoryRepository interface {
	// Create inserts a new story.
	Create(ctx context.Context, s *story.Story) error

	// Get retrieves a story by ID scoped to a user.
	// Returns domain.ErrNotFound if not found or soft-deleted.
	Get(ctx context.Context, storyID, userID string) (*story.Story, error)

	// List retrieves all stories for a user, newest first.
	List(ctx context.Context, userID string) ([]story.Story, error)

	// Update persists title, synopsis and system_prompt.
	// Returns domain.ErrNotFound if not found.
	Update(ctx context.Context, s *story.Story) error

	// Delete soft-deletes a story.
	// Returns domain.ErrNotFound if not found or already deleted.
	Delete(ctx context.Context, storyID, userID string) error

	// GetState assembles the full story view: the story row plus books,
	// chapters and sourcebook entries, ordered by position.
	// Returns domain.ErrNotFound if the story does not exist.
	GetState(ctx context.Context, storyID, userID string) (*story.State, error)
}

// BookRepository defines data access for books.
type BookRepository interface {
	// Create inserts a book at the end of the story's book list.
	Create(ctx context.Context, b *story.Book) error

	// Get retrieves a book by ID.
	// Returns domain.ErrNotFound if not found.
	Get(ctx context.Context, bookID string) (*story.Book, error)

	// ListByStory retrieves a story's books ordered by position.
	ListByStory(ctx context.Context, storyID string) ([]story.Book, error)

	// Update persists title and position.
	// Returns domain.ErrNotFound if not found.
	Update(ctx context.Context, b *story.Book) error

	// Delete removes a book and cascades to its chapters.
	// Returns domain.ErrNotFound if not found.
	Delete(ctx context.Context, bookID string) error
}

// ChapterRepository defines data access for chapters.
type ChapterRepository interface {
	// Create inserts a chapter at the end of the book's chapter list.
	Create(ctx context.Context, c *story.Chapter) error

	// Get retrieves a chapter by ID.
	// Returns domain.ErrNotFound if not found.
	Get(ctx context.Context, chapterID string) (*story.Chapter, error)

	// ListByBook retrieves a book's chapters ordered by position.
	ListByBook(ctx context.Context, bookID string) ([]story.Chapter, error)

	// Update persists title, content, position and word_count.
	// Returns domain.ErrNotFound if not found.
	Update(ctx context.Context, c *story.Chapter) error

	// UpdateContent persists only content and word_count. Used by the
	// continuation engine's accept path.
	// Returns domain.ErrNotFound if not found.
	UpdateContent(ctx context.Context, chapterID, content string, wordCount int) error

	// Delete removes a chapter.
	// Returns domain.ErrNotFound if not found.
	Delete(ctx context.Context, chapterID string) error
}

// SourcebookRepository defines data access for sourcebook entries.
type SourcebookRepository interface {
	// Create inserts a new entry.
	Create(ctx context.Context, e *story.SourcebookEntry) error

	// Get retrieves an entry by ID.
	// Returns domain.ErrNotFound if not found.
	Get(ctx context.Context, entryID string) (*story.SourcebookEntry, error)

	// ListByStory retrieves a story's entries ordered by name.
	ListByStory(ctx context.Context, storyID string) ([]story.SourcebookEntry, error)

	// Update persists name, kind and description.
	// Returns domain.ErrNotFound if not found.
	Update(ctx context.Context, e *story.SourcebookEntry) error

	// Delete removes an entry.
	// Returns domain.ErrNotFound if not found.
	Delete(ctx context.Context, entryID string) error
}
