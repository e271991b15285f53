package services

import (
	"context"

	"inkwell/internal/domain/models/story"
)

// StoryStore is the boundary through which the engines read and mutate
// story content. Both engines treat the store as the source of truth:
// document mutation is last-writer-wins, and after a tool round reports
// a story mutation the engine refreshes rather than merging.
type StoryStore interface {
	// GetChapter retrieves one chapter with content, scoped to the
	// owning user. Returns domain.ErrNotFound if the chapter does not
	// exist or belongs to someone else.
	GetChapter(ctx context.Context, chapterID, userID string) (*story.Chapter, error)

	// UpdateChapterContent overwrites a chapter's content and recomputes
	// its word count. Last writer wins.
	// Returns domain.ErrNotFound if the chapter does not exist or
	// belongs to someone else.
	UpdateChapterContent(ctx context.Context, chapterID, userID, content string) (*story.Chapter, error)

	// Refresh rereads the full story state. Called after the tool
	// executor signals that story content changed out from under the
	// engine, and on session start to build prompt context.
	// Returns domain.ErrNotFound if the story does not exist.
	Refresh(ctx context.Context, storyID, userID string) (*story.State, error)
}
