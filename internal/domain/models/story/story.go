package story

import (
	"time"
)

// Story is the root container for a writing project.
type Story struct {
	ID           string     `json:"id" db:"id"`
	UserID       string     `json:"user_id" db:"user_id"`
	Title        string     `json:"title" db:"title"`
	Synopsis     string     `json:"synopsis,omitempty" db:"synopsis"`
	SystemPrompt *string    `json:"system_prompt,omitempty" db:"system_prompt"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Book groups chapters inside a story.
type Book struct {
	ID        string    `json:"id" db:"id"`
	StoryID   string    `json:"story_id" db:"story_id"`
	Title     string    `json:"title" db:"title"`
	Position  int       `json:"position" db:"position"` // Order within the story
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Chapter holds prose content. Content is plain markdown text; the
// continuation engine splices into it byte-wise.
type Chapter struct {
	ID        string    `json:"id" db:"id"`
	BookID    string    `json:"book_id" db:"book_id"`
	StoryID   string    `json:"story_id" db:"story_id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	Position  int       `json:"position" db:"position"`
	WordCount int       `json:"word_count" db:"word_count"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SourcebookEntry is a worldbuilding note (character, place, lore) the
// model can read and edit through tools.
type SourcebookEntry struct {
	ID          string    `json:"id" db:"id"`
	StoryID     string    `json:"story_id" db:"story_id"`
	Name        string    `json:"name" db:"name"`
	Kind        string    `json:"kind,omitempty" db:"kind"` // e.g. "character", "place", "lore"
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// State is the assembled view of one story used to build prompt context:
// the story row plus its books, chapters and sourcebook.
type State struct {
	Story      *Story            `json:"story"`
	Books      []Book            `json:"books"`
	Chapters   []Chapter         `json:"chapters"`
	Sourcebook []SourcebookEntry `json:"sourcebook"`
}

// Chapter returns the chapter with the given id, or nil.
func (s *State) Chapter(id string) *Chapter {
	for i := range s.Chapters {
		if s.Chapters[i].ID == id {
			return &s.Chapters[i]
		}
	}
	return nil
}
