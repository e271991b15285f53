package story

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"inkwell/internal/domain"
	models "inkwell/internal/domain/models/story"
	"inkwell/internal/domain/repositories"
)

// passTx runs the unit of work without a database and counts uses.
type passTx struct {
	mu    sync.Mutex
	calls int
}

func (t *passTx) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	return fn(ctx)
}

type memStories struct {
	mu   sync.Mutex
	rows map[string]*models.Story
	seq  int
}

func newMemStories() *memStories {
	return &memStories{rows: make(map[string]*models.Story)}
}

func (m *memStories) Create(ctx context.Context, s *models.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	s.ID = fmt.Sprintf("story-%d", m.seq)
	cp := *s
	m.rows[s.ID] = &cp
	return nil
}

func (m *memStories) Get(ctx context.Context, storyID, userID string) (*models.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[storyID]
	if !ok || s.UserID != userID || s.DeletedAt != nil {
		return nil, fmt.Errorf("story %s: %w", storyID, domain.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (m *memStories) List(ctx context.Context, userID string) ([]models.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Story{}
	for _, s := range m.rows {
		if s.UserID == userID && s.DeletedAt == nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStories) Update(ctx context.Context, s *models.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.rows[s.ID]
	if !ok || old.UserID != s.UserID || old.DeletedAt != nil {
		return fmt.Errorf("story %s: %w", s.ID, domain.ErrNotFound)
	}
	cp := *s
	m.rows[s.ID] = &cp
	return nil
}

func (m *memStories) Delete(ctx context.Context, storyID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[storyID]
	if !ok || s.UserID != userID || s.DeletedAt != nil {
		return fmt.Errorf("story %s: %w", storyID, domain.ErrNotFound)
	}
	now := s.UpdatedAt
	s.DeletedAt = &now
	return nil
}

func (m *memStories) GetState(ctx context.Context, storyID, userID string) (*models.State, error) {
	s, err := m.Get(ctx, storyID, userID)
	if err != nil {
		return nil, err
	}
	return &models.State{Story: s, Books: []models.Book{}, Chapters: []models.Chapter{}, Sourcebook: []models.SourcebookEntry{}}, nil
}

type memBooks struct {
	mu         sync.Mutex
	rows       map[string]*models.Book
	seq        int
	failCreate error
}

func newMemBooks() *memBooks {
	return &memBooks{rows: make(map[string]*models.Book)}
}

func (m *memBooks) Create(ctx context.Context, b *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		err := m.failCreate
		m.failCreate = nil
		return err
	}
	m.seq++
	b.ID = fmt.Sprintf("book-%d", m.seq)
	for _, row := range m.rows {
		if row.StoryID == b.StoryID {
			b.Position++
		}
	}
	cp := *b
	m.rows[b.ID] = &cp
	return nil
}

func (m *memBooks) Get(ctx context.Context, bookID string) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[bookID]
	if !ok {
		return nil, fmt.Errorf("book %s: %w", bookID, domain.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (m *memBooks) ListByStory(ctx context.Context, storyID string) ([]models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Book{}
	for _, b := range m.rows {
		if b.StoryID == storyID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memBooks) Update(ctx context.Context, b *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[b.ID]; !ok {
		return fmt.Errorf("book %s: %w", b.ID, domain.ErrNotFound)
	}
	cp := *b
	m.rows[b.ID] = &cp
	return nil
}

func (m *memBooks) Delete(ctx context.Context, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[bookID]; !ok {
		return fmt.Errorf("book %s: %w", bookID, domain.ErrNotFound)
	}
	delete(m.rows, bookID)
	return nil
}

type memChapters struct {
	mu   sync.Mutex
	rows map[string]*models.Chapter
	seq  int
}

func newMemChapters() *memChapters {
	return &memChapters{rows: make(map[string]*models.Chapter)}
}

func (m *memChapters) Create(ctx context.Context, c *models.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	c.ID = fmt.Sprintf("ch-%d", m.seq)
	for _, row := range m.rows {
		if row.BookID == c.BookID {
			c.Position++
		}
	}
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memChapters) Get(ctx context.Context, chapterID string) (*models.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[chapterID]
	if !ok {
		return nil, fmt.Errorf("chapter %s: %w", chapterID, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *memChapters) ListByBook(ctx context.Context, bookID string) ([]models.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Chapter{}
	for _, c := range m.rows {
		if c.BookID == bookID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memChapters) Update(ctx context.Context, c *models.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[c.ID]; !ok {
		return fmt.Errorf("chapter %s: %w", c.ID, domain.ErrNotFound)
	}
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memChapters) UpdateContent(ctx context.Context, chapterID, content string, wordCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[chapterID]
	if !ok {
		return fmt.Errorf("chapter %s: %w", chapterID, domain.ErrNotFound)
	}
	c.Content = content
	c.WordCount = wordCount
	return nil
}

func (m *memChapters) Delete(ctx context.Context, chapterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[chapterID]; !ok {
		return fmt.Errorf("chapter %s: %w", chapterID, domain.ErrNotFound)
	}
	delete(m.rows, chapterID)
	return nil
}

type memSourcebook struct {
	mu   sync.Mutex
	rows map[string]*models.SourcebookEntry
	seq  int
}

func newMemSourcebook() *memSourcebook {
	return &memSourcebook{rows: make(map[string]*models.SourcebookEntry)}
}

func (m *memSourcebook) Create(ctx context.Context, e *models.SourcebookEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.StoryID == e.StoryID && row.Name == e.Name {
			return &domain.ConflictError{
				Message:      "sourcebook entry name already used",
				ResourceType: "sourcebook_entry",
				ResourceID:   row.ID,
			}
		}
	}
	m.seq++
	e.ID = fmt.Sprintf("sb-%d", m.seq)
	cp := *e
	m.rows[e.ID] = &cp
	return nil
}

func (m *memSourcebook) Get(ctx context.Context, entryID string) (*models.SourcebookEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[entryID]
	if !ok {
		return nil, fmt.Errorf("sourcebook entry %s: %w", entryID, domain.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (m *memSourcebook) ListByStory(ctx context.Context, storyID string) ([]models.SourcebookEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.SourcebookEntry{}
	for _, e := range m.rows {
		if e.StoryID == storyID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memSourcebook) Update(ctx context.Context, e *models.SourcebookEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[e.ID]; !ok {
		return fmt.Errorf("sourcebook entry %s: %w", e.ID, domain.ErrNotFound)
	}
	cp := *e
	m.rows[e.ID] = &cp
	return nil
}

func (m *memSourcebook) Delete(ctx context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[entryID]; !ok {
		return fmt.Errorf("sourcebook entry %s: %w", entryID, domain.ErrNotFound)
	}
	delete(m.rows, entryID)
	return nil
}

type fixture struct {
	svc        *Service
	stories    *memStories
	books      *memBooks
	chapters   *memChapters
	sourcebook *memSourcebook
	tx         *passTx
}

func newFixture() *fixture {
	fx := &fixture{
		stories:    newMemStories(),
		books:      newMemBooks(),
		chapters:   newMemChapters(),
		sourcebook: newMemSourcebook(),
		tx:         &passTx{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fx.svc = NewService(fx.stories, fx.books, fx.chapters, fx.sourcebook, fx.tx, logger)
	return fx
}

// seed creates a story through the service and returns it with the
// first book and chapter the service created alongside.
func (fx *fixture) seed(t *testing.T, userID string) (*models.Story, *models.Book, *models.Chapter) {
	t.Helper()
	st, err := fx.svc.CreateStory(context.Background(), &CreateStoryRequest{
		UserID: userID,
		Title:  "The Lighthouse",
	})
	if err != nil {
		t.Fatalf("CreateStory failed: %v", err)
	}

	books, err := fx.svc.ListBooks(context.Background(), st.ID, userID)
	if err != nil || len(books) != 1 {
		t.Fatalf("expected one seeded book, got %v (%v)", books, err)
	}
	chapters, err := fx.svc.ListChapters(context.Background(), books[0].ID, userID)
	if err != nil || len(chapters) != 1 {
		t.Fatalf("expected one seeded chapter, got %v (%v)", chapters, err)
	}
	return st, &books[0], &chapters[0]
}

func TestCreateStory(t *testing.T) {
	t.Run("creates the first book and chapter", func(t *testing.T) {
		fx := newFixture()
		st, bk, ch := fx.seed(t, "alice")

		if bk.StoryID != st.ID || bk.Title != "Book One" {
			t.Errorf("unexpected seeded book: %+v", bk)
		}
		if ch.BookID != bk.ID || ch.StoryID != st.ID || ch.Title != "Chapter One" {
			t.Errorf("unexpected seeded chapter: %+v", ch)
		}
		if ch.WordCount != 0 || ch.Content != "" {
			t.Errorf("seeded chapter should be empty: %+v", ch)
		}
		if fx.tx.calls != 1 {
			t.Errorf("expected one transaction, got %d", fx.tx.calls)
		}
	})

	t.Run("requires a title", func(t *testing.T) {
		fx := newFixture()
		_, err := fx.svc.CreateStory(context.Background(), &CreateStoryRequest{UserID: "alice"})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("partial failure surfaces", func(t *testing.T) {
		fx := newFixture()
		fx.books.failCreate = errors.New("insert failed")
		_, err := fx.svc.CreateStory(context.Background(), &CreateStoryRequest{
			UserID: "alice",
			Title:  "Doomed",
		})
		if err == nil {
			t.Fatal("expected error when the book insert fails")
		}
	})
}

func TestOwnership(t *testing.T) {
	fx := newFixture()
	st, bk, ch := fx.seed(t, "alice")

	t.Run("foreign chapter reads as missing", func(t *testing.T) {
		if _, err := fx.svc.GetChapter(context.Background(), ch.ID, "bob"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("foreign chapter cannot be written", func(t *testing.T) {
		_, err := fx.svc.UpdateChapterContent(context.Background(), ch.ID, "bob", "stolen words")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
		got, _ := fx.chapters.Get(context.Background(), ch.ID)
		if got.Content != "" {
			t.Errorf("foreign write reached the store: %q", got.Content)
		}
	})

	t.Run("foreign book cannot be deleted", func(t *testing.T) {
		if err := fx.svc.DeleteBook(context.Background(), bk.ID, "bob"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
		if _, err := fx.books.Get(context.Background(), bk.ID); err != nil {
			t.Errorf("book should survive a foreign delete: %v", err)
		}
	})

	t.Run("foreign story state is hidden", func(t *testing.T) {
		if _, err := fx.svc.Refresh(context.Background(), st.ID, "bob"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestUpdateChapterContent(t *testing.T) {
	fx := newFixture()
	_, _, ch := fx.seed(t, "alice")

	updated, err := fx.svc.UpdateChapterContent(context.Background(), ch.ID, "alice", "Hello **brave** new world.")
	if err != nil {
		t.Fatalf("UpdateChapterContent failed: %v", err)
	}
	if updated.Content != "Hello **brave** new world." {
		t.Errorf("unexpected content: %q", updated.Content)
	}
	if updated.WordCount != 4 {
		t.Errorf("expected 4 words, got %d", updated.WordCount)
	}

	stored, _ := fx.chapters.Get(context.Background(), ch.ID)
	if stored.Content != updated.Content || stored.WordCount != 4 {
		t.Errorf("store out of sync: %+v", stored)
	}
}

func TestUpdateStory(t *testing.T) {
	fx := newFixture()
	st, _, _ := fx.seed(t, "alice")

	synopsis := "A keeper discovers the lamp is a door."
	if _, err := fx.svc.UpdateStory(context.Background(), &UpdateStoryRequest{
		StoryID:  st.ID,
		UserID:   "alice",
		Synopsis: &synopsis,
	}); err != nil {
		t.Fatalf("UpdateStory failed: %v", err)
	}

	title := "The Lamp"
	updated, err := fx.svc.UpdateStory(context.Background(), &UpdateStoryRequest{
		StoryID: st.ID,
		UserID:  "alice",
		Title:   &title,
	})
	if err != nil {
		t.Fatalf("UpdateStory failed: %v", err)
	}
	if updated.Title != "The Lamp" {
		t.Errorf("title not updated: %q", updated.Title)
	}
	if updated.Synopsis != synopsis {
		t.Errorf("partial update clobbered synopsis: %q", updated.Synopsis)
	}
}

func TestChapterCRUD(t *testing.T) {
	fx := newFixture()
	_, bk, _ := fx.seed(t, "alice")

	t.Run("create counts words and appends", func(t *testing.T) {
		ch, err := fx.svc.CreateChapter(context.Background(), &CreateChapterRequest{
			BookID:  bk.ID,
			UserID:  "alice",
			Title:   "The Storm",
			Content: "Rain fell for **three** days.",
		})
		if err != nil {
			t.Fatalf("CreateChapter failed: %v", err)
		}
		if ch.WordCount != 5 {
			t.Errorf("expected 5 words, got %d", ch.WordCount)
		}
		if ch.Position != 1 {
			t.Errorf("expected position 1 after the seeded chapter, got %d", ch.Position)
		}
	})

	t.Run("title patch preserves content", func(t *testing.T) {
		ch, err := fx.svc.CreateChapter(context.Background(), &CreateChapterRequest{
			BookID:  bk.ID,
			UserID:  "alice",
			Title:   "Draft",
			Content: "Original words here.",
		})
		if err != nil {
			t.Fatalf("CreateChapter failed: %v", err)
		}

		title := "Final"
		updated, err := fx.svc.UpdateChapter(context.Background(), &UpdateChapterRequest{
			ChapterID: ch.ID,
			UserID:    "alice",
			Title:     &title,
		})
		if err != nil {
			t.Fatalf("UpdateChapter failed: %v", err)
		}
		if updated.Title != "Final" || updated.Content != "Original words here." {
			t.Errorf("patch went wrong: %+v", updated)
		}
		if updated.WordCount != ch.WordCount {
			t.Errorf("word count changed on a title patch: %d", updated.WordCount)
		}
	})

	t.Run("content patch recomputes word count", func(t *testing.T) {
		ch, err := fx.svc.CreateChapter(context.Background(), &CreateChapterRequest{
			BookID: bk.ID,
			UserID: "alice",
			Title:  "Rewrite me",
		})
		if err != nil {
			t.Fatalf("CreateChapter failed: %v", err)
		}

		content := "One two three four five six."
		updated, err := fx.svc.UpdateChapter(context.Background(), &UpdateChapterRequest{
			ChapterID: ch.ID,
			UserID:    "alice",
			Content:   &content,
		})
		if err != nil {
			t.Fatalf("UpdateChapter failed: %v", err)
		}
		if updated.WordCount != 6 {
			t.Errorf("expected 6 words, got %d", updated.WordCount)
		}
	})

	t.Run("delete removes the chapter", func(t *testing.T) {
		ch, err := fx.svc.CreateChapter(context.Background(), &CreateChapterRequest{
			BookID: bk.ID,
			UserID: "alice",
			Title:  "Doomed",
		})
		if err != nil {
			t.Fatalf("CreateChapter failed: %v", err)
		}
		if err := fx.svc.DeleteChapter(context.Background(), ch.ID, "alice"); err != nil {
			t.Fatalf("DeleteChapter failed: %v", err)
		}
		if _, err := fx.svc.GetChapter(context.Background(), ch.ID, "alice"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found after delete, got %v", err)
		}
	})
}

func TestSourcebook(t *testing.T) {
	fx := newFixture()
	st, _, _ := fx.seed(t, "alice")

	en, err := fx.svc.CreateEntry(context.Background(), &CreateEntryRequest{
		StoryID:     st.ID,
		UserID:      "alice",
		Name:        "Edda",
		Kind:        "character",
		Description: "The keeper.",
	})
	if err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}

	t.Run("duplicate name conflicts", func(t *testing.T) {
		_, err := fx.svc.CreateEntry(context.Background(), &CreateEntryRequest{
			StoryID: st.ID,
			UserID:  "alice",
			Name:    "Edda",
		})
		if !errors.Is(err, domain.ErrConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
	})

	t.Run("patch updates kind only", func(t *testing.T) {
		kind := "protagonist"
		updated, err := fx.svc.UpdateEntry(context.Background(), &UpdateEntryRequest{
			EntryID: en.ID,
			UserID:  "alice",
			Kind:    &kind,
		})
		if err != nil {
			t.Fatalf("UpdateEntry failed: %v", err)
		}
		if updated.Kind != "protagonist" || updated.Name != "Edda" || updated.Description != "The keeper." {
			t.Errorf("patch went wrong: %+v", updated)
		}
	})

	t.Run("foreign entry reads as missing", func(t *testing.T) {
		if _, err := fx.svc.GetEntry(context.Background(), en.ID, "bob"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}
