package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"

	"inkwell/internal/domain"
	"inkwell/internal/domain/services"
	"inkwell/internal/provider"
)

const (
	// DefaultCandidates is how many continuations a trigger generates.
	// The keyboard surface picks between the left and right one.
	DefaultCandidates = 2

	// generateTimeout bounds one generation round.
	generateTimeout = 60 * time.Second
)

// Engine runs at most one candidate generation per chapter at a time.
// Accepting, undoing and exiting are always allowed; they supersede
// whatever is in flight.
type Engine struct {
	gateway    provider.Gateway
	story      services.StoryStore
	logger     *slog.Logger
	candidates int

	mu       sync.Mutex
	chapters map[string]*chapterState
}

// NewEngine creates a continuation engine. gateway is the WRITING-role
// provider binding.
func NewEngine(gateway provider.Gateway, story services.StoryStore, logger *slog.Logger) *Engine {
	return &Engine{
		gateway:    gateway,
		story:      story,
		logger:     logger,
		candidates: DefaultCandidates,
		chapters:   make(map[string]*chapterState),
	}
}

// TriggerRequest opens or resets a suggestion session at a cursor.
type TriggerRequest struct {
	ChapterID string
	UserID    string

	// Cursor is a byte offset into the chapter content. Nil or out of
	// range resolves to the end of the content.
	Cursor *int

	// Mode selects the separator policy, "raw" or "structured".
	// Empty defaults to structured.
	Mode string

	// ContentOverride substitutes for the stored chapter content when
	// the client's editor buffer is ahead of the last save.
	ContentOverride *string
}

// Validate checks the request fields.
func (r *TriggerRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ChapterID, validation.Required),
	)
}

// Trigger starts candidate generation from the text before the cursor.
// Returns domain.ErrBusy while a generation is already in flight for
// the chapter.
func (e *Engine) Trigger(ctx context.Context, req *TriggerRequest) (*State, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	mode, ok := ParseMode(req.Mode)
	if !ok {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown mode %q", req.Mode)}
	}

	ch, err := e.story.GetChapter(ctx, req.ChapterID, req.UserID)
	if err != nil {
		return nil, err
	}
	content := ch.Content
	if req.ContentOverride != nil {
		content = *req.ContentOverride
	}
	cursor := len(content)
	if req.Cursor != nil {
		cursor = clampCursor(*req.Cursor, content)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.chapters[req.ChapterID]
	if st != nil && st.generating {
		return nil, &domain.BusyError{Message: "a suggestion generation is already in flight for this chapter"}
	}
	if st == nil {
		st = &chapterState{chapterID: req.ChapterID}
		e.chapters[req.ChapterID] = st
	}
	st.title = ch.Title
	st.mode = mode
	st.content = content
	st.cursor = cursor
	st.continuations = nil

	e.startGeneration(st)
	e.logger.Info("suggestion session started",
		"chapter_id", req.ChapterID,
		"cursor", cursor,
		"mode", string(mode),
	)
	return st.snapshot(), nil
}

// AcceptRequest applies one continuation. Empty text is the dismiss
// signal: the session is cleared and the document untouched.
type AcceptRequest struct {
	ChapterID string
	UserID    string
	Text      string
}

// Accept splices the text into the chapter at the session cursor,
// persists the result, pushes an undo snapshot and immediately starts
// generating from the new cursor so the writer can keep accepting.
func (e *Engine) Accept(ctx context.Context, req *AcceptRequest) (*State, error) {
	if req.ChapterID == "" {
		return nil, &domain.ValidationError{Message: "chapter id is required"}
	}

	e.mu.Lock()
	st := e.chapters[req.ChapterID]

	if req.Text == "" {
		if st != nil {
			e.cancelGeneration(st)
			delete(e.chapters, req.ChapterID)
		}
		e.mu.Unlock()
		return emptyState(req.ChapterID), nil
	}

	if st == nil {
		e.mu.Unlock()
		return nil, &domain.NotFoundError{Message: "no suggestion session for this chapter"}
	}

	// The accepted text supersedes any candidates still in flight.
	e.cancelGeneration(st)
	oldContent, oldCursor := st.content, st.cursor
	newContent, newCursor := Splice(st.content, st.cursor, req.Text, st.mode)
	e.mu.Unlock()

	ch, err := e.story.UpdateChapterContent(ctx, req.ChapterID, req.UserID, newContent)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	st = e.chapters[req.ChapterID]
	if st == nil {
		// Exited while persisting. The write stands; the session is gone.
		return emptyState(req.ChapterID), nil
	}
	st.pushUndo(UndoEntry{Content: oldContent, Cursor: oldCursor})
	st.title = ch.Title
	st.content = newContent
	st.cursor = newCursor
	st.continuations = nil

	e.startGeneration(st)
	e.logger.Info("continuation accepted",
		"chapter_id", req.ChapterID,
		"inserted_bytes", len(req.Text),
		"cursor", newCursor,
	)
	return st.snapshot(), nil
}

// Regenerate discards the current candidates and generates fresh ones
// at the same cursor. A generation already in flight is superseded.
func (e *Engine) Regenerate(ctx context.Context, chapterID, userID string) (*State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.chapters[chapterID]
	if st == nil {
		return nil, &domain.NotFoundError{Message: "no suggestion session for this chapter"}
	}
	e.cancelGeneration(st)
	st.continuations = nil
	e.startGeneration(st)
	return st.snapshot(), nil
}

// Undo restores the document to the snapshot taken before the last
// accept and regenerates from the restored cursor. With nothing to
// undo it is a no-op.
func (e *Engine) Undo(ctx context.Context, chapterID, userID string) (*State, error) {
	e.mu.Lock()
	st := e.chapters[chapterID]
	if st == nil {
		e.mu.Unlock()
		return emptyState(chapterID), nil
	}
	entry, ok := st.popUndo()
	if !ok {
		snap := st.snapshot()
		e.mu.Unlock()
		return snap, nil
	}
	e.cancelGeneration(st)
	e.mu.Unlock()

	ch, err := e.story.UpdateChapterContent(ctx, chapterID, userID, entry.Content)

	e.mu.Lock()
	defer e.mu.Unlock()
	st = e.chapters[chapterID]
	if st == nil {
		return emptyState(chapterID), nil
	}
	if err != nil {
		// The document was not touched; the entry stays undoable.
		st.pushUndo(entry)
		return nil, err
	}
	st.title = ch.Title
	st.content = entry.Content
	st.cursor = entry.Cursor
	st.continuations = nil

	e.startGeneration(st)
	e.logger.Info("continuation undone", "chapter_id", chapterID, "cursor", entry.Cursor)
	return st.snapshot(), nil
}

// Exit tears down the chapter's suggestion session, leaving the
// document untouched. Always accepted, generation in flight or not.
func (e *Engine) Exit(chapterID string) *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st := e.chapters[chapterID]; st != nil {
		e.cancelGeneration(st)
		delete(e.chapters, chapterID)
		e.logger.Info("suggestion session exited", "chapter_id", chapterID)
	}
	return emptyState(chapterID)
}

// Get returns the chapter's current suggestion state.
func (e *Engine) Get(chapterID string) *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st := e.chapters[chapterID]; st != nil {
		return st.snapshot()
	}
	return emptyState(chapterID)
}

// startGeneration launches candidate generation for st. Caller holds
// the engine mutex.
func (e *Engine) startGeneration(st *chapterState) {
	ctx, cancel := context.WithCancel(context.Background())
	st.gen++
	st.generating = true
	st.cancel = cancel
	st.lastError = ""
	prompt := continuationPrompt(st.title, st.content[:st.cursor])
	go e.generate(ctx, st.chapterID, st.gen, prompt)
}

// cancelGeneration stops any in-flight generation and invalidates its
// token so a late result is discarded. Caller holds the engine mutex.
func (e *Engine) cancelGeneration(st *chapterState) {
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	st.gen++
	st.generating = false
}

// generate runs the candidate completions in parallel and writes them
// back if the session still wants them.
func (e *Engine) generate(ctx context.Context, chapterID string, token int, prompt string) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	results := make([]string, e.candidates)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.candidates; i++ {
		g.Go(func() error {
			text, err := e.gateway.Complete(gctx, provider.CompleteRequest{
				System:    continuationSystem,
				Prompt:    prompt,
				MaxTokens: maxContinuationTokens,
			})
			if err != nil {
				return err
			}
			results[i] = text
			return nil
		})
	}
	err := g.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.chapters[chapterID]
	if st == nil || st.gen != token {
		// Superseded or exited while the call was out.
		return
	}
	st.generating = false
	st.cancel = nil
	if err != nil {
		st.lastError = err.Error()
		e.logger.Error("continuation generation failed", "error", err, "chapter_id", chapterID)
		return
	}
	st.continuations = results
	e.logger.Debug("continuations ready", "chapter_id", chapterID, "count", len(results))
}
