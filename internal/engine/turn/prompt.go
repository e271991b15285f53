package turn

import (
	"context"
	"fmt"
	"strings"

	"inkwell/internal/domain/models/chat"
	"inkwell/internal/domain/models/story"
)

// chatSystem is the base persona for chat turns. Story context and the
// story- and session-level overrides are layered after it.
const chatSystem = `You are a writing assistant embedded in an author's workspace. You help with drafting, revision, planning, and worldbuilding for the story described below.

Ground your answers in the story context. Read a chapter with chapter_view before editing it with chapter_edit, and keep edits scoped to what the author asked for. Use sourcebook_view and sourcebook_edit to consult and maintain worldbuilding notes. When the author is just talking, answer directly without touching the document.`

// resolveSystemPrompt builds the system prompt for a turn. A failed
// context load degrades to the overrides alone rather than failing the
// turn.
func (e *Engine) resolveSystemPrompt(ctx context.Context, sess *chat.Session, activeChapterID string) string {
	state, err := e.story.Refresh(ctx, sess.StoryID, sess.UserID)
	if err != nil {
		e.logger.Warn("story context unavailable for turn",
			"session_id", sess.ID,
			"story_id", sess.StoryID,
			"error", err,
		)
		state = nil
	}
	return composeSystemPrompt(sess, state, activeChapterID)
}

// composeSystemPrompt concatenates, in order: the base persona, the
// rendered story context, the story's prompt override, and the
// session's prompt override. Empty layers are dropped.
func composeSystemPrompt(sess *chat.Session, state *story.State, activeChapterID string) string {
	parts := []string{chatSystem}

	if state != nil && state.Story != nil {
		parts = append(parts, renderStoryContext(state, activeChapterID))
		if p := state.Story.SystemPrompt; p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	if sess.SystemPrompt != "" {
		parts = append(parts, sess.SystemPrompt)
	}
	return strings.Join(parts, "\n\n")
}

// renderStoryContext renders the outline and the sourcebook listing.
// Every chapter and entry carries its id so the model can target tool
// calls without asking.
func renderStoryContext(state *story.State, activeChapterID string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Story: %s\n", state.Story.Title)
	if state.Story.Synopsis != "" {
		fmt.Fprintf(&b, "Synopsis: %s\n", state.Story.Synopsis)
	}

	b.WriteString("\nOutline:\n")
	if len(state.Books) == 0 {
		b.WriteString("(no chapters yet)\n")
	}

	byBook := make(map[string][]story.Chapter)
	for _, ch := range state.Chapters {
		byBook[ch.BookID] = append(byBook[ch.BookID], ch)
	}

	for bi, bk := range state.Books {
		branch, cont := "├── ", "│   "
		if bi == len(state.Books)-1 {
			branch, cont = "└── ", "    "
		}
		fmt.Fprintf(&b, "%s%s/\n", branch, bk.Title)

		chapters := byBook[bk.ID]
		for ci, ch := range chapters {
			leaf := "├── "
			if ci == len(chapters)-1 {
				leaf = "└── "
			}
			fmt.Fprintf(&b, "%s%s%s (%d words) [id: %s]", cont, leaf, ch.Title, ch.WordCount, ch.ID)
			if ch.ID == activeChapterID {
				b.WriteString(" (open in the editor)")
			}
			b.WriteByte('\n')
		}
	}

	if len(state.Sourcebook) > 0 {
		b.WriteString("\nSourcebook entries:\n")
		for _, en := range state.Sourcebook {
			fmt.Fprintf(&b, "- %s", en.Name)
			if en.Kind != "" {
				fmt.Fprintf(&b, " (%s)", en.Kind)
			}
			fmt.Fprintf(&b, " [id: %s]\n", en.ID)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
