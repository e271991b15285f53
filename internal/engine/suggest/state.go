package suggest

// MaxUndoDepth bounds the per-chapter undo stack. When a 33rd accept
// lands, the oldest entry falls off the bottom.
const MaxUndoDepth = 32

// UndoEntry snapshots the document exactly as it was before an accept,
// so undo restores content and cursor byte for byte.
type UndoEntry struct {
	Content string
	Cursor  int
}

// State is the client-visible snapshot of one chapter's suggestion
// session.
type State struct {
	ChapterID     string   `json:"chapter_id"`
	Active        bool     `json:"active"`
	Generating    bool     `json:"generating"`
	Cursor        int      `json:"cursor"`
	Continuations []string `json:"continuations"`
	UndoDepth     int      `json:"undo_depth"`
	Error         string   `json:"error,omitempty"`
}

// chapterState is the engine's working state for one chapter. All
// access goes through the engine mutex; the generation goroutine writes
// back only if its token still matches.
type chapterState struct {
	chapterID string
	title     string
	mode      Mode

	content string
	cursor  int

	generating    bool
	gen           int // generation token, bumped on every start and cancel
	cancel        func()
	continuations []string
	lastError     string

	undo []UndoEntry
}

func (st *chapterState) snapshot() *State {
	return &State{
		ChapterID:     st.chapterID,
		Active:        true,
		Generating:    st.generating,
		Cursor:        st.cursor,
		Continuations: append([]string(nil), st.continuations...),
		UndoDepth:     len(st.undo),
		Error:         st.lastError,
	}
}

// pushUndo appends an entry, dropping the oldest past MaxUndoDepth.
func (st *chapterState) pushUndo(e UndoEntry) {
	st.undo = append(st.undo, e)
	if len(st.undo) > MaxUndoDepth {
		copy(st.undo, st.undo[1:])
		st.undo = st.undo[:MaxUndoDepth]
	}
}

// popUndo removes and returns the most recent entry.
func (st *chapterState) popUndo() (UndoEntry, bool) {
	if len(st.undo) == 0 {
		return UndoEntry{}, false
	}
	e := st.undo[len(st.undo)-1]
	st.undo = st.undo[:len(st.undo)-1]
	return e, true
}

// emptyState is what callers see for a chapter with no session.
func emptyState(chapterID string) *State {
	return &State{ChapterID: chapterID, Continuations: []string{}}
}
