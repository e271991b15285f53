package suggest

import (
	"context"
	"fmt"

	"inkwell/internal/domain"
)

// Action is one of the keystroke-level suggestion commands.
type Action string

const (
	ActionTrigger     Action = "trigger"
	ActionChooseLeft  Action = "chooseLeft"
	ActionChooseRight Action = "chooseRight"
	ActionRegenerate  Action = "regenerate"
	ActionUndo        Action = "undo"
	ActionExit        Action = "exit"
)

// ParseAction maps a request string onto an Action.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionTrigger, ActionChooseLeft, ActionChooseRight,
		ActionRegenerate, ActionUndo, ActionExit:
		return Action(s), true
	default:
		return "", false
	}
}

// KeyboardRequest is one keyboard command against a chapter's
// suggestion session.
type KeyboardRequest struct {
	ChapterID string
	UserID    string
	Action    string
	Mode      string
}

// Keyboard dispatches a keyboard action. Trigger on a live session
// regenerates at the current cursor; on a cold chapter it opens a
// session at the end of the content. chooseLeft and chooseRight accept
// the first and second candidate.
func (e *Engine) Keyboard(ctx context.Context, req *KeyboardRequest) (*State, error) {
	action, ok := ParseAction(req.Action)
	if !ok {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown action %q", req.Action)}
	}

	switch action {
	case ActionTrigger:
		e.mu.Lock()
		_, live := e.chapters[req.ChapterID]
		e.mu.Unlock()
		if live {
			return e.Regenerate(ctx, req.ChapterID, req.UserID)
		}
		return e.Trigger(ctx, &TriggerRequest{
			ChapterID: req.ChapterID,
			UserID:    req.UserID,
			Mode:      req.Mode,
		})
	case ActionChooseLeft:
		return e.acceptCandidate(ctx, req, 0)
	case ActionChooseRight:
		return e.acceptCandidate(ctx, req, 1)
	case ActionRegenerate:
		return e.Regenerate(ctx, req.ChapterID, req.UserID)
	case ActionUndo:
		return e.Undo(ctx, req.ChapterID, req.UserID)
	default:
		return e.Exit(req.ChapterID), nil
	}
}

func (e *Engine) acceptCandidate(ctx context.Context, req *KeyboardRequest, i int) (*State, error) {
	e.mu.Lock()
	st := e.chapters[req.ChapterID]
	if st == nil {
		e.mu.Unlock()
		return nil, &domain.NotFoundError{Message: "no suggestion session for this chapter"}
	}
	if st.generating {
		e.mu.Unlock()
		return nil, &domain.BusyError{Message: "candidates are still generating"}
	}
	if i >= len(st.continuations) {
		e.mu.Unlock()
		return nil, &domain.ValidationError{Message: "no candidate at that position"}
	}
	text := st.continuations[i]
	e.mu.Unlock()

	return e.Accept(ctx, &AcceptRequest{
		ChapterID: req.ChapterID,
		UserID:    req.UserID,
		Text:      text,
	})
}
