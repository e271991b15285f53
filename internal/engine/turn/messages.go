package turn

import (
	"context"
	"fmt"

	"inkwell/internal/config"
	"inkwell/internal/domain"
	"inkwell/internal/domain/models/chat"
)

// EditMessage replaces the text of a user or model message. Rejected
// while a turn is in flight; tool results are executor output and
// cannot be edited.
func (e *Engine) EditMessage(ctx context.Context, sessionID, userID, messageID, text string) (*chat.Session, error) {
	if e.State(sessionID) != StateIdle {
		return nil, &domain.BusyError{Message: "cannot edit messages while a turn is in flight"}
	}
	if len(text) > config.MaxUserMessageLength {
		return nil, fmt.Errorf("%w: message text too long", domain.ErrValidation)
	}

	e.autosave.Flush(ctx, sessionID)
	sess, err := e.store.Get(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	idx := sess.MessageIndex(messageID)
	if idx < 0 {
		return nil, &domain.NotFoundError{Message: "message not found"}
	}
	if sess.Messages[idx].Role == chat.RoleTool {
		return nil, &domain.ValidationError{Message: "tool results cannot be edited"}
	}

	sess.Messages[idx].Text = text

	if err := e.store.SaveMessages(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// DeleteMessage removes a message from history. Deleting a model
// message that carries tool calls also removes the tool results that
// answer them, keeping the history well-formed. Rejected while a turn
// is in flight.
func (e *Engine) DeleteMessage(ctx context.Context, sessionID, userID, messageID string) (*chat.Session, error) {
	if e.State(sessionID) != StateIdle {
		return nil, &domain.BusyError{Message: "cannot delete messages while a turn is in flight"}
	}

	e.autosave.Flush(ctx, sessionID)
	sess, err := e.store.Get(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	idx := sess.MessageIndex(messageID)
	if idx < 0 {
		return nil, &domain.NotFoundError{Message: "message not found"}
	}

	doomed := map[string]bool{}
	for _, id := range sess.Messages[idx].CallIDs() {
		doomed[id] = true
	}

	kept := make([]chat.Message, 0, len(sess.Messages)-1)
	for i, msg := range sess.Messages {
		if i == idx {
			continue
		}
		if msg.Role == chat.RoleTool && doomed[msg.ToolCallID] {
			continue
		}
		kept = append(kept, msg)
	}
	sess.Messages = kept

	if err := e.store.SaveMessages(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}
