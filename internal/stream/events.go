// Package stream broadcasts chat turn events to SSE clients. Each
// session has at most one live stream (single turn in flight); closed
// streams are retained briefly so reconnecting clients can catch up.
package stream

import (
	"encoding/json"
	"fmt"

	"inkwell/internal/domain/models/chat"
)

// SSE event types emitted during a chat turn.
const (
	EventMessageStart  = "message_start"
	EventTextDelta     = "text_delta"
	EventThinkingDelta = "thinking_delta"
	EventToolCalls     = "tool_calls"
	EventToolResults   = "tool_results"
	EventThrottleGate  = "throttle_gate"
	EventStoryChanged  = "story_changed"
	EventTurnComplete  = "turn_complete"
	EventTurnError     = "turn_error"
)

// Event is a single server-sent event with a pre-marshaled payload.
type Event struct {
	Type string
	Data []byte
}

// Format renders the event in SSE wire format.
func (e Event) Format() string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, e.Data)
}

// NewEvent marshals payload into an Event.
func NewEvent(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	return Event{Type: eventType, Data: data}, nil
}

// MessageStartEvent announces a new message the model is streaming into.
type MessageStartEvent struct {
	MessageID string `json:"message_id"`
	Role      string `json:"role"`
}

// TextDeltaEvent carries a chunk of visible prose.
type TextDeltaEvent struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

// ThinkingDeltaEvent carries a chunk of the model's reasoning channel.
type ThinkingDeltaEvent struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

// ToolCallInfo is the client-visible summary of one requested call.
type ToolCallInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ToolCallsEvent announces that the model requested tool execution.
type ToolCallsEvent struct {
	MessageID string         `json:"message_id"`
	Calls     []ToolCallInfo `json:"calls"`
}

// ToolResultsEvent carries the messages appended by the executor.
type ToolResultsEvent struct {
	Messages     []chat.Message `json:"messages"`
	StoryChanged bool           `json:"story_changed"`
}

// ThrottleGateEvent announces that the turn paused at the sequential
// tool-call budget and awaits a user decision.
type ThrottleGateEvent struct {
	SessionID string `json:"session_id"`
	CallsMade int    `json:"calls_made"`
	Limit     int    `json:"limit"`
}

// StoryChangedEvent tells clients to refresh story content.
type StoryChangedEvent struct {
	StoryID string `json:"story_id"`
}

// TurnCompleteEvent marks the end of a successful turn.
type TurnCompleteEvent struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Status    string `json:"status"` // "complete" or "stopped"
}

// TurnErrorEvent marks a turn that ended with a provider failure. The
// error text is also persisted as a model message in the session.
type TurnErrorEvent struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}
