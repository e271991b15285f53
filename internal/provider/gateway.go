// Package provider wraps configured model endpoints behind a uniform
// gateway: a one-shot completion primitive and a multi-turn session
// primitive, both streaming. Adapters exist for Anthropic and for
// OpenAI-compatible endpoints; everything above this package is
// provider-agnostic.
package provider

import (
	"context"

	"inkwell/internal/domain/models/chat"
)

// DeltaKind distinguishes the two streamed channels.
type DeltaKind string

const (
	DeltaText     DeltaKind = "text"
	DeltaThinking DeltaKind = "thinking"
)

// StreamDelta is one increment of streamed output.
type StreamDelta struct {
	Kind DeltaKind
	Text string
}

// DeltaFunc receives streamed deltas as they arrive. Called from the
// goroutine driving the request; must not block.
type DeltaFunc func(StreamDelta)

// ToolDef describes one tool offered to the model. Properties is the
// JSON Schema property map of an object schema; adapters convert it to
// their wire format.
type ToolDef struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// Reply is the model's complete answer to one Send or Complete.
type Reply struct {
	Text      string
	Thinking  string
	ToolCalls []chat.ToolCall
}

// Options tune a single session or completion.
type Options struct {
	// DisableTools suppresses tool advertising for non-agentic calls
	// such as title generation.
	DisableTools bool
}

// CompleteRequest is a one-shot completion outside any session.
type CompleteRequest struct {
	System string
	Prompt string

	// MaxTokens caps the response; 0 uses the adapter default.
	MaxTokens int

	// OnUpdate, when non-nil, receives partial text for progressive
	// display. One-shot completions have no thinking channel.
	OnUpdate func(partial string)
}

// SessionRequest seeds a multi-turn session.
type SessionRequest struct {
	System  string
	History []chat.Message
	Tools   []ToolDef
	Options Options
}

// Gateway wraps one provider configuration. All conversation state
// lives in the caller; gateways are safe for concurrent use.
type Gateway interface {
	// Complete performs a one-shot completion and returns the text.
	Complete(ctx context.Context, req CompleteRequest) (string, error)

	// NewSession opens a conversation seeded with history. The session
	// itself never touches shared state and is not goroutine-safe.
	NewSession(req SessionRequest) Session

	// Name returns the adapter name ("anthropic", "openai").
	Name() string

	// Model returns the configured model id.
	Model() string
}

// Session is a stateful conversation handle.
type Session interface {
	// Send appends input (when non-nil) to the session history, requests
	// the next model reply, streams deltas to onDelta when non-nil, and
	// appends the reply to the session history on success. A nil input
	// continues from the current history; callers use that after
	// splicing tool results in via a fresh session.
	Send(ctx context.Context, input *chat.Message, onDelta DeltaFunc) (*Reply, error)

	// History returns the session's current view of the conversation,
	// including replies appended by Send.
	History() []chat.Message
}
