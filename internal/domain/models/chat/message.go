package chat

// Message roles
const (
	RoleUser  = "user"
	RoleModel = "model"
	RoleTool  = "tool"
)

// ToolCall is a structured action the model asked the host system to
// perform. Args holds the decoded JSON arguments; the wire form
// (serialized string) is produced only at the provider and tool-executor
// boundaries.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Message is a single entry in a chat session's history.
//
// Invariant: a RoleTool message always follows a RoleModel message whose
// ToolCalls contains a call with ID == ToolCallID. The engine appends
// them in that order and editing operations preserve the pairing.
type Message struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	Text string `json:"text"`

	// Thinking carries the model's reasoning channel when the provider
	// streams one. Presentation-only; never sent back to the provider.
	Thinking string `json:"thinking,omitempty"`

	// ToolCalls is set on model messages that request tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and Name are set on tool messages and correlate the
	// result with the originating call.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`

	// IsError marks a terminal model message produced from a transport
	// or provider failure. Traceback holds structured error detail when
	// the provider supplied one.
	IsError   bool   `json:"is_error,omitempty"`
	Traceback string `json:"traceback,omitempty"`
}

// HasToolCalls reports whether this message requests tool execution.
func (m *Message) HasToolCalls() bool {
	return m.Role == RoleModel && len(m.ToolCalls) > 0
}

// CallIDs returns the ids of all tool calls on this message.
func (m *Message) CallIDs() []string {
	ids := make([]string, 0, len(m.ToolCalls))
	for _, tc := range m.ToolCalls {
		ids = append(ids, tc.ID)
	}
	return ids
}
