package toolexec

import (
	"encoding/json"

	"github.com/google/uuid"

	"inkwell/internal/domain/models/chat"
)

// Normalize converts session history to the executor's wire shape.
// Model messages become "assistant" and tool-call arguments are
// JSON-encoded strings. Thinking text never crosses the boundary.
func Normalize(messages []chat.Message) []WireMessage {
	out := make([]WireMessage, 0, len(messages))
	for _, msg := range messages {
		wire := WireMessage{
			Role:       wireRole(msg.Role),
			Content:    msg.Text,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}
		for _, call := range msg.ToolCalls {
			wire.ToolCalls = append(wire.ToolCalls, WireToolCall{
				ID:   call.ID,
				Type: "function",
				Function: WireFunction{
					Name:      call.Name,
					Arguments: encodeArgs(call.Args),
				},
			})
		}
		out = append(out, wire)
	}
	return out
}

// AppendedToMessages converts executor output back to domain messages,
// minting fresh ids. "assistant" maps back to the model role.
func AppendedToMessages(appended []WireMessage) []chat.Message {
	out := make([]chat.Message, 0, len(appended))
	for _, wire := range appended {
		out = append(out, chat.Message{
			ID:         uuid.NewString(),
			Role:       domainRole(wire.Role),
			Text:       wire.Content,
			ToolCallID: wire.ToolCallID,
			Name:       wire.Name,
		})
	}
	return out
}

func wireRole(role string) string {
	if role == chat.RoleModel {
		return "assistant"
	}
	return role
}

func domainRole(role string) string {
	if role == "assistant" {
		return chat.RoleModel
	}
	return role
}

func encodeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
