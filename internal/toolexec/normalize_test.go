package toolexec

import (
	"encoding/json"
	"strings"
	"testing"

	"inkwell/internal/domain/models/chat"
)

func TestNormalize(t *testing.T) {
	history := []chat.Message{
		{ID: "u-1", Role: chat.RoleUser, Text: "tighten the opening"},
		{
			ID:       "m-1",
			Role:     chat.RoleModel,
			Text:     "Let me look at the chapter first.",
			Thinking: "the user probably means chapter one",
			ToolCalls: []chat.ToolCall{
				{ID: "call-1", Name: "chapter_view", Args: map[string]any{"chapter_id": "ch-1"}},
			},
		},
		{ID: "t-1", Role: chat.RoleTool, ToolCallID: "call-1", Name: "chapter_view", Text: "The opening paragraph..."},
	}

	wire := Normalize(history)

	if len(wire) != 3 {
		t.Fatalf("len = %d, want 3", len(wire))
	}

	t.Run("model role becomes assistant", func(t *testing.T) {
		if wire[0].Role != "user" || wire[1].Role != "assistant" || wire[2].Role != "tool" {
			t.Errorf("roles = %q %q %q", wire[0].Role, wire[1].Role, wire[2].Role)
		}
	})

	t.Run("tool call args are serialized", func(t *testing.T) {
		if len(wire[1].ToolCalls) != 1 {
			t.Fatalf("tool calls = %d", len(wire[1].ToolCalls))
		}
		tc := wire[1].ToolCalls[0]
		if tc.Type != "function" || tc.Function.Name != "chapter_view" {
			t.Errorf("call = %+v", tc)
		}
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			t.Fatalf("arguments not valid JSON: %v", err)
		}
		if args["chapter_id"] != "ch-1" {
			t.Errorf("args = %v", args)
		}
	})

	t.Run("thinking never crosses the boundary", func(t *testing.T) {
		raw, err := json.Marshal(wire)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(raw), "chapter one") {
			t.Errorf("wire payload leaked thinking text: %s", raw)
		}
	})

	t.Run("tool result keeps correlation fields", func(t *testing.T) {
		if wire[2].ToolCallID != "call-1" || wire[2].Name != "chapter_view" {
			t.Errorf("tool message = %+v", wire[2])
		}
	})
}

func TestNormalizeEmptyArgs(t *testing.T) {
	wire := Normalize([]chat.Message{
		{Role: chat.RoleModel, ToolCalls: []chat.ToolCall{{ID: "call-1", Name: "sourcebook_list"}}},
	})
	if got := wire[0].ToolCalls[0].Function.Arguments; got != "{}" {
		t.Errorf("arguments = %q, want {}", got)
	}
}

func TestAppendedToMessages(t *testing.T) {
	appended := []WireMessage{
		{Role: "tool", Content: "done", ToolCallID: "call-1", Name: "chapter_edit"},
		{Role: "assistant", Content: "Edited the paragraph."},
	}

	msgs := AppendedToMessages(appended)

	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Role != chat.RoleTool || msgs[0].ToolCallID != "call-1" {
		t.Errorf("tool message = %+v", msgs[0])
	}
	if msgs[1].Role != chat.RoleModel {
		t.Errorf("assistant role mapped to %q", msgs[1].Role)
	}
	if msgs[0].ID == "" || msgs[1].ID == "" || msgs[0].ID == msgs[1].ID {
		t.Errorf("ids not minted: %q %q", msgs[0].ID, msgs[1].ID)
	}
}
