package toolexec

import (
	"inkwell/internal/provider"
)

// DefaultTools returns the tool definitions advertised to the model.
// The schemas mirror what the executor implements; the gateway only
// needs them to let the model emit well-formed calls.
func DefaultTools(allowWebSearch bool) []provider.ToolDef {
	tools := []provider.ToolDef{
		{
			Name:        "chapter_view",
			Description: "Read the full text of a chapter. Use before editing so changes are based on current content.",
			Properties: map[string]any{
				"chapter_id": map[string]any{
					"type":        "string",
					"description": "ID of the chapter to read. Omit to read the active chapter.",
				},
			},
		},
		{
			Name:        "chapter_edit",
			Description: "Replace a range of the chapter text. Provide the exact text to find and its replacement.",
			Properties: map[string]any{
				"chapter_id": map[string]any{
					"type":        "string",
					"description": "ID of the chapter to edit. Omit to edit the active chapter.",
				},
				"find": map[string]any{
					"type":        "string",
					"description": "Exact text to replace. Must appear exactly once in the chapter.",
				},
				"replace": map[string]any{
					"type":        "string",
					"description": "Replacement text.",
				},
			},
			Required: []string{"find", "replace"},
		},
		{
			Name:        "sourcebook_view",
			Description: "List sourcebook entries for the story, or read one entry in full.",
			Properties: map[string]any{
				"entry_id": map[string]any{
					"type":        "string",
					"description": "ID of a single entry to read. Omit to list all entries.",
				},
			},
		},
		{
			Name:        "sourcebook_edit",
			Description: "Create or update a sourcebook entry for a character, place, or concept.",
			Properties: map[string]any{
				"entry_id": map[string]any{
					"type":        "string",
					"description": "ID of the entry to update. Omit to create a new entry.",
				},
				"name": map[string]any{
					"type":        "string",
					"description": "Entry name.",
				},
				"kind": map[string]any{
					"type":        "string",
					"description": "Entry kind, e.g. character, place, concept.",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Entry body text.",
				},
			},
			Required: []string{"name"},
		},
	}

	if allowWebSearch {
		tools = append(tools, provider.ToolDef{
			Name:        "web_search",
			Description: "Search the web for factual reference material. Returns result snippets with source URLs.",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query.",
				},
			},
			Required: []string{"query"},
		})
	}

	return tools
}
