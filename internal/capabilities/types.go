package capabilities

import "gopkg.in/yaml.v3"

// ModelCapabilities holds the static metadata for one model.
type ModelCapabilities struct {
	// Model identifier (set during YAML unmarshaling)
	ID string `yaml:"-" json:"id"`

	DisplayName string `yaml:"display_name" json:"display_name"`
	Description string `yaml:"description" json:"description"`

	// Core capabilities
	SupportsTools    bool `yaml:"supports_tools" json:"supports_tools"`
	SupportsThinking bool `yaml:"supports_thinking" json:"supports_thinking"`
	SupportsVision   bool `yaml:"supports_vision" json:"supports_vision"`

	// RequiresThinking means this model cannot have thinking disabled
	RequiresThinking bool `yaml:"requires_thinking" json:"requires_thinking"`

	// Limits
	ContextWindow int `yaml:"context_window" json:"context_window"`
	MaxOutput     int `yaml:"max_output" json:"max_output"`
}

// ProviderCapabilities holds all models for one provider.
type ProviderCapabilities struct {
	Provider string              `yaml:"provider" json:"provider"`
	Models   []ModelCapabilities `yaml:"-" json:"models"` // Ordered slice, populated by custom unmarshaler
}

// UnmarshalYAML preserves model order from the YAML file. Models are
// declared as a map keyed by model id, but the slice keeps file order so
// listings show models in the order we curated them.
func (p *ProviderCapabilities) UnmarshalYAML(node *yaml.Node) error {
	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value == "provider" {
			p.Provider = node.Content[i+1].Value
			break
		}
	}

	type modelsOnly struct {
		Models map[string]ModelCapabilities `yaml:"models"`
	}
	var m modelsOnly
	if err := node.Decode(&m); err != nil {
		return err
	}

	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value == "models" {
			modelsNode := node.Content[i+1]
			// modelsNode.Content alternates: key, value, key, value...
			for j := 0; j < len(modelsNode.Content); j += 2 {
				modelID := modelsNode.Content[j].Value
				if model, ok := m.Models[modelID]; ok {
					model.ID = modelID
					p.Models = append(p.Models, model)
				}
			}
			break
		}
	}

	return nil
}
