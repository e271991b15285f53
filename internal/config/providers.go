package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"inkwell/internal/capabilities"
)

// Role names the three model assignments the engines draw from.
type Role string

const (
	RoleWriting Role = "WRITING"
	RoleEditing Role = "EDITING"
	RoleChat    Role = "CHAT"
)

// Roles lists every role; all must be bound in the providers file.
var Roles = []Role{RoleWriting, RoleEditing, RoleChat}

// ProviderType selects the gateway adapter.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	// ProviderOpenAI covers OpenAI itself plus any OpenAI-compatible
	// endpoint (OpenRouter, local servers) via BaseURL.
	ProviderOpenAI ProviderType = "openai"
)

// TriState is an explicit bool override with an "auto" default that
// resolves against the model capability registry.
type TriState string

const (
	TriAuto  TriState = "auto"
	TriTrue  TriState = "true"
	TriFalse TriState = "false"
)

// UnmarshalYAML accepts bare bools as well as the string "auto".
func (t *TriState) UnmarshalYAML(node *yaml.Node) error {
	switch node.Value {
	case "", "auto":
		*t = TriAuto
	case "true":
		*t = TriTrue
	case "false":
		*t = TriFalse
	default:
		return fmt.Errorf("invalid tri-state %q (want auto|true|false)", node.Value)
	}
	return nil
}

// CapabilitySettings holds per-provider capability overrides.
type CapabilitySettings struct {
	Multimodal      TriState `yaml:"multimodal"`
	FunctionCalling TriState `yaml:"function_calling"`
}

// ResolvedCapabilities is CapabilitySettings with every auto resolved.
type ResolvedCapabilities struct {
	Multimodal      bool `json:"multimodal"`
	FunctionCalling bool `json:"function_calling"`
}

// ProviderConfig describes one model endpoint. Read-only to the engines;
// edits happen in the providers file, not through the API.
type ProviderConfig struct {
	ID      string       `yaml:"id"`
	Name    string       `yaml:"name"`
	Type    ProviderType `yaml:"type"`
	BaseURL string       `yaml:"base_url"`

	// APIKeyEnv names the environment variable holding the key. APIKey
	// is a literal override for local development; it wins when set.
	APIKeyEnv string `yaml:"api_key_env"`
	APIKey    string `yaml:"api_key"`

	ModelID        string   `yaml:"model_id"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Temperature    *float64 `yaml:"temperature"`
	TopP           *float64 `yaml:"top_p"`

	Capabilities CapabilitySettings `yaml:"capabilities"`
}

// Timeout returns the request timeout, defaulting to 120s.
func (p *ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// ResolveCapabilities resolves auto tri-states against the capability
// registry. Unknown models resolve to false so we never advertise tools
// to a model that cannot accept them.
func (p *ProviderConfig) ResolveCapabilities(reg *capabilities.Registry) ResolvedCapabilities {
	caps, known := reg.Lookup(string(p.Type), p.ModelID)

	resolve := func(t TriState, fromTable bool) bool {
		switch t {
		case TriTrue:
			return true
		case TriFalse:
			return false
		default:
			return known && fromTable
		}
	}

	var vision, tools bool
	if known {
		vision = caps.SupportsVision
		tools = caps.SupportsTools
	}

	return ResolvedCapabilities{
		Multimodal:      resolve(p.Capabilities.Multimodal, vision),
		FunctionCalling: resolve(p.Capabilities.FunctionCalling, tools),
	}
}

// Providers is the parsed providers file: the configs plus the role
// bindings.
type Providers struct {
	Providers []ProviderConfig `yaml:"providers"`
	Roles     map[Role]string  `yaml:"roles"` // role -> provider id
}

// LoadProviders parses the providers file and resolves API keys from the
// environment. Every role must be bound to a declared provider.
func LoadProviders(path string) (*Providers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	return ParseProviders(data)
}

// ParseProviders parses providers YAML from memory. Split out for tests.
func ParseProviders(data []byte) (*Providers, error) {
	var p Providers
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse providers file: %w", err)
	}

	byID := make(map[string]int, len(p.Providers))
	for i := range p.Providers {
		pc := &p.Providers[i]
		if pc.ID == "" {
			return nil, fmt.Errorf("provider %d: missing id", i)
		}
		if _, dup := byID[pc.ID]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", pc.ID)
		}
		byID[pc.ID] = i

		switch pc.Type {
		case ProviderAnthropic, ProviderOpenAI:
		default:
			return nil, fmt.Errorf("provider %q: unknown type %q", pc.ID, pc.Type)
		}
		if pc.ModelID == "" {
			return nil, fmt.Errorf("provider %q: missing model_id", pc.ID)
		}

		if pc.APIKey == "" && pc.APIKeyEnv != "" {
			pc.APIKey = os.Getenv(pc.APIKeyEnv)
		}
	}

	for _, role := range Roles {
		id, ok := p.Roles[role]
		if !ok {
			return nil, fmt.Errorf("role %s: not bound to a provider", role)
		}
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("role %s: unknown provider id %q", role, id)
		}
	}

	return &p, nil
}

// ForRole returns the provider config bound to a role.
func (p *Providers) ForRole(role Role) (*ProviderConfig, error) {
	id, ok := p.Roles[role]
	if !ok {
		return nil, fmt.Errorf("role %s: not bound to a provider", role)
	}
	for i := range p.Providers {
		if p.Providers[i].ID == id {
			return &p.Providers[i], nil
		}
	}
	return nil, fmt.Errorf("role %s: unknown provider id %q", role, id)
}
