package config

import (
	"strings"
	"testing"

	"inkwell/internal/capabilities"
)

const validProvidersYAML = `
providers:
  - id: claude-main
    name: Claude Sonnet
    type: anthropic
    api_key_env: TEST_ANTHROPIC_KEY
    model_id: claude-sonnet-4-5
    timeout_seconds: 90
  - id: gpt-drafts
    name: GPT Drafting
    type: openai
    base_url: https://openrouter.ai/api/v1
    api_key: literal-key
    model_id: gpt-5-mini
    capabilities:
      multimodal: false
      function_calling: true
roles:
  WRITING: gpt-drafts
  EDITING: claude-main
  CHAT: claude-main
`

func TestParseProviders(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		t.Setenv("TEST_ANTHROPIC_KEY", "sk-from-env")

		p, err := ParseProviders([]byte(validProvidersYAML))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}

		if len(p.Providers) != 2 {
			t.Fatalf("providers = %d, want 2", len(p.Providers))
		}

		claude, err := p.ForRole(RoleChat)
		if err != nil {
			t.Fatal(err)
		}
		if claude.ID != "claude-main" {
			t.Errorf("chat provider = %q", claude.ID)
		}
		if claude.APIKey != "sk-from-env" {
			t.Errorf("api key not resolved from env: %q", claude.APIKey)
		}
		if claude.Timeout().Seconds() != 90 {
			t.Errorf("timeout = %v", claude.Timeout())
		}

		gpt, err := p.ForRole(RoleWriting)
		if err != nil {
			t.Fatal(err)
		}
		if gpt.APIKey != "literal-key" {
			t.Errorf("literal api key lost: %q", gpt.APIKey)
		}
		if gpt.Timeout().Seconds() != 120 {
			t.Errorf("default timeout = %v", gpt.Timeout())
		}
	})

	t.Run("unbound role", func(t *testing.T) {
		yaml := strings.Replace(validProvidersYAML, "CHAT: claude-main", "", 1)
		if _, err := ParseProviders([]byte(yaml)); err == nil {
			t.Fatal("expected error for unbound role")
		}
	})

	t.Run("role bound to unknown provider", func(t *testing.T) {
		yaml := strings.Replace(validProvidersYAML, "CHAT: claude-main", "CHAT: nope", 1)
		if _, err := ParseProviders([]byte(yaml)); err == nil {
			t.Fatal("expected error for unknown provider id")
		}
	})

	t.Run("unknown provider type", func(t *testing.T) {
		yaml := strings.Replace(validProvidersYAML, "type: anthropic", "type: cohere", 1)
		if _, err := ParseProviders([]byte(yaml)); err == nil {
			t.Fatal("expected error for unknown type")
		}
	})

	t.Run("duplicate provider id", func(t *testing.T) {
		yaml := strings.Replace(validProvidersYAML, "id: gpt-drafts", "id: claude-main", 1)
		if _, err := ParseProviders([]byte(yaml)); err == nil {
			t.Fatal("expected error for duplicate id")
		}
	})

	t.Run("missing model id", func(t *testing.T) {
		yaml := strings.Replace(validProvidersYAML, "model_id: gpt-5-mini", "", 1)
		if _, err := ParseProviders([]byte(yaml)); err == nil {
			t.Fatal("expected error for missing model_id")
		}
	})

	t.Run("invalid tri-state", func(t *testing.T) {
		yaml := strings.Replace(validProvidersYAML, "multimodal: false", "multimodal: sometimes", 1)
		if _, err := ParseProviders([]byte(yaml)); err == nil {
			t.Fatal("expected error for invalid tri-state")
		}
	})
}

func TestResolveCapabilities(t *testing.T) {
	reg, err := capabilities.NewRegistry()
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}

	t.Run("auto resolves from the table", func(t *testing.T) {
		pc := &ProviderConfig{Type: ProviderAnthropic, ModelID: "claude-sonnet-4-5"}
		caps := pc.ResolveCapabilities(reg)
		if !caps.FunctionCalling || !caps.Multimodal {
			t.Errorf("caps = %+v, want both true for a known model", caps)
		}
	})

	t.Run("explicit override wins", func(t *testing.T) {
		pc := &ProviderConfig{
			Type:         ProviderAnthropic,
			ModelID:      "claude-sonnet-4-5",
			Capabilities: CapabilitySettings{FunctionCalling: TriFalse},
		}
		caps := pc.ResolveCapabilities(reg)
		if caps.FunctionCalling {
			t.Error("explicit false overridden by the table")
		}
	})

	t.Run("unknown model resolves auto to false", func(t *testing.T) {
		pc := &ProviderConfig{Type: ProviderOpenAI, ModelID: "some-local-model"}
		caps := pc.ResolveCapabilities(reg)
		if caps.FunctionCalling || caps.Multimodal {
			t.Errorf("caps = %+v, want false for an unknown model", caps)
		}
	})

	t.Run("explicit true on unknown model", func(t *testing.T) {
		pc := &ProviderConfig{
			Type:         ProviderOpenAI,
			ModelID:      "some-local-model",
			Capabilities: CapabilitySettings{FunctionCalling: TriTrue},
		}
		if caps := pc.ResolveCapabilities(reg); !caps.FunctionCalling {
			t.Error("explicit true ignored for unknown model")
		}
	})
}
