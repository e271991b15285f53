package capabilities

import "testing"

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("load embedded tables: %v", err)
	}

	providers := reg.Providers()
	if len(providers) != 2 {
		t.Fatalf("providers = %v, want anthropic and openai", providers)
	}
	seen := map[string]bool{}
	for _, p := range providers {
		seen[p] = true
	}
	if !seen["anthropic"] || !seen["openai"] {
		t.Errorf("providers = %v", providers)
	}
}

func TestLookup(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatal(err)
	}

	t.Run("known model", func(t *testing.T) {
		caps, ok := reg.Lookup("anthropic", "claude-sonnet-4-5")
		if !ok {
			t.Fatal("claude-sonnet-4-5 missing from the table")
		}
		if !caps.SupportsTools || !caps.SupportsVision {
			t.Errorf("caps = %+v", caps)
		}
		if caps.ContextWindow != 200000 {
			t.Errorf("context window = %d, want 200000", caps.ContextWindow)
		}
		if caps.ID != "claude-sonnet-4-5" {
			t.Errorf("id = %q", caps.ID)
		}
	})

	t.Run("date-suffixed id matches base entry", func(t *testing.T) {
		caps, ok := reg.Lookup("anthropic", "claude-sonnet-4-5-20250929")
		if !ok {
			t.Fatal("date-suffixed id did not resolve")
		}
		if caps.ID != "claude-sonnet-4-5" {
			t.Errorf("resolved id = %q", caps.ID)
		}
	})

	t.Run("unknown model", func(t *testing.T) {
		if _, ok := reg.Lookup("openai", "llama-70b"); ok {
			t.Error("unknown model reported as known")
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		if _, ok := reg.Lookup("cohere", "command-r"); ok {
			t.Error("unknown provider reported as known")
		}
	})
}

func TestListProviderModelsKeepsFileOrder(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatal(err)
	}

	models, err := reg.ListProviderModels("openai")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"gpt-5", "gpt-5-mini", "gpt-4.1", "gpt-4o"}
	if len(models) != len(want) {
		t.Fatalf("models = %d, want %d", len(models), len(want))
	}
	for i, id := range want {
		if models[i].ID != id {
			t.Errorf("models[%d] = %q, want %q", i, models[i].ID, id)
		}
	}

	if _, err := reg.ListProviderModels("mistral"); err == nil {
		t.Error("expected error for unknown provider")
	}
}
