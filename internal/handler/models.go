package handler

import (
	"log/slog"
	"net/http"

	"inkwell/internal/capabilities"
	"inkwell/internal/config"
	"inkwell/internal/httputil"
)

// ModelsHandler reports the model bindings and their capabilities.
type ModelsHandler struct {
	providers *config.Providers
	registry  *capabilities.Registry
	logger    *slog.Logger
}

// NewModelsHandler creates a models handler.
func NewModelsHandler(providers *config.Providers, registry *capabilities.Registry, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{providers: providers, registry: registry, logger: logger}
}

// RoleBinding is one role's resolved model binding.
type RoleBinding struct {
	Role          string                      `json:"role"`
	Provider      string                      `json:"provider"`
	Name          string                      `json:"name"`
	Model         string                      `json:"model"`
	Capabilities  config.ResolvedCapabilities `json:"capabilities"`
	ContextWindow int                         `json:"context_window,omitempty"`
	MaxOutput     int                         `json:"max_output,omitempty"`
}

// GetCapabilities lists the three role bindings with their resolved
// capabilities, so the client knows which surfaces to enable.
// GET /api/models/capabilities
func (h *ModelsHandler) GetCapabilities(w http.ResponseWriter, r *http.Request) {
	bindings := make([]RoleBinding, 0, len(config.Roles))

	for _, role := range config.Roles {
		pc, err := h.providers.ForRole(role)
		if err != nil {
			// Startup validation guarantees every role is bound; an
			// unbound role here is a bug worth logging, not a 500.
			h.logger.Error("role binding missing", "role", string(role), "error", err)
			continue
		}

		binding := RoleBinding{
			Role:         string(role),
			Provider:     pc.ID,
			Name:         pc.Name,
			Model:        pc.ModelID,
			Capabilities: pc.ResolveCapabilities(h.registry),
		}
		if caps, ok := h.registry.Lookup(string(pc.Type), pc.ModelID); ok {
			binding.ContextWindow = caps.ContextWindow
			binding.MaxOutput = caps.MaxOutput
		}
		bindings = append(bindings, binding)
	}

	httputil.RespondJSON(w, http.StatusOK, map[string][]RoleBinding{"roles": bindings})
}
