package provider

import (
	"fmt"
	"log/slog"

	"inkwell/internal/capabilities"
	"inkwell/internal/config"
)

// Registry binds the three roles to gateways. Roles bound to the same
// provider id share one gateway instance.
type Registry struct {
	byRole map[config.Role]Gateway
}

// NewRegistry builds a gateway per distinct provider referenced by the
// role bindings. Fails fast on missing keys or unknown types so a
// misconfigured server never starts.
func NewRegistry(providers *config.Providers, caps *capabilities.Registry, logger *slog.Logger) (*Registry, error) {
	gateways := make(map[string]Gateway)
	byRole := make(map[config.Role]Gateway, len(config.Roles))

	for _, role := range config.Roles {
		cfg, err := providers.ForRole(role)
		if err != nil {
			return nil, err
		}

		gw, ok := gateways[cfg.ID]
		if !ok {
			gw, err = newGateway(cfg, caps, logger)
			if err != nil {
				return nil, fmt.Errorf("role %s: %w", role, err)
			}
			gateways[cfg.ID] = gw
		}
		byRole[role] = gw

		logger.Info("provider bound",
			"role", string(role),
			"provider", cfg.ID,
			"type", string(cfg.Type),
			"model", cfg.ModelID,
		)
	}

	return &Registry{byRole: byRole}, nil
}

func newGateway(cfg *config.ProviderConfig, caps *capabilities.Registry, logger *slog.Logger) (Gateway, error) {
	switch cfg.Type {
	case config.ProviderAnthropic:
		return NewAnthropicGateway(cfg, caps, logger)
	case config.ProviderOpenAI:
		return NewOpenAIGateway(cfg, caps, logger)
	default:
		return nil, fmt.Errorf("provider %s: unknown type %q", cfg.ID, cfg.Type)
	}
}

// ForRole returns the gateway bound to a role. NewRegistry guarantees
// every role in config.Roles is bound.
func (r *Registry) ForRole(role config.Role) Gateway {
	return r.byRole[role]
}
