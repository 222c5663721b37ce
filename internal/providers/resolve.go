package providers

import (
	"strings"

	"voicecast/internal/config"
	"voicecast/internal/services"
)

// Resolver builds providers from configuration by slug. Construction is
// deferred until a manuscript actually names a backend, so a daemon with
// only OpenAI credentials still runs episodes that never touch Azure.
type Resolver struct {
	cfg *config.Config
}

// NewResolver constructs a provider resolver.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve returns the provider for a slug. Empty or unrecognized slugs
// fall back to the configured default backend.
func (r *Resolver) Resolve(slug string) (Provider, error) {
	normalized := strings.ToLower(strings.TrimSpace(slug))
	switch normalized {
	case openAISlug, azureSlug:
	default:
		normalized = strings.ToLower(strings.TrimSpace(r.cfg.TTS.Provider))
	}

	switch normalized {
	case azureSlug:
		return NewAzureOpenAI(
			r.cfg.AzureOpenAI.APIKey,
			r.cfg.AzureOpenAI.Endpoint,
			r.cfg.AzureOpenAI.DeploymentID,
			r.cfg.AzureOpenAI.APIVersion,
		)
	case openAISlug:
		return NewOpenAI(r.cfg.OpenAI.APIKey, r.cfg.OpenAI.Model)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "providers", "resolve",
			"no text-to-speech backend configured", nil)
	}
}

// AvailableVoices lists every voice the configured backends can offer
// without performing network calls.
func (r *Resolver) AvailableVoices() []Voice {
	var voices []Voice
	if r.cfg.OpenAI.APIKey != "" {
		if p, err := NewOpenAI(r.cfg.OpenAI.APIKey, r.cfg.OpenAI.Model); err == nil {
			voices = append(voices, p.Voices()...)
		}
	}
	if r.cfg.AzureOpenAI.APIKey != "" {
		if p, err := NewAzureOpenAI(
			r.cfg.AzureOpenAI.APIKey,
			r.cfg.AzureOpenAI.Endpoint,
			r.cfg.AzureOpenAI.DeploymentID,
			r.cfg.AzureOpenAI.APIVersion,
		); err == nil {
			voices = append(voices, p.Voices()...)
		}
	}
	return voices
}
