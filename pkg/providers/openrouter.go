package providers

import (
	"fmt"
	"strings"

	"github.com/mindglow/mindglow/pkg/config"
)

const (
	defaultOpenRouterAPIBase = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "openai/gpt-4o"
	openRouterReferer        = "https://github.com/mindglow/mindglow"
	openRouterTitle          = "MindGlow"
)

func init() {
	RegisterChatFactory(ProviderOpenRouter, newOpenRouterChatFromConfig, validateOpenRouterConfig)
}

func validateOpenRouterConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if strings.TrimSpace(cfg.Providers.OpenRouter.APIKey) == "" {
		return fmt.Errorf("OpenRouter API key is required (set providers.openrouter.api_key or MINDGLOW_PROVIDERS_OPENROUTER_API_KEY)")
	}
	return nil
}

// OpenRouter only serves chat here; embeddings stay on openai or local.
func newOpenRouterChatFromConfig(cfg *config.Config) (Completer, error) {
	if err := validateOpenRouterConfig(cfg); err != nil {
		return nil, err
	}

	apiBase := strings.TrimSpace(cfg.Providers.OpenRouter.APIBase)
	if apiBase == "" {
		apiBase = defaultOpenRouterAPIBase
	}
	model := strings.TrimSpace(cfg.Generation.Model)
	if model == "" || !strings.Contains(model, "/") {
		model = defaultOpenRouterModel
	}
	return newOpenAIProvider(openAIClientOptions{
		name:         ProviderOpenRouter,
		apiKey:       cfg.Providers.OpenRouter.APIKey,
		apiBase:      apiBase,
		proxy:        cfg.Providers.OpenRouter.Proxy,
		defaultModel: model,
		extraHeaders: map[string]string{
			"HTTP-Referer": openRouterReferer,
			"X-Title":      openRouterTitle,
		},
	})
}
