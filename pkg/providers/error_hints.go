package providers

import (
	"net/http"
	"strings"
)

func augmentProviderError(providerName string, status int, message string) string {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = http.StatusText(status)
	}
	if msg == "" {
		return msg
	}

	lower := strings.ToLower(msg)
	providerName = normalizeName(providerName)

	switch {
	case status == http.StatusUnauthorized || strings.Contains(lower, "incorrect api key provided"):
		switch providerName {
		case ProviderOpenRouter:
			return msg + " Hint: check providers.openrouter.api_key (MINDGLOW_PROVIDERS_OPENROUTER_API_KEY)."
		default:
			return msg + " Hint: check providers.openai.api_key (MINDGLOW_PROVIDERS_OPENAI_API_KEY)."
		}
	case strings.Contains(lower, "insufficient_quota") || strings.Contains(lower, "exceeded your current quota"):
		return msg + " Hint: the account has no remaining quota; replies will fail until billing is resolved."
	case status == http.StatusTooManyRequests:
		return msg + " Hint: the provider is rate limiting requests; retry later."
	case status == http.StatusNotFound && strings.Contains(lower, "model"):
		return msg + " Hint: generation.model or memory.embedding_model names a model this provider does not serve."
	}

	return msg
}
