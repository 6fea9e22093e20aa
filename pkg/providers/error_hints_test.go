package providers

import (
	"net/http"
	"strings"
	"testing"
)

func TestAugmentProviderError_OpenAIIncorrectAPIKeyHint(t *testing.T) {
	msg := augmentProviderError(ProviderOpenAI, http.StatusUnauthorized, "Incorrect API key provided")
	if !strings.Contains(msg, "MINDGLOW_PROVIDERS_OPENAI_API_KEY") {
		t.Fatalf("expected openai key hint, got %q", msg)
	}
}

func TestAugmentProviderError_OpenRouterUnauthorizedHint(t *testing.T) {
	msg := augmentProviderError(ProviderOpenRouter, http.StatusUnauthorized, "No auth credentials found")
	if !strings.Contains(msg, "providers.openrouter.api_key") {
		t.Fatalf("expected openrouter key hint, got %q", msg)
	}
}

func TestAugmentProviderError_QuotaHint(t *testing.T) {
	msg := augmentProviderError(ProviderOpenAI, http.StatusTooManyRequests, "You exceeded your current quota, please check your plan")
	if !strings.Contains(msg, "no remaining quota") {
		t.Fatalf("expected quota hint, got %q", msg)
	}
}

func TestAugmentProviderError_EmptyMessageUsesStatusText(t *testing.T) {
	msg := augmentProviderError(ProviderOpenAI, http.StatusBadGateway, "")
	if msg != "Bad Gateway" {
		t.Fatalf("expected status text, got %q", msg)
	}
}

func TestAugmentProviderError_PassesThroughUnknown(t *testing.T) {
	msg := augmentProviderError(ProviderOpenAI, http.StatusBadRequest, "context length exceeded")
	if msg != "context length exceeded" {
		t.Fatalf("unexpected rewrite: %q", msg)
	}
}
