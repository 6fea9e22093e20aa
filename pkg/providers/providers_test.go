package providers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mindglow/mindglow/pkg/config"
)

type capturedRequest struct {
	mu      sync.Mutex
	auth    string
	org     string
	title   string
	referer string
	path    string
	body    map[string]any
}

func (c *capturedRequest) record(r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = r.Header.Get("Authorization")
	c.org = r.Header.Get("OpenAI-Organization")
	c.title = r.Header.Get("X-Title")
	c.referer = r.Header.Get("HTTP-Referer")
	c.path = r.URL.Path
	c.body = map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&c.body)
}

func chatServer(t *testing.T, seen *capturedRequest, payload string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.record(r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCreateProvider_OpenAI_Complete(t *testing.T) {
	seen := &capturedRequest{}
	server := chatServer(t, seen, `{"choices":[{"index":0,"message":{"role":"assistant","content":"  What feels most alive for you right now?  "},"finish_reason":"stop"}]}`)

	cfg := config.DefaultConfig()
	cfg.Providers.OpenAI.APIKey = "sk-test"
	cfg.Providers.OpenAI.APIBase = server.URL
	cfg.Providers.OpenAI.Organization = "org-123"

	provider, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	if provider.Name() != ProviderOpenAI {
		t.Fatalf("expected single openai provider, got %q", provider.Name())
	}

	reply, err := provider.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "be gentle"},
		{Role: RoleUser, Content: "hi"},
	}, CompletionOptions{Temperature: 0.7, MaxTokens: 500})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "What feels most alive for you right now?" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if seen.auth != "Bearer sk-test" {
		t.Fatalf("expected bearer auth, got %q", seen.auth)
	}
	if seen.org != "org-123" {
		t.Fatalf("expected org header, got %q", seen.org)
	}
	if seen.path != "/chat/completions" {
		t.Fatalf("expected /chat/completions, got %q", seen.path)
	}
	if got := seen.body["model"]; got != "gpt-4o" {
		t.Fatalf("expected configured model, got %v", got)
	}
	if got := seen.body["max_tokens"]; got != float64(500) {
		t.Fatalf("expected max_tokens 500, got %v", got)
	}
	msgs, _ := seen.body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages on the wire, got %d", len(msgs))
	}
}

func TestOpenAIProvider_CompleteOverridesModel(t *testing.T) {
	seen := &capturedRequest{}
	server := chatServer(t, seen, `{"choices":[{"message":{"content":"ok"}}]}`)
	p, err := newOpenAIProvider(openAIClientOptions{name: ProviderOpenAI, apiKey: "k", apiBase: server.URL})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if _, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, CompletionOptions{Model: "gpt-4o-mini"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := seen.body["model"]; got != "gpt-4o-mini" {
		t.Fatalf("expected override model, got %v", got)
	}
}

func TestOpenAIProvider_NoChoicesIsGenerationError(t *testing.T) {
	seen := &capturedRequest{}
	server := chatServer(t, seen, `{"choices":[]}`)
	p, err := newOpenAIProvider(openAIClientOptions{name: ProviderOpenAI, apiKey: "k", apiBase: server.URL})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	_, err = p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, CompletionOptions{})
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestOpenAIProvider_APIErrorIsGenerationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer server.Close()

	p, err := newOpenAIProvider(openAIClientOptions{name: ProviderOpenAI, apiKey: "bad", apiBase: server.URL})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	_, err = p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, CompletionOptions{})
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if !strings.Contains(err.Error(), "status=401") || !strings.Contains(err.Error(), "Hint:") {
		t.Fatalf("expected status and hint in error, got %q", err.Error())
	}
}

func TestOpenAIProvider_EmbedManyReordersByIndex(t *testing.T) {
	var gotInput []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotInput, _ = body["input"].([]any)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		],"model":"text-embedding-3-small"}`))
	}))
	defer server.Close()

	p, err := newOpenAIProvider(openAIClientOptions{name: ProviderOpenAI, apiKey: "k", apiBase: server.URL})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	vecs, err := p.EmbedMany(context.Background(), []string{" first ", "second"})
	if err != nil {
		t.Fatalf("embed many: %v", err)
	}
	if len(gotInput) != 2 || gotInput[0] != "first" {
		t.Fatalf("expected trimmed batch input, got %v", gotInput)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Fatalf("embeddings not placed by index: %v", vecs)
	}
}

func TestOpenAIProvider_EmbedManyCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1,0]}]}`))
	}))
	defer server.Close()

	p, err := newOpenAIProvider(openAIClientOptions{name: ProviderOpenAI, apiKey: "k", apiBase: server.URL})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if _, err := p.EmbedMany(context.Background(), []string{"a", "b"}); !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration on count mismatch, got %v", err)
	}
}

func TestCreateProvider_OpenRouterChatWithLocalEmbeddings(t *testing.T) {
	seen := &capturedRequest{}
	server := chatServer(t, seen, `{"choices":[{"message":{"content":"ok"}}]}`)

	cfg := config.DefaultConfig()
	cfg.Providers.Chat = "openrouter"
	cfg.Providers.Embedding = "local"
	cfg.Providers.OpenRouter.APIKey = "or-key"
	cfg.Providers.OpenRouter.APIBase = server.URL

	provider, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	if provider.Name() != "openrouter+local" {
		t.Fatalf("expected combined provider name, got %q", provider.Name())
	}
	if _, err := provider.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, CompletionOptions{}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if seen.auth != "Bearer or-key" {
		t.Fatalf("expected openrouter bearer, got %q", seen.auth)
	}
	if seen.title != openRouterTitle || seen.referer != openRouterReferer {
		t.Fatalf("expected attribution headers, got title=%q referer=%q", seen.title, seen.referer)
	}
	if got := seen.body["model"]; got != defaultOpenRouterModel {
		t.Fatalf("expected routed model %q, got %v", defaultOpenRouterModel, got)
	}
	if provider.Dimension() != 384 {
		t.Fatalf("expected local embedding dimension, got %d", provider.Dimension())
	}
}

func TestValidateProviderConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	if err := ValidateProviderConfig(cfg); err == nil || !strings.Contains(err.Error(), "OpenAI API key") {
		t.Fatalf("expected missing openai key error, got %v", err)
	}

	cfg.Providers.OpenAI.APIKey = "sk"
	if err := ValidateProviderConfig(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.Providers.Chat = "nope"
	if err := ValidateProviderConfig(cfg); err == nil || !strings.Contains(err.Error(), "unsupported chat provider") {
		t.Fatalf("expected unsupported provider error, got %v", err)
	}
}

func TestSupportedProviders(t *testing.T) {
	chat, embedding := SupportedProviders()
	if strings.Join(chat, ",") != "openai,openrouter" {
		t.Fatalf("unexpected chat providers %v", chat)
	}
	if strings.Join(embedding, ",") != "local,openai" {
		t.Fatalf("unexpected embedding providers %v", embedding)
	}
}

func TestLocalEmbedder_UnitLengthAndDeterministic(t *testing.T) {
	e := NewLocalEmbedder("")
	ctx := context.Background()
	a, err := e.Embed(ctx, "I feel stuck at work")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	b, _ := e.Embed(ctx, "I feel stuck at work")
	var norm float64
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding is not deterministic at %d", i)
		}
		norm += float64(a[i]) * float64(a[i])
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit vector, norm^2=%f", norm)
	}
}

func TestLocalEmbedder_HandlesArabicAndEmpty(t *testing.T) {
	e := NewLocalEmbedder("hash")
	if e.Dimension() != 256 {
		t.Fatalf("expected hash dims 256, got %d", e.Dimension())
	}
	vecs, err := e.EmbedMany(context.Background(), []string{"أشعر بالحزن", ""})
	if err != nil {
		t.Fatalf("embed many: %v", err)
	}
	var nonZero bool
	for _, v := range vecs[0] {
		if v != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		t.Fatalf("expected non-zero vector for arabic text")
	}
	for _, v := range vecs[1] {
		if v != 0 {
			t.Fatalf("expected zero vector for empty text")
		}
	}
}

func TestLocalEmbedder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLocalEmbedder("").Embed(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
