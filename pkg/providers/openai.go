// MindGlow - Non-directive reflection companion backend
// License: MIT
//
// Copyright (c) 2026 MindGlow contributors

package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mindglow/mindglow/pkg/config"
	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIAPIBase        = "https://api.openai.com/v1"
	defaultOpenAIModel          = "gpt-4o"
	defaultOpenAIEmbeddingModel = "text-embedding-3-small"
	defaultHTTPTimeout          = 120 * time.Second
)

func init() {
	RegisterChatFactory(ProviderOpenAI, newOpenAIChatFromConfig, validateOpenAIConfig)
	RegisterEmbeddingFactory(ProviderOpenAI, newOpenAIEmbedderFromConfig, validateOpenAIConfig)
}

// OpenAIProvider speaks the OpenAI chat completions and embeddings API.
// OpenRouter reuses it with a different base URL and headers.
type OpenAIProvider struct {
	name           string
	client         *openai.Client
	defaultModel   string
	embeddingModel string
}

var _ Provider = (*OpenAIProvider)(nil)

type openAIClientOptions struct {
	name           string
	apiKey         string
	apiBase        string
	organization   string
	proxy          string
	defaultModel   string
	embeddingModel string
	extraHeaders   map[string]string
}

func validateOpenAIConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if strings.TrimSpace(cfg.Providers.OpenAI.APIKey) == "" {
		return fmt.Errorf("OpenAI API key is required (set providers.openai.api_key or MINDGLOW_PROVIDERS_OPENAI_API_KEY)")
	}
	return nil
}

func newOpenAIChatFromConfig(cfg *config.Config) (Completer, error) {
	return newOpenAIFromConfig(cfg)
}

func newOpenAIEmbedderFromConfig(cfg *config.Config) (Embedder, error) {
	return newOpenAIFromConfig(cfg)
}

func newOpenAIFromConfig(cfg *config.Config) (*OpenAIProvider, error) {
	if err := validateOpenAIConfig(cfg); err != nil {
		return nil, err
	}
	return newOpenAIProvider(openAIClientOptions{
		name:           ProviderOpenAI,
		apiKey:         cfg.Providers.OpenAI.APIKey,
		apiBase:        cfg.Providers.OpenAI.APIBase,
		organization:   cfg.Providers.OpenAI.Organization,
		proxy:          cfg.Providers.OpenAI.Proxy,
		defaultModel:   cfg.Generation.Model,
		embeddingModel: cfg.Memory.EmbeddingModel,
	})
}

func newOpenAIProvider(opts openAIClientOptions) (*OpenAIProvider, error) {
	apiKey := strings.TrimSpace(opts.apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key is required", opts.name)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	apiBase := strings.TrimRight(strings.TrimSpace(opts.apiBase), "/")
	if apiBase == "" {
		apiBase = defaultOpenAIAPIBase
	}
	clientCfg.BaseURL = apiBase
	if org := strings.TrimSpace(opts.organization); org != "" {
		clientCfg.OrgID = org
	}

	transport := http.DefaultTransport
	if proxy := strings.TrimSpace(opts.proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse %s proxy: %w", opts.name, err)
		}
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	if len(opts.extraHeaders) > 0 {
		transport = &headerTransport{base: transport, headers: cleanHeaders(opts.extraHeaders)}
	}
	clientCfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout, Transport: transport}

	model := strings.TrimSpace(opts.defaultModel)
	if model == "" {
		model = defaultOpenAIModel
	}
	embeddingModel := strings.TrimSpace(opts.embeddingModel)
	if embeddingModel == "" {
		embeddingModel = defaultOpenAIEmbeddingModel
	}

	return &OpenAIProvider{
		name:           opts.name,
		client:         openai.NewClientWithConfig(clientCfg),
		defaultModel:   model,
		embeddingModel: embeddingModel,
	}, nil
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = p.defaultModel
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: float32(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", p.wrapError("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %s chat completion returned no choices", ErrGeneration, p.name)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany sends one request for all texts. Results are placed by the index
// the API reports, so the output order always matches the input order.
func (p *OpenAIProvider) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = strings.TrimSpace(t)
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: input,
		Model: openai.EmbeddingModel(p.embeddingModel),
	})
	if err != nil {
		return nil, p.wrapError("embeddings", err)
	}
	return orderEmbeddings(p.name, len(texts), resp.Data)
}

func orderEmbeddings(provider string, want int, data []openai.Embedding) ([][]float32, error) {
	if len(data) != want {
		return nil, fmt.Errorf("%w: %s returned %d embeddings for %d inputs", ErrGeneration, provider, len(data), want)
	}
	out := make([][]float32, want)
	for _, d := range data {
		if d.Index < 0 || d.Index >= want || out[d.Index] != nil {
			return nil, fmt.Errorf("%w: %s returned invalid embedding index %d", ErrGeneration, provider, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (p *OpenAIProvider) Dimension() int {
	switch p.embeddingModel {
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

func (p *OpenAIProvider) wrapError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := augmentProviderError(p.name, apiErr.HTTPStatusCode, apiErr.Message)
		return fmt.Errorf("%w: %s %s failed: status=%d error=%s", ErrGeneration, p.name, op, apiErr.HTTPStatusCode, msg)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: %s %s failed: status=%d: %v", ErrGeneration, p.name, op, reqErr.HTTPStatusCode, reqErr.Err)
	}
	return fmt.Errorf("%w: %s %s failed: %v", ErrGeneration, p.name, op, err)
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for name, value := range t.headers {
		req.Header.Set(name, value)
	}
	return t.base.RoundTrip(req)
}

func cleanHeaders(in map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range in {
		name := strings.TrimSpace(k)
		value := strings.TrimSpace(v)
		if name == "" || value == "" {
			continue
		}
		out[name] = value
	}
	return out
}
