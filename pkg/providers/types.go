package providers

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrGeneration marks a completion or embedding provider failure: the
// provider was unreachable, rejected the request, or returned malformed output.
var ErrGeneration = errors.New("generation failed")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Completer turns an ordered message list into reply text.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error)
	Name() string
}

// Embedder maps text to fixed-length vectors. EmbedMany returns vectors in
// input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimension() int
}

// Provider is the capability pair the pipeline depends on.
type Provider interface {
	Completer
	Embedder
}

type gateway struct {
	Completer
	embedder Embedder
}

// Combine pairs a completer with an embedder from a different backend.
func Combine(c Completer, e Embedder) Provider {
	return &gateway{Completer: c, embedder: e}
}

func (g *gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	return g.embedder.Embed(ctx, text)
}

func (g *gateway) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	return g.embedder.EmbedMany(ctx, texts)
}

func (g *gateway) Dimension() int { return g.embedder.Dimension() }

func (g *gateway) Name() string {
	return g.Completer.Name() + "+" + g.embedder.Name()
}
