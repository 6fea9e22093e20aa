package providers

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/mindglow/mindglow/pkg/config"
)

const (
	localChargramModel = "mindglow-chargram-384-v1"
	localHashModel     = "mindglow-hash-256-v1"
)

func init() {
	RegisterEmbeddingFactory(ProviderLocal, func(cfg *config.Config) (Embedder, error) {
		model := ""
		if cfg != nil {
			model = cfg.Memory.EmbeddingModel
		}
		return NewLocalEmbedder(model), nil
	}, nil)
}

// LocalEmbedder hashes character trigrams and word tokens into a fixed
// vector. It needs no network and is deterministic, so it backs offline runs
// and tests. Vectors are unit length.
type LocalEmbedder struct {
	modelID  string
	dims     int
	trigrams bool
}

var _ Embedder = (*LocalEmbedder)(nil)

// NewLocalEmbedder picks the hash variant for "hash" model names and the
// chargram variant for everything else.
func NewLocalEmbedder(model string) *LocalEmbedder {
	switch strings.ToLower(strings.TrimSpace(model)) {
	case localHashModel, "hash", "hash-256":
		return &LocalEmbedder{modelID: localHashModel, dims: 256}
	default:
		return &LocalEmbedder{modelID: localChargramModel, dims: 384, trigrams: true}
	}
}

func (e *LocalEmbedder) Name() string   { return ProviderLocal }
func (e *LocalEmbedder) Dimension() int { return e.dims }
func (e *LocalEmbedder) ModelID() string {
	return e.modelID
}

func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *LocalEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *LocalEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.dims)
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return vec
	}
	if e.trigrams {
		window := []rune("#" + normalized + "#")
		for i := 0; i+3 <= len(window); i++ {
			vec[e.bucket(string(window[i:i+3]))] += 1
		}
	}
	for _, token := range tokenize(normalized) {
		sum := hash64("tok:" + token)
		idx := int(sum % uint64(e.dims))
		if e.trigrams {
			vec[idx] += 1.25
			continue
		}
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[idx] += sign * float32(1+len([]rune(token))/8)
	}
	normalizeVector(vec)
	return vec
}

func (e *LocalEmbedder) bucket(s string) int {
	return int(hash64(s) % uint64(e.dims))
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// tokenize splits on anything that is not a letter, digit, underscore or
// hyphen, so Arabic words survive as tokens.
func tokenize(text string) []string {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-')
	})
	if len(tokens) == 0 {
		return []string{text}
	}
	return tokens
}

func normalizeVector(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}
