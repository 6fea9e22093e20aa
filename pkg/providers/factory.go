package providers

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mindglow/mindglow/pkg/config"
)

const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderLocal      = "local"
)

type chatFactory struct {
	build    func(cfg *config.Config) (Completer, error)
	validate func(cfg *config.Config) error
}

type embeddingFactory struct {
	build    func(cfg *config.Config) (Embedder, error)
	validate func(cfg *config.Config) error
}

var (
	factoryMu          sync.RWMutex
	chatFactories      = map[string]chatFactory{}
	embeddingFactories = map[string]embeddingFactory{}
	registrationErr    error
)

func RegisterChatFactory(name string, build func(cfg *config.Config) (Completer, error), validate func(cfg *config.Config) error) {
	name = normalizeName(name)
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if name == "" {
		registrationErr = errors.Join(registrationErr, fmt.Errorf("providers: chat factory name is required"))
		return
	}
	if build == nil {
		registrationErr = errors.Join(registrationErr, fmt.Errorf("providers: chat factory %q build func is required", name))
		return
	}
	chatFactories[name] = chatFactory{build: build, validate: validate}
}

func RegisterEmbeddingFactory(name string, build func(cfg *config.Config) (Embedder, error), validate func(cfg *config.Config) error) {
	name = normalizeName(name)
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if name == "" {
		registrationErr = errors.Join(registrationErr, fmt.Errorf("providers: embedding factory name is required"))
		return
	}
	if build == nil {
		registrationErr = errors.Join(registrationErr, fmt.Errorf("providers: embedding factory %q build func is required", name))
		return
	}
	embeddingFactories[name] = embeddingFactory{build: build, validate: validate}
}

// SupportedProviders lists registered chat and embedding provider names.
func SupportedProviders() (chat []string, embedding []string) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	for name := range chatFactories {
		chat = append(chat, name)
	}
	for name := range embeddingFactories {
		embedding = append(embedding, name)
	}
	sort.Strings(chat)
	sort.Strings(embedding)
	return chat, embedding
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func chatProviderName(cfg *config.Config) string {
	if cfg == nil {
		return ProviderOpenAI
	}
	if name := normalizeName(cfg.Providers.Chat); name != "" {
		return name
	}
	return ProviderOpenAI
}

func embeddingProviderName(cfg *config.Config) string {
	if cfg == nil {
		return ProviderOpenAI
	}
	if name := normalizeName(cfg.Providers.Embedding); name != "" {
		return name
	}
	return ProviderOpenAI
}

// ValidateProviderConfig checks credentials for the configured chat and
// embedding providers without creating clients.
func ValidateProviderConfig(cfg *config.Config) error {
	chat, embed, err := getFactories(cfg)
	if err != nil {
		return err
	}
	if chat.validate != nil {
		if err := chat.validate(cfg); err != nil {
			return err
		}
	}
	if embed.validate != nil {
		if err := embed.validate(cfg); err != nil {
			return err
		}
	}
	return nil
}

// CreateProvider builds the completion + embedding gateway selected by cfg.
func CreateProvider(cfg *config.Config) (Provider, error) {
	chat, embed, err := getFactories(cfg)
	if err != nil {
		return nil, err
	}
	completer, err := chat.build(cfg)
	if err != nil {
		return nil, err
	}
	embedder, err := embed.build(cfg)
	if err != nil {
		return nil, err
	}
	if p, ok := completer.(Provider); ok && p.Name() == embedder.Name() {
		return p, nil
	}
	return Combine(completer, embedder), nil
}

func getFactories(cfg *config.Config) (chatFactory, embeddingFactory, error) {
	chatName := chatProviderName(cfg)
	embedName := embeddingProviderName(cfg)

	factoryMu.RLock()
	defer factoryMu.RUnlock()
	if registrationErr != nil {
		return chatFactory{}, embeddingFactory{}, fmt.Errorf("provider registration failed: %w", registrationErr)
	}
	chat, ok := chatFactories[chatName]
	if !ok {
		return chatFactory{}, embeddingFactory{}, fmt.Errorf("unsupported chat provider %q", chatName)
	}
	embed, ok := embeddingFactories[embedName]
	if !ok {
		return chatFactory{}, embeddingFactory{}, fmt.Errorf("unsupported embedding provider %q", embedName)
	}
	return chat, embed, nil
}
