package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is loaded once by the entry point and passed down read-only.
type Config struct {
	Providers     ProvidersConfig     `json:"providers"`
	Generation    GenerationConfig    `json:"generation"`
	Memory        MemoryConfig        `json:"memory"`
	Language      LanguageConfig      `json:"language"`
	Crisis        CrisisConfig        `json:"crisis"`
	Gateway       GatewayConfig       `json:"gateway"`
	Channels      ChannelsConfig      `json:"channels"`
	Audit         AuditConfig         `json:"audit"`
	Observability ObservabilityConfig `json:"observability"`
}

type ProvidersConfig struct {
	// Chat selects the completion provider: "openai" or "openrouter".
	Chat string `json:"chat" env:"MINDGLOW_PROVIDERS_CHAT"`
	// Embedding selects the embedding provider: "openai" or "local".
	Embedding  string         `json:"embedding" env:"MINDGLOW_PROVIDERS_EMBEDDING"`
	OpenAI     ProviderConfig `json:"openai" envPrefix:"MINDGLOW_PROVIDERS_OPENAI_"`
	OpenRouter ProviderConfig `json:"openrouter" envPrefix:"MINDGLOW_PROVIDERS_OPENROUTER_"`
}

type ProviderConfig struct {
	APIKey       string `json:"api_key" env:"API_KEY"`
	APIBase      string `json:"api_base" env:"API_BASE"`
	Organization string `json:"organization,omitempty" env:"ORGANIZATION"`
	Proxy        string `json:"proxy,omitempty" env:"PROXY"`
}

type GenerationConfig struct {
	Model              string  `json:"model" env:"MINDGLOW_GENERATION_MODEL"`
	Temperature        float64 `json:"temperature" env:"MINDGLOW_GENERATION_TEMPERATURE"`
	MaxTokens          int     `json:"max_tokens" env:"MINDGLOW_GENERATION_MAX_TOKENS"`
	MaxFilterRetries   int     `json:"max_filter_retries" env:"MINDGLOW_GENERATION_MAX_FILTER_RETRIES"`
	SummaryTemperature float64 `json:"summary_temperature" env:"MINDGLOW_GENERATION_SUMMARY_TEMPERATURE"`
}

type MemoryConfig struct {
	EmbeddingModel      string  `json:"embedding_model" env:"MINDGLOW_MEMORY_EMBEDDING_MODEL"`
	MaxContextMessages  int     `json:"max_context_messages" env:"MINDGLOW_MEMORY_MAX_CONTEXT_MESSAGES"`
	SimilarityThreshold float64 `json:"similarity_threshold" env:"MINDGLOW_MEMORY_SIMILARITY_THRESHOLD"`
	TopK                int     `json:"top_k" env:"MINDGLOW_MEMORY_TOP_K"`
	ItemCharBudget      int     `json:"item_char_budget" env:"MINDGLOW_MEMORY_ITEM_CHAR_BUDGET"`
	MaxPastSummaries    int     `json:"max_past_summaries" env:"MINDGLOW_MEMORY_MAX_PAST_SUMMARIES"`
}

// LanguageConfig restricts detection to the languages the deployment
// expects; a smaller set is both faster and more accurate on short text.
type LanguageConfig struct {
	Languages           FlexibleStringSlice `json:"languages" env:"MINDGLOW_LANGUAGE_LANGUAGES"`
	MinRelativeDistance float64             `json:"min_relative_distance" env:"MINDGLOW_LANGUAGE_MIN_RELATIVE_DISTANCE"`
}

type CrisisConfig struct {
	// ResourcesFile optionally points at a YAML language→text table that
	// overlays the built-in crisis resources.
	ResourcesFile string `json:"resources_file" env:"MINDGLOW_CRISIS_RESOURCES_FILE"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"MINDGLOW_GATEWAY_HOST"`
	Port int    `json:"port" env:"MINDGLOW_GATEWAY_PORT"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
	// MaxSessions and SessionIdleMinutes bound the per-chat state the
	// channel loop keeps in memory.
	MaxSessions        int `json:"max_sessions" env:"MINDGLOW_CHANNELS_MAX_SESSIONS"`
	SessionIdleMinutes int `json:"session_idle_minutes" env:"MINDGLOW_CHANNELS_SESSION_IDLE_MINUTES"`
}

type DiscordConfig struct {
	Enabled   bool                `json:"enabled" env:"MINDGLOW_CHANNELS_DISCORD_ENABLED"`
	Token     string              `json:"token" env:"MINDGLOW_CHANNELS_DISCORD_TOKEN"`
	Persona   string              `json:"persona" env:"MINDGLOW_CHANNELS_DISCORD_PERSONA"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"MINDGLOW_CHANNELS_DISCORD_ALLOW_FROM"`
}

type AuditConfig struct {
	Enabled       bool   `json:"enabled" env:"MINDGLOW_AUDIT_ENABLED"`
	Path          string `json:"path" env:"MINDGLOW_AUDIT_PATH"`
	RetentionDays int    `json:"retention_days" env:"MINDGLOW_AUDIT_RETENTION_DAYS"`
	SweepCron     string `json:"sweep_cron" env:"MINDGLOW_AUDIT_SWEEP_CRON"`
}

type ObservabilityConfig struct {
	LogLevel      string  `json:"log_level" env:"MINDGLOW_LOG_LEVEL"`
	OTLPEndpoint  string  `json:"otlp_endpoint" env:"MINDGLOW_OTLP_ENDPOINT"`
	OTLPInsecure  bool    `json:"otlp_insecure" env:"MINDGLOW_OTLP_INSECURE"`
	TraceSampling float64 `json:"trace_sampling" env:"MINDGLOW_TRACE_SAMPLING"`
}

func DefaultConfig() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Chat:       "openai",
			Embedding:  "openai",
			OpenAI:     ProviderConfig{},
			OpenRouter: ProviderConfig{},
		},
		Generation: GenerationConfig{
			Model:              "gpt-4o",
			Temperature:        0.7,
			MaxTokens:          500,
			MaxFilterRetries:   2,
			SummaryTemperature: 0.3,
		},
		Memory: MemoryConfig{
			EmbeddingModel:      "text-embedding-3-small",
			MaxContextMessages:  20,
			SimilarityThreshold: 0.75,
			TopK:                5,
			ItemCharBudget:      300,
			MaxPastSummaries:    3,
		},
		Language: LanguageConfig{
			Languages:           FlexibleStringSlice{"en", "ar", "fr", "es", "de", "pt", "it", "tr"},
			MinRelativeDistance: 0.1,
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Persona:   "reflect",
				AllowFrom: FlexibleStringSlice{},
			},
			MaxSessions:        1000,
			SessionIdleMinutes: 24 * 60,
		},
		Audit: AuditConfig{
			Enabled:       false,
			Path:          "~/.mindglow/state/audit.db",
			RetentionDays: 365,
			SweepCron:     "0 3 * * *",
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			TraceSampling: 1.0,
		},
	}
}

// LoadConfig reads the JSON file at path (a missing file keeps the defaults)
// and then applies MINDGLOW_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Generation.MaxFilterRetries < 0 {
		return fmt.Errorf("generation.max_filter_retries must be >= 0, got %d", c.Generation.MaxFilterRetries)
	}
	if c.Generation.MaxTokens <= 0 {
		return fmt.Errorf("generation.max_tokens must be > 0, got %d", c.Generation.MaxTokens)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be within [0, 2], got %g", c.Generation.Temperature)
	}
	if c.Memory.MaxContextMessages <= 0 {
		return fmt.Errorf("memory.max_context_messages must be > 0, got %d", c.Memory.MaxContextMessages)
	}
	if len(c.Language.Languages) < 2 {
		return fmt.Errorf("language.languages needs at least two entries, got %d", len(c.Language.Languages))
	}
	if c.Language.MinRelativeDistance < 0 || c.Language.MinRelativeDistance > 0.99 {
		return fmt.Errorf("language.min_relative_distance must be within [0, 0.99], got %g", c.Language.MinRelativeDistance)
	}
	if c.Memory.TopK < 1 || c.Memory.TopK > 50 {
		return fmt.Errorf("memory.top_k must be within [1, 50], got %d", c.Memory.TopK)
	}
	if c.Memory.SimilarityThreshold < -1 || c.Memory.SimilarityThreshold > 1 {
		return fmt.Errorf("memory.similarity_threshold must be within [-1, 1], got %g", c.Memory.SimilarityThreshold)
	}
	if c.Memory.ItemCharBudget <= 0 {
		return fmt.Errorf("memory.item_char_budget must be > 0, got %d", c.Memory.ItemCharBudget)
	}
	if c.Audit.Enabled && strings.TrimSpace(c.Audit.Path) == "" {
		return fmt.Errorf("audit.path is required when audit is enabled")
	}
	return nil
}

func (c *Config) AuditPath() string {
	return expandHome(c.Audit.Path)
}

func (c *Config) CrisisResourcesPath() string {
	return expandHome(c.Crisis.ResourcesFile)
}

// ListenAddr returns host:port for the HTTP gateway.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}

// DefaultPath is ~/.mindglow/config.json.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mindglow", "config.json")
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
