// Package config provides application configuration with multi-source
// priority: environment variables over config file over defaults.
//
// Sensitive values (CMS API key, admin secret, database URL) are masked
// in MarshalJSON so the config can be logged safely.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidChunking indicates chunk size or overlap is out of range.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidTopK indicates the retrieval result count is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidListenAddr indicates the HTTP listen address is empty.
	ErrInvalidListenAddr = errors.New("invalid listen address")

	// ErrInvalidCMSURL indicates the CMS base URL is empty.
	ErrInvalidCMSURL = errors.New("invalid CMS URL")

	// ErrMissingAdminSecret indicates the reindex secret is unset or too
	// short for the admin endpoints to be exposed.
	ErrMissingAdminSecret = errors.New("missing admin secret")

	// ErrInvalidHistoryBudget indicates the history token budget is out
	// of range.
	ErrInvalidHistoryBudget = errors.New("invalid history token budget")
)

// Defaults for model and retrieval settings.
const (
	DefaultModelName     = "googleai/gemini-2.0-flash"
	DefaultEmbedderModel = "text-embedding-004"
	DefaultChunkSize     = 500
	DefaultChunkOverlap  = 50
	DefaultTopK          = 5
	DefaultHistoryTokens = 2000
)

// Config stores application configuration.
// Sensitive fields are masked in MarshalJSON.
type Config struct {
	// HTTP server
	ListenAddr  string `mapstructure:"listen_addr" json:"listen_addr"`
	AdminSecret string `mapstructure:"admin_secret" json:"admin_secret"` // SENSITIVE: masked in MarshalJSON

	// CMS source
	CMSBaseURL string `mapstructure:"cms_base_url" json:"cms_base_url"`
	CMSAPIKey  string `mapstructure:"cms_api_key" json:"cms_api_key"` // SENSITIVE: masked in MarshalJSON

	// Model configuration
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	Persona       string `mapstructure:"persona" json:"persona"`

	// Vector store. PostgresURL empty means in-process fallback only.
	PostgresURL string `mapstructure:"postgres_url" json:"postgres_url"` // SENSITIVE: masked in MarshalJSON
	Collection  string `mapstructure:"collection" json:"collection"`

	// Chunking and retrieval
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	TopK         int `mapstructure:"top_k" json:"top_k"`

	// Conversation memory
	MaxHistoryTokens int `mapstructure:"max_history_tokens" json:"max_history_tokens"`

	// Logging
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
	LogLevel string `mapstructure:"log_level" json:"log_level"`

	// CMS request timeout
	CMSTimeout time.Duration `mapstructure:"cms_timeout" json:"cms_timeout"`
}

// Load reads configuration with priority environment > file > defaults.
// The config file is optional: portfolio.yaml in the working directory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("portfolio")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("collection", "portfolio_documents")
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("max_history_tokens", DefaultHistoryTokens)
	v.SetDefault("log_json", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("cms_timeout", 15*time.Second)
}

// bindEnvVariables binds PORTFOLIO_* environment overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via viper.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("listen_addr", "PORTFOLIO_LISTEN_ADDR")
	mustBind("admin_secret", "PORTFOLIO_ADMIN_SECRET")
	mustBind("cms_base_url", "PORTFOLIO_CMS_URL")
	mustBind("cms_api_key", "PORTFOLIO_CMS_API_KEY")
	mustBind("model_name", "PORTFOLIO_MODEL_NAME")
	mustBind("embedder_model", "PORTFOLIO_EMBEDDER_MODEL")
	mustBind("persona", "PORTFOLIO_PERSONA")
	mustBind("postgres_url", "PORTFOLIO_DATABASE_URL")
	mustBind("collection", "PORTFOLIO_COLLECTION")
	mustBind("chunk_size", "PORTFOLIO_CHUNK_SIZE")
	mustBind("chunk_overlap", "PORTFOLIO_CHUNK_OVERLAP")
	mustBind("top_k", "PORTFOLIO_TOP_K")
	mustBind("max_history_tokens", "PORTFOLIO_MAX_HISTORY_TOKENS")
	mustBind("log_json", "PORTFOLIO_LOG_JSON")
	mustBind("log_level", "PORTFOLIO_LOG_LEVEL")
}

// Validate checks configuration values, returning sentinel errors usable
// with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("%w: listen_addr cannot be empty", ErrInvalidListenAddr)
	}
	if strings.TrimSpace(c.CMSBaseURL) == "" {
		return fmt.Errorf("%w: cms_base_url is required", ErrInvalidCMSURL)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}
	if c.ChunkSize < 50 || c.ChunkSize > 8000 {
		return fmt.Errorf("%w: chunk_size must be between 50 and 8000, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.TopK < 1 || c.TopK > 20 {
		return fmt.Errorf("%w: top_k must be between 1 and 20, got %d", ErrInvalidTopK, c.TopK)
	}
	if c.MaxHistoryTokens < 200 {
		return fmt.Errorf("%w: max_history_tokens must be at least 200, got %d", ErrInvalidHistoryBudget, c.MaxHistoryTokens)
	}
	if len(c.AdminSecret) > 0 && len(c.AdminSecret) < 16 {
		return fmt.Errorf("%w: admin_secret must be at least 16 characters", ErrMissingAdminSecret)
	}
	return nil
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields. New secret fields must be added
// here as well.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.AdminSecret = maskSecret(a.AdminSecret)
	a.CMSAPIKey = maskSecret(a.CMSAPIKey)
	a.PostgresURL = maskSecret(a.PostgresURL)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
