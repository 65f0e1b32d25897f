// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or /etc/murshid/config.yaml)
//  3. Default values
//
// Error Handling:
//   - Sentinel errors for Go-idiomatic checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
//
// Security: secrets (API keys, passwords) are masked in MarshalJSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the selected provider's API key is unset.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidChunking indicates chunk size/overlap values are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidRetrievalK indicates the retrieval depth is out of range.
	ErrInvalidRetrievalK = errors.New("invalid retrieval k")

	// ErrInvalidPostgresDSN indicates the PostgreSQL settings are incomplete.
	ErrInvalidPostgresDSN = errors.New("invalid PostgreSQL settings")

	// ErrInvalidStorageConfig indicates the object storage settings are incomplete.
	ErrInvalidStorageConfig = errors.New("invalid object storage settings")

	// ErrInvalidSessionTTL indicates the session TTL is not positive.
	ErrInvalidSessionTTL = errors.New("invalid session TTL")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	// genkit model name prefix for the Gemini provider
	providerGoogleAI = "googleai"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"` // "gemini" (default) or "openai"
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	VisionModel string  `mapstructure:"vision_model" json:"vision_model"` // image description during ingestion
	ImageModel  string  `mapstructure:"image_model" json:"image_model"`   // image generation
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Retrieval configuration
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	ChunkSize     int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap  int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	RetrievalK    int    `mapstructure:"retrieval_k" json:"retrieval_k"`

	// Session registry
	SessionTTL time.Duration `mapstructure:"session_ttl" json:"session_ttl"`

	// PostgreSQL (vector store)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Object storage (S3-compatible, e.g. Cloudflare R2)
	StorageEndpoint  string `mapstructure:"storage_endpoint" json:"storage_endpoint"`
	StorageRegion    string `mapstructure:"storage_region" json:"storage_region"`
	StorageBucket    string `mapstructure:"storage_bucket" json:"storage_bucket"`
	StorageAccessKey string `mapstructure:"storage_access_key" json:"storage_access_key"` // SENSITIVE
	StorageSecretKey string `mapstructure:"storage_secret_key" json:"storage_secret_key"` // SENSITIVE

	// External services
	WebSearchAPIKey  string `mapstructure:"web_search_api_key" json:"web_search_api_key"` // SENSITIVE
	WebSearchBaseURL string `mapstructure:"web_search_base_url" json:"web_search_base_url"`
	SlidesAPIKey     string `mapstructure:"slides_api_key" json:"slides_api_key"` // SENSITIVE
	SlidesBaseURL    string `mapstructure:"slides_base_url" json:"slides_base_url"`
	RealtimeURL      string `mapstructure:"realtime_url" json:"realtime_url"`
	OpenAIAPIKey     string `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE
	GeminiAPIKey     string `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE

	// HTTP server
	Addr string `mapstructure:"addr" json:"addr"`

	// Tracing
	TracingEnabled bool   `mapstructure:"tracing_enabled" json:"tracing_enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/murshid")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults plus env carry the load.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("vision_model", "gemini-2.5-flash")
	viper.SetDefault("image_model", "imagen-3.0-generate-002")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 4096)

	viper.SetDefault("embedder_model", "gemini-embedding-001")
	viper.SetDefault("chunk_size", 1000)
	viper.SetDefault("chunk_overlap", 200)
	viper.SetDefault("retrieval_k", 5)

	viper.SetDefault("session_ttl", "2h")

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "murshid")
	viper.SetDefault("postgres_password", "murshid_dev_password")
	viper.SetDefault("postgres_db_name", "murshid")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("storage_region", "auto")
	viper.SetDefault("storage_bucket", "murshid-uploads")

	viper.SetDefault("web_search_base_url", "https://api.perplexity.ai")
	viper.SetDefault("slides_base_url", "https://api.slidespeak.co/api/v1")
	viper.SetDefault("realtime_url", "wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview")

	viper.SetDefault("addr", "127.0.0.1:8000")

	viper.SetDefault("tracing_enabled", false)
	viper.SetDefault("otlp_endpoint", "localhost:4318")
}

// bindEnvVariables binds environment variables explicitly. Secrets only come
// from the environment, never from the config file on disk.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "MURSHID_PROVIDER")
	mustBind("model_name", "MURSHID_MODEL_NAME")
	mustBind("addr", "MURSHID_ADDR")
	mustBind("session_ttl", "MURSHID_SESSION_TTL")

	mustBind("postgres_host", "MURSHID_POSTGRES_HOST")
	mustBind("postgres_port", "MURSHID_POSTGRES_PORT")
	mustBind("postgres_user", "MURSHID_POSTGRES_USER")
	mustBind("postgres_password", "MURSHID_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "MURSHID_POSTGRES_DB")

	mustBind("storage_endpoint", "MURSHID_STORAGE_ENDPOINT")
	mustBind("storage_bucket", "MURSHID_STORAGE_BUCKET")
	mustBind("storage_access_key", "MURSHID_STORAGE_ACCESS_KEY")
	mustBind("storage_secret_key", "MURSHID_STORAGE_SECRET_KEY")

	mustBind("web_search_api_key", "PERPLEXITY_API_KEY")
	mustBind("slides_api_key", "SLIDESPEAK_API_KEY")
	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("gemini_api_key", "GEMINI_API_KEY")
}

// Validate performs fail-fast validation of the loaded configuration.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (supported: gemini, openai)", ErrInvalidProvider, c.Provider)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be in [0, 2])", ErrInvalidTemperature, c.Temperature)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunking, c.ChunkSize, c.ChunkOverlap)
	}
	if c.RetrievalK <= 0 || c.RetrievalK > 50 {
		return fmt.Errorf("%w: %d (must be in [1, 50])", ErrInvalidRetrievalK, c.RetrievalK)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSessionTTL, c.SessionTTL)
	}
	if c.PostgresHost == "" || c.PostgresPort <= 0 || c.PostgresPort > 65535 || c.PostgresDBName == "" {
		return fmt.Errorf("%w: host=%q port=%d db=%q", ErrInvalidPostgresDSN,
			c.PostgresHost, c.PostgresPort, c.PostgresDBName)
	}
	return nil
}

// ConnString returns the PostgreSQL connection string for pgx.
func (c *Config) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "openai/gpt-4o".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	return c.qualify(c.ModelName)
}

// FullVisionModelName returns the provider-qualified vision model name.
func (c *Config) FullVisionModelName() string {
	return c.qualify(c.VisionModel)
}

func (c *Config) qualify(model string) string {
	if strings.Contains(model, "/") {
		return model
	}
	if c.Provider == ProviderOpenAI {
		return ProviderOpenAI + "/" + model
	}
	return providerGoogleAI + "/" + model
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked to prevent substring matching; longer ones keep the first and last
// two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
// When adding new secret fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.StorageAccessKey = maskSecret(a.StorageAccessKey)
	a.StorageSecretKey = maskSecret(a.StorageSecretKey)
	a.WebSearchAPIKey = maskSecret(a.WebSearchAPIKey)
	a.SlidesAPIKey = maskSecret(a.SlidesAPIKey)
	a.OpenAIAPIKey = maskSecret(a.OpenAIAPIKey)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
