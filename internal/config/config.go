// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.guidelines/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Providers: ordered AI provider priority list, model selection
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: embedder model, vector dimension, similarity threshold
//   - Session: conversation window size, idle timeout, capacity
//
// Sensitive values (the database password) are masked in MarshalJSON so a
// Config can be logged safely. Validate() runs fail-fast at load time.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the generative model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidVectorDimension indicates the configured embedding dimension
	// does not match the pgvector schema.
	ErrInvalidVectorDimension = errors.New("invalid vector dimension")

	// ErrInvalidThreshold indicates the similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidProvider indicates an unknown AI provider in the priority list.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidSessionWindow indicates the session turn window is out of range.
	ErrInvalidSessionWindow = errors.New("invalid session window")

	// ErrInvalidSessionTimeout indicates the session idle timeout is out of range.
	ErrInvalidSessionTimeout = errors.New("invalid session timeout")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")
)

// Provider identifiers accepted in the provider priority list.
const (
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

const (
	// DefaultEmbedderModel is the default Gemini embedding model.
	// gemini-embedding-001 supports truncation to 768 dimensions, which is
	// what the pgvector schema uses; see store.VectorDimension.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultGenerativeModel is the default model for extraction and
	// answer composition.
	DefaultGenerativeModel = "gemini-2.5-flash"

	// DefaultVectorDimension matches the rule.embedding column width.
	DefaultVectorDimension = 768

	// DefaultSimilarityThreshold drops semantic matches below this score.
	DefaultSimilarityThreshold = 0.35

	// DefaultSessionWindow is the number of turns retained per session.
	DefaultSessionWindow = 20

	// DefaultSessionTimeout is the idle expiry for sessions.
	DefaultSessionTimeout = time.Hour

	// DefaultMaxSessions caps concurrent sessions; the oldest is evicted
	// at capacity.
	DefaultMaxSessions = 100

	// DefaultCollaboratorTimeout bounds every external extract/embed/
	// summarize call.
	DefaultCollaboratorTimeout = 120 * time.Second
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON().
type Config struct {
	// Provider priority list; the first available provider wins.
	Providers     []string `mapstructure:"providers" json:"providers"`
	ModelName     string   `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string   `mapstructure:"embedder_model" json:"embedder_model"`

	// Retrieval configuration
	VectorDimension     int     `mapstructure:"vector_dimension" json:"vector_dimension"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`

	// Session configuration
	SessionWindow  int           `mapstructure:"session_window" json:"session_window"`
	SessionTimeout time.Duration `mapstructure:"session_timeout" json:"session_timeout"`
	MaxSessions    int           `mapstructure:"max_sessions" json:"max_sessions"`

	// External collaborator call timeout
	CollaboratorTimeout time.Duration `mapstructure:"collaborator_timeout" json:"collaborator_timeout"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server bind address (serve mode)
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".guidelines")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("providers", []string{ProviderGemini, ProviderMock})
	v.SetDefault("model_name", DefaultGenerativeModel)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("vector_dimension", DefaultVectorDimension)
	v.SetDefault("similarity_threshold", DefaultSimilarityThreshold)

	v.SetDefault("session_window", DefaultSessionWindow)
	v.SetDefault("session_timeout", DefaultSessionTimeout)
	v.SetDefault("max_sessions", DefaultMaxSessions)

	v.SetDefault("collaborator_timeout", DefaultCollaboratorTimeout)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "guidelines")
	v.SetDefault("postgres_password", "guidelines_dev_password")
	v.SetDefault("postgres_db_name", "guidelines")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("listen_addr", "127.0.0.1:3500")
}

// bindEnvVariables binds runtime overrides explicitly.
// GEMINI_API_KEY is read directly by the genai SDK, not via viper;
// Validate() only checks its presence when the gemini provider is listed.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("providers", "GUIDELINES_PROVIDERS")
	mustBind("model_name", "GUIDELINES_MODEL_NAME")
	mustBind("embedder_model", "GUIDELINES_EMBEDDER_MODEL")
	mustBind("listen_addr", "GUIDELINES_LISTEN_ADDR")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 chars
// or fewer are fully masked to prevent substring matching; longer ones
// keep the first and last two characters for debug utility.
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
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
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
