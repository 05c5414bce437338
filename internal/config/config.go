// Package config loads process configuration the way the rest of this
// codebase expects it: viper defaults, then an optional YAML file, then
// environment overrides, then a normalization pass for derived values.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds every environment variable spec.md §6 names plus the
// derived values the retrieval/chat components need at runtime.
type Config struct {
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	SecretKey      string `mapstructure:"SECRET_KEY"`
	EncryptionKey  string `mapstructure:"ENCRYPTION_KEY"`
	JWTAlgorithm   string `mapstructure:"JWT_ALGORITHM"`
	JWTExpireMins  int    `mapstructure:"JWT_EXPIRE_MINUTES"`
	StorageRoot    string `mapstructure:"STORAGE_ROOT"`
	KBSyncRoot     string `mapstructure:"KB_SYNC_ROOT"`

	DefaultEmbeddingDim    int    `mapstructure:"DEFAULT_EMBEDDING_DIM"`
	EmbeddingBackend       string `mapstructure:"EMBEDDING_BACKEND"`
	EmbeddingEndpointURL   string `mapstructure:"EMBEDDING_ENDPOINT_URL"`
	EmbeddingModelName     string `mapstructure:"EMBEDDING_MODEL_NAME"`
	EmbeddingAPIKey        string `mapstructure:"EMBEDDING_API_KEY"`
	EmbeddingLocalDevice   string `mapstructure:"EMBEDDING_LOCAL_DEVICE"`
	EmbeddingBatchSize     int    `mapstructure:"EMBEDDING_BATCH_SIZE"`
	EmbeddingFallbackHash  bool   `mapstructure:"EMBEDDING_FALLBACK_HASH"`

	CORSOrigins           []string      `mapstructure:"CORS_ORIGINS"`
	RequestTimeoutSeconds time.Duration `mapstructure:"REQUEST_TIMEOUT_SECONDS"`

	ContextWindowTokens int `mapstructure:"CONTEXT_WINDOW_TOKENS"`

	AppEnv string `mapstructure:"APP_ENV"`
}

// Load reads configuration via viper. A missing config file is not fatal —
// defaults and environment variables still apply, matching the teacher's
// "warn and continue" behavior for local/dev runs.
func Load(logger *zap.Logger) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	viper.SetDefault("DATABASE_URL", "postgres://localhost:5432/kbagent?sslmode=disable")
	viper.SetDefault("SECRET_KEY", "change-me")
	viper.SetDefault("ENCRYPTION_KEY", "")
	viper.SetDefault("JWT_ALGORITHM", "HS256")
	viper.SetDefault("JWT_EXPIRE_MINUTES", 1440)
	viper.SetDefault("STORAGE_ROOT", "./data/storage")
	viper.SetDefault("KB_SYNC_ROOT", "./data/sync")

	viper.SetDefault("DEFAULT_EMBEDDING_DIM", 1536)
	viper.SetDefault("EMBEDDING_BACKEND", "hash")
	viper.SetDefault("EMBEDDING_ENDPOINT_URL", "")
	viper.SetDefault("EMBEDDING_MODEL_NAME", "")
	viper.SetDefault("EMBEDDING_API_KEY", "")
	viper.SetDefault("EMBEDDING_LOCAL_DEVICE", "cpu")
	viper.SetDefault("EMBEDDING_BATCH_SIZE", 32)
	viper.SetDefault("EMBEDDING_FALLBACK_HASH", true)

	viper.SetDefault("CORS_ORIGINS", []string{"*"})
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)
	viper.SetDefault("CONTEXT_WINDOW_TOKENS", 131072)
	viper.SetDefault("APP_ENV", "production")

	if err := viper.ReadInConfig(); err != nil {
		if logger != nil {
			logger.Warn("could not read config file, using defaults/env vars", zap.Error(err))
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		if logger != nil {
			logger.Fatal("unable to decode config into struct", zap.Error(err))
		}
		panic(err)
	}

	cfg.RequestTimeoutSeconds = cfg.RequestTimeoutSeconds * time.Second
	if cfg.ContextWindowTokens < 1024 {
		cfg.ContextWindowTokens = 1024
	}
	if cfg.ContextWindowTokens > 2_000_000 {
		cfg.ContextWindowTokens = 2_000_000
	}
	if cfg.ContextWindowTokens == 0 {
		cfg.ContextWindowTokens = 131072
	}

	cleaned := make([]string, 0, len(cfg.CORSOrigins))
	for _, origin := range cfg.CORSOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cleaned = append(cleaned, origin)
		}
	}
	cfg.CORSOrigins = cleaned

	if cfg.EncryptionKey == "" && cfg.SecretKey == "" {
		cfg.SecretKey = "change-me"
	}

	return &cfg
}

// StreamTimeout returns the timeout applied to streaming LLM calls, which
// spec.md §5 defines as 10x the unary request timeout.
func (c *Config) StreamTimeout() time.Duration {
	return c.RequestTimeoutSeconds * 10
}
