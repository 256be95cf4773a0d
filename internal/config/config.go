// Package config provides environment configuration for the API server.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the application.
type Config struct {
	// Server
	Port               int           `env:"PORT" envDefault:"8080"`
	ServerReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	ServerWriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`

	// Postgres
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Redis
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// LLM
	LLMProvider     string        `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string        `env:"ANTHROPIC_API_KEY"`
	Model           string        `env:"LLM_MODEL"`
	MaxTokens       int           `env:"LLM_MAX_TOKENS" envDefault:"500"`
	Temperature     float64       `env:"LLM_TEMPERATURE" envDefault:"0.3"`
	GenerateTimeout time.Duration `env:"LLM_TIMEOUT" envDefault:"15s"`

	// Chat bounds
	MaxMessageLength int           `env:"MAX_MESSAGE_LENGTH" envDefault:"2000"`
	MaxHistoryTurns  int           `env:"MAX_HISTORY_TURNS" envDefault:"10"`
	CacheTTL         time.Duration `env:"HISTORY_CACHE_TTL" envDefault:"1h"`

	// Rate limiting
	SessionRateLimit int           `env:"RATE_LIMIT_SESSION" envDefault:"10"`
	GlobalRateLimit  int           `env:"RATE_LIMIT_GLOBAL" envDefault:"1000"`
	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	IPRateLimit      int           `env:"RATE_LIMIT_IP" envDefault:"60"`

	// Events (optional)
	NATSURL string `env:"NATS_URL"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Tracing
	TracingEnabled  bool   `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint string `env:"TRACING_ENDPOINT" envDefault:"localhost:4318"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.OpenAIAPIKey == "" && cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("no LLM API key configured")
	}
	return cfg, nil
}
