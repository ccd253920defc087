package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Fetch   FetchConfig
	Logging LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8788"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// AIConfig holds model-provider configuration. APIKey may be empty:
// the summarizer degrades gracefully without it, but the agent runtime
// refuses to start.
type AIConfig struct {
	APIKey    string        `envconfig:"OPENAI_API_KEY"`
	Model     string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	Endpoint  string        `envconfig:"AI_ENDPOINT" default:"https://api.openai.com/v1/chat/completions"`
	MaxTokens int           `envconfig:"AI_MAX_TOKENS" default:"1000"`
	Timeout   time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
}

// FetchConfig holds page-fetching configuration.
type FetchConfig struct {
	Timeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	UserAgent string        `envconfig:"FETCH_USER_AGENT" default:"WebPilot-HTTP/1.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8788",
			Host: "0.0.0.0",
		},
		AI: AIConfig{
			Model:     "gpt-4o-mini",
			Endpoint:  "https://api.openai.com/v1/chat/completions",
			MaxTokens: 1000,
			Timeout:   60 * time.Second,
		},
		Fetch: FetchConfig{
			Timeout:   30 * time.Second,
			UserAgent: "WebPilot-HTTP/1.0",
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}
