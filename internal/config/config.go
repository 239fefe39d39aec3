package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/robfig/cron/v3"
)

// Config holds all application configuration
// Values come from environment variables with sensible defaults
//
// Environment Variables:
// Translation backend:
// - DEEPSEEK_API_KEY: API key for the translation backend (required)
// - DEEPSEEK_API_URL: API endpoint URL (default: https://api.deepseek.com)
// - DEEPSEEK_MODEL: Model name to use (default: deepseek-chat)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 4000)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.3)
// - LLM_TIMEOUT: Per-request timeout in seconds (default: 90)
//
// Translation pipeline:
// - TRANSLATE_MAX_CHUNK_SIZE: Max characters per translation call (default: 3000)
// - TRANSLATE_COMBINE_THRESHOLD: Total unit size below which units are combined
//   into a single call (default: 1500)
// - TRANSLATE_MAX_RETRIES: Attempts per translation call (default: 3)
// - TRANSLATE_WORKERS: Background translation workers (default: 3)
// - BACKFILL_CRON_EXPR: Schedule for the missing-language backfill sweep
//   (default: "0 * * * *")
//
// Server:
// - HTTP_ADDR: Listen address (default: :8080)
// - DB_PATH: SQLite database path (default: ./data/polyglot.db)
type Config struct {
	LLM       LLMConfig       `json:"llm"`
	Translate TranslateConfig `json:"translate"`
	Server    ServerConfig    `json:"server"`
}

// LLMConfig holds the configuration for the translation backend client.
// Any OpenAI-compatible chat-completions provider works.
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
}

// TranslateConfig holds the configuration for the translation pipeline.
type TranslateConfig struct {
	MaxChunkSize     int    `json:"max_chunk_size"`
	CombineThreshold int    `json:"combine_threshold"`
	MaxRetries       int    `json:"max_retries"`
	Workers          int    `json:"workers"`
	BackfillCronExpr string `json:"backfill_cron_expr"`
}

// ServerConfig holds the HTTP server and storage configuration.
type ServerConfig struct {
	Addr   string `json:"addr"`
	DBPath string `json:"db_path"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		LLM: LLMConfig{
			APIKey:      getEnvString("DEEPSEEK_API_KEY", ""),
			APIURL:      getEnvString("DEEPSEEK_API_URL", "https://api.deepseek.com"),
			Model:       getEnvString("DEEPSEEK_MODEL", "deepseek-chat"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 4000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			Timeout:     getEnvInt("LLM_TIMEOUT", 90),
		},
		Translate: TranslateConfig{
			MaxChunkSize:     getEnvInt("TRANSLATE_MAX_CHUNK_SIZE", 3000),
			CombineThreshold: getEnvInt("TRANSLATE_COMBINE_THRESHOLD", 1500),
			MaxRetries:       getEnvInt("TRANSLATE_MAX_RETRIES", 3),
			Workers:          getEnvInt("TRANSLATE_WORKERS", 3),
			BackfillCronExpr: getEnvString("BACKFILL_CRON_EXPR", "0 * * * *"),
		},
		Server: ServerConfig{
			Addr:   getEnvString("HTTP_ADDR", ":8080"),
			DBPath: getEnvString("DB_PATH", "./data/polyglot.db"),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("DEEPSEEK_API_KEY is required")
	}
	if c.Translate.MaxChunkSize <= 0 {
		return fmt.Errorf("TRANSLATE_MAX_CHUNK_SIZE must be positive")
	}
	if c.Translate.CombineThreshold <= 0 {
		return fmt.Errorf("TRANSLATE_COMBINE_THRESHOLD must be positive")
	}
	if c.Translate.Workers <= 0 {
		return fmt.Errorf("TRANSLATE_WORKERS must be positive")
	}
	if _, err := cron.ParseStandard(c.Translate.BackfillCronExpr); err != nil {
		return fmt.Errorf("invalid BACKFILL_CRON_EXPR %q: %w", c.Translate.BackfillCronExpr, err)
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
