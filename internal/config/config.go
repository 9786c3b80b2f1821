// Package config loads the run configuration from the environment and
// validates it before anything touches the network.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is an immutable snapshot for one summarization run.
type Config struct {
	Provider        string `env:"PROVIDER"          envDefault:"gemini"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	Model           string `env:"MODEL"             envDefault:"gemini-2.0-flash"`

	Temperature     float64 `env:"TEMPERATURE"       envDefault:"0.7"`
	TopP            float64 `env:"TOP_P"             envDefault:"0.8"`
	TopK            int     `env:"TOP_K"             envDefault:"40"`
	MaxOutputTokens int     `env:"MAX_OUTPUT_TOKENS" envDefault:"2048"`

	MaxChunkSize int `env:"MAX_CHUNK_SIZE" envDefault:"1000"`
	ChunkOverlap int `env:"CHUNK_OVERLAP"  envDefault:"100"`

	RequestsPerMinute int           `env:"REQUESTS_PER_MINUTE" envDefault:"15"`
	MinimumDelay      time.Duration `env:"MINIMUM_DELAY"       envDefault:"4s"`

	MaxAttempts    int           `env:"MAX_ATTEMPTS"    envDefault:"3"`
	BaseBackoff    time.Duration `env:"BASE_BACKOFF"    envDefault:"1s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"2m"`

	Workers           int `env:"WORKERS"             envDefault:"2"`
	ReduceTokenBudget int `env:"REDUCE_TOKEN_BUDGET" envDefault:"6000"`

	DBPath string `env:"DB_PATH" envDefault:"docdigest.sqlite"`
}

// Load parses the environment and validates the result. Every
// violation names the offending variable.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Provider {
	case "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("%w: PROVIDER must be one of gemini, openai, anthropic (got %q)", ErrInvalidConfig, c.Provider)
	}

	if c.Model == "" {
		return fmt.Errorf("%w: MODEL must not be empty", ErrInvalidConfig)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: TEMPERATURE must be in [0, 2] (got %g)", ErrInvalidConfig, c.Temperature)
	}
	if c.TopP <= 0 || c.TopP > 1 {
		return fmt.Errorf("%w: TOP_P must be in (0, 1] (got %g)", ErrInvalidConfig, c.TopP)
	}
	if c.TopK < 0 {
		return fmt.Errorf("%w: TOP_K must be non-negative (got %d)", ErrInvalidConfig, c.TopK)
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("%w: MAX_OUTPUT_TOKENS must be positive (got %d)", ErrInvalidConfig, c.MaxOutputTokens)
	}
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: MAX_CHUNK_SIZE must be positive (got %d)", ErrInvalidConfig, c.MaxChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxChunkSize {
		return fmt.Errorf(
			"%w: CHUNK_OVERLAP must be in [0, MAX_CHUNK_SIZE) (got %d, MAX_CHUNK_SIZE = %d)",
			ErrInvalidConfig, c.ChunkOverlap, c.MaxChunkSize,
		)
	}
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("%w: REQUESTS_PER_MINUTE must be positive (got %d)", ErrInvalidConfig, c.RequestsPerMinute)
	}
	if c.MinimumDelay < 0 {
		return fmt.Errorf("%w: MINIMUM_DELAY must be non-negative (got %s)", ErrInvalidConfig, c.MinimumDelay)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: MAX_ATTEMPTS must be at least 1 (got %d)", ErrInvalidConfig, c.MaxAttempts)
	}
	if c.BaseBackoff < 0 {
		return fmt.Errorf("%w: BASE_BACKOFF must be non-negative (got %s)", ErrInvalidConfig, c.BaseBackoff)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: REQUEST_TIMEOUT must be positive (got %s)", ErrInvalidConfig, c.RequestTimeout)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: WORKERS must be at least 1 (got %d)", ErrInvalidConfig, c.Workers)
	}
	if c.ReduceTokenBudget <= 0 {
		return fmt.Errorf("%w: REDUCE_TOKEN_BUDGET must be positive (got %d)", ErrInvalidConfig, c.ReduceTokenBudget)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%w: DB_PATH must not be empty", ErrInvalidConfig)
	}

	return nil
}

// APIKey returns the key for the selected provider.
func (c Config) APIKey() string {
	switch c.Provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	default:
		return c.GeminiAPIKey
	}
}
