package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider != "gemini" {
		t.Fatalf("expected default provider gemini, got %q", cfg.Provider)
	}
	if cfg.MaxChunkSize != 1000 || cfg.ChunkOverlap != 100 {
		t.Fatalf("unexpected chunk defaults: %d/%d", cfg.MaxChunkSize, cfg.ChunkOverlap)
	}
	if cfg.RequestsPerMinute != 15 || cfg.MinimumDelay != 4*time.Second {
		t.Fatalf("unexpected rate defaults: %d/%s", cfg.RequestsPerMinute, cfg.MinimumDelay)
	}
	if cfg.MaxAttempts != 3 {
		t.Fatalf("unexpected retry default: %d", cfg.MaxAttempts)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PROVIDER", "openai")
	t.Setenv("MODEL", "gpt-5-mini")
	t.Setenv("MAX_CHUNK_SIZE", "4000")
	t.Setenv("CHUNK_OVERLAP", "200")
	t.Setenv("WORKERS", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider != "openai" || cfg.Model != "gpt-5-mini" {
		t.Fatalf("unexpected provider/model: %q/%q", cfg.Provider, cfg.Model)
	}
	if cfg.MaxChunkSize != 4000 || cfg.ChunkOverlap != 200 || cfg.Workers != 4 {
		t.Fatalf("unexpected overrides: %d/%d/%d", cfg.MaxChunkSize, cfg.ChunkOverlap, cfg.Workers)
	}
}

func TestValidateNamesOffendingField(t *testing.T) {
	cases := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"bad provider", map[string]string{"PROVIDER": "bard"}, "PROVIDER"},
		{"bad temperature", map[string]string{"TEMPERATURE": "3.5"}, "TEMPERATURE"},
		{"bad top_p", map[string]string{"TOP_P": "0"}, "TOP_P"},
		{"overlap too large", map[string]string{"MAX_CHUNK_SIZE": "100", "CHUNK_OVERLAP": "100"}, "CHUNK_OVERLAP"},
		{"zero rpm", map[string]string{"REQUESTS_PER_MINUTE": "0"}, "REQUESTS_PER_MINUTE"},
		{"zero attempts", map[string]string{"MAX_ATTEMPTS": "0"}, "MAX_ATTEMPTS"},
		{"zero workers", map[string]string{"WORKERS": "0"}, "WORKERS"},
		{"zero budget", map[string]string{"REDUCE_TOKEN_BUDGET": "0"}, "REDUCE_TOKEN_BUDGET"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Fatalf("error %q does not name %s", err, tc.field)
			}
		})
	}
}

func TestAPIKeySelection(t *testing.T) {
	cfg := Config{
		Provider:        "anthropic",
		GeminiAPIKey:    "g",
		OpenAIAPIKey:    "o",
		AnthropicAPIKey: "a",
	}

	if got := cfg.APIKey(); got != "a" {
		t.Fatalf("expected anthropic key, got %q", got)
	}

	cfg.Provider = "gemini"
	if got := cfg.APIKey(); got != "g" {
		t.Fatalf("expected gemini key, got %q", got)
	}
}
