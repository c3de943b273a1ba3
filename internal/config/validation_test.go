package config

import (
	"errors"
	"testing"
)

// validConfig returns a configuration that passes all validation checks.
func validConfig() *Config {
	return &Config{
		Provider:         ProviderGemini,
		ModelName:        "gemini-2.5-flash",
		Temperature:      0.0,
		MaxTokens:        800,
		EmbedderModel:    DefaultEmbedderModel,
		ChunkSize:        DefaultChunkSize,
		ChunkOverlap:     DefaultChunkOverlap,
		MaxResults:       DefaultMaxResults,
		MaxHistory:       DefaultMaxHistory,
		MaxToolRounds:    DefaultMaxToolRounds,
		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresUser:     "ragchat",
		PostgresPassword: "a_strong_password",
		PostgresDBName:   "ragchat",
		PostgresSSLMode:  "disable",
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	err := validConfig().Validate()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() = %v, want ErrMissingAPIKey", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.ModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "temperature too high",
			mutate:  func(c *Config) { c.Temperature = 2.5 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "zero max tokens",
			mutate:  func(c *Config) { c.MaxTokens = 0 },
			wantErr: ErrInvalidMaxTokens,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name:    "zero chunk size",
			mutate:  func(c *Config) { c.ChunkSize = 0 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "overlap not smaller than chunk size",
			mutate:  func(c *Config) { c.ChunkOverlap = c.ChunkSize },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "negative overlap",
			mutate:  func(c *Config) { c.ChunkOverlap = -1 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "zero max results",
			mutate:  func(c *Config) { c.MaxResults = 0 },
			wantErr: ErrInvalidMaxResults,
		},
		{
			name:    "zero max history",
			mutate:  func(c *Config) { c.MaxHistory = 0 },
			wantErr: ErrInvalidMaxHistory,
		},
		{
			name:    "zero max tool rounds",
			mutate:  func(c *Config) { c.MaxToolRounds = 0 },
			wantErr: ErrInvalidMaxToolRounds,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "postgres port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty postgres db name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "short postgres password",
			mutate:  func(c *Config) { c.PostgresPassword = "short" },
			wantErr: ErrInvalidPostgresPassword,
		},
		{
			name:    "deprecated ssl mode",
			mutate:  func(c *Config) { c.PostgresSSLMode = "prefer" },
			wantErr: ErrInvalidPostgresSSLMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "test-key")
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() on nil = %v, want ErrConfigNil", err)
	}
}
