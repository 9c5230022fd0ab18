package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ats")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "memory", cfg.Queue.Backend)
	assert.Equal(t, "none", cfg.AI.Provider)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ats")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("AI_TIMEOUT", "15s")
	t.Setenv("AI_MAX_RETRIES", "4")
	t.Setenv("MAX_UPLOAD_MB", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, 15*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 4, cfg.AI.MaxRetries)
	assert.Equal(t, int64(2<<20), cfg.MaxUploadBytes)
}

func TestLoad_InvalidNumberFallsBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ats")
	t.Setenv("PARSE_WORKERS", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Queue.Workers)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DatabaseURL:    "postgres://localhost/ats",
			MaxUploadBytes: 1 << 20,
			Storage:        StorageConfig{Backend: "local", LocalDir: "uploads"},
			Queue:          QueueConfig{Backend: "memory", Workers: 1},
			AI:             AIConfig{Provider: "none"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "DATABASE_URL"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Storage.Backend = "s3" }, wantErr: "S3_BUCKET"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Backend = "ftp" }, wantErr: "STORAGE_BACKEND"},
		{name: "rabbitmq without url", mutate: func(c *Config) { c.Queue.Backend = "rabbitmq" }, wantErr: "RABBITMQ_URL"},
		{name: "zero workers", mutate: func(c *Config) { c.Queue.Workers = 0 }, wantErr: "PARSE_WORKERS"},
		{name: "unknown provider", mutate: func(c *Config) { c.AI.Provider = "acme" }, wantErr: "AI_PROVIDER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadGmail_WithoutDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GMAIL_TOKEN_FILE", "/secrets/token.json")
	t.Setenv("GMAIL_POLL_INTERVAL", "90s")

	cfg := LoadGmail()
	assert.Equal(t, "credential.json", cfg.CredentialsFile)
	assert.Equal(t, "/secrets/token.json", cfg.TokenFile)
	assert.Equal(t, 90*time.Second, cfg.PollInterval)
	assert.False(t, cfg.Enabled)
}
