package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Port        string
	CORSOrigins []string

	DatabaseURL     string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBConnLifetime  time.Duration
	MaxUploadBytes  int64
	SessionTTL      time.Duration
	AdminEmail      string
	AdminPassword   string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	Storage StorageConfig
	Queue   QueueConfig
	AI      AIConfig
	Gmail   GmailConfig
}

type StorageConfig struct {
	Backend   string // "local" or "s3"
	LocalDir  string
	Bucket    string
	Region    string
	Endpoint  string // custom endpoint for R2 / Supabase / MinIO
	AccessKey string
	SecretKey string
}

type QueueConfig struct {
	Backend     string // "memory" or "rabbitmq"
	RabbitMQURL string
	QueueName   string
	Workers     int
	BufferSize  int
}

// AIConfig holds the env defaults. Rows in ai_provider_settings win over these.
type AIConfig struct {
	Provider    string // googleai, openai, ollama, none
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

type GmailConfig struct {
	Enabled         bool
	CredentialsFile string
	TokenFile       string
	Query           string
	PollInterval    time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn("no .env file found, using environment variables")
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "*")),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DBMaxOpenConns:  getInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:  getInt("DB_MAX_IDLE_CONNS", 10),
		DBConnLifetime:  getDuration("DB_CONN_LIFETIME", 5*time.Minute),
		MaxUploadBytes:  int64(getInt("MAX_UPLOAD_MB", 10)) << 20,
		SessionTTL:      getDuration("SESSION_TTL", 24*time.Hour),
		AdminEmail:      os.Getenv("ADMIN_EMAIL"),
		AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Storage: StorageConfig{
			Backend:   getEnv("STORAGE_BACKEND", "local"),
			LocalDir:  getEnv("UPLOADS_DIR", "./uploads"),
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnv("S3_REGION", "auto"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
		Queue: QueueConfig{
			Backend:     getEnv("QUEUE_BACKEND", "memory"),
			RabbitMQURL: os.Getenv("RABBITMQ_URL"),
			QueueName:   getEnv("QUEUE_NAME", "resume_parse"),
			Workers:     getInt("PARSE_WORKERS", 3),
			BufferSize:  getInt("PARSE_QUEUE_SIZE", 50),
		},
		AI: AIConfig{
			Provider:    getEnv("AI_PROVIDER", "none"),
			Model:       os.Getenv("AI_MODEL"),
			APIKey:      os.Getenv("AI_API_KEY"),
			BaseURL:     os.Getenv("AI_BASE_URL"),
			Temperature: getFloat("AI_TEMPERATURE", 0.1),
			MaxTokens:   getInt("AI_MAX_TOKENS", 4096),
			Timeout:     getDuration("AI_TIMEOUT", 60*time.Second),
			MaxRetries:  getInt("AI_MAX_RETRIES", 2),
		},
		Gmail: gmailFromEnv(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadGmail reads only the Gmail settings. Tools that never touch the
// database use it instead of Load.
func LoadGmail() GmailConfig {
	_ = godotenv.Load()
	return gmailFromEnv()
}

func gmailFromEnv() GmailConfig {
	return GmailConfig{
		Enabled:         getBool("GMAIL_ENABLED", false),
		CredentialsFile: getEnv("GMAIL_CREDENTIALS_FILE", "credential.json"),
		TokenFile:       getEnv("GMAIL_TOKEN_FILE", "token.json"),
		Query:           getEnv("GMAIL_QUERY", "has:attachment subject:(resume OR cv OR application) newer_than:7d"),
		PollInterval:    getDuration("GMAIL_POLL_INTERVAL", 5*time.Minute),
	}
}

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return errors.New("UPLOADS_DIR is required for local storage")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("S3_BUCKET is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	switch c.Queue.Backend {
	case "memory":
	case "rabbitmq":
		if c.Queue.RabbitMQURL == "" {
			return errors.New("RABBITMQ_URL is required for rabbitmq queue")
		}
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", c.Queue.Backend)
	}
	if c.Queue.Workers < 1 {
		return errors.New("PARSE_WORKERS must be at least 1")
	}
	switch c.AI.Provider {
	case "googleai", "openai", "ollama", "none":
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AI.Provider)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warnf("invalid %s=%q, using %v", key, v, def)
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warnf("invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
