package models

import "time"

const (
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
	ProviderNone     = "none"
)

func ValidProvider(p string) bool {
	switch p {
	case ProviderGoogleAI, ProviderOpenAI, ProviderOllama, ProviderNone:
		return true
	}
	return false
}

// AIProviderSetting is the runtime AI configuration. Only the active row is used.
type AIProviderSetting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Provider       string  `gorm:"type:varchar(20);not null" json:"provider"`
	Model          string  `json:"model"`
	APIKey         string  `json:"-"`
	BaseURL        string  `json:"base_url"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	MaxRetries     int     `json:"max_retries"`
	Active         bool    `gorm:"not null;index" json:"active"`
	UpdatedByID    *uint   `json:"updated_by_id"`
}

type SystemSetting struct {
	Key         string    `gorm:"primaryKey;size:100" json:"key"`
	Value       string    `gorm:"type:text" json:"value"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SchemaMigration records one applied migration version.
type SchemaMigration struct {
	Version   uint   `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"not null"`
	AppliedAt time.Time
}
