package dtos

// AISettingsRequest replaces the active AI configuration. A nil APIKey keeps the stored key.
type AISettingsRequest struct {
	Provider       string   `json:"provider" binding:"required,oneof=googleai openai ollama none"`
	Model          string   `json:"model"`
	APIKey         *string  `json:"api_key"`
	BaseURL        string   `json:"base_url" binding:"omitempty,url"`
	Temperature    *float64 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	MaxTokens      int      `json:"max_tokens" binding:"gte=0,lte=100000"`
	TimeoutSeconds int      `json:"timeout_seconds" binding:"gte=0,lte=600"`
	MaxRetries     int      `json:"max_retries" binding:"gte=0,lte=10"`
}

type AISettingsResponse struct {
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	APIKeySet      bool    `json:"api_key_set"`
	APIKeyMasked   string  `json:"api_key_masked,omitempty"`
	BaseURL        string  `json:"base_url"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	MaxRetries     int     `json:"max_retries"`
	Source         string  `json:"source"` // "database" or "environment"
}

type SettingRequest struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}
