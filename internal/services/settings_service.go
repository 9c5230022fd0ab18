package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Keys of the system settings the services read.
const (
	SettingCompanyName      = "company_name"
	SettingChatContextLimit = "chat_context_limit"
	SettingAutoMatch        = "auto_match_on_parse"
)

type SettingsService struct {
	DB  *gorm.DB
	LLM *LLMService
}

func NewSettingsService(db *gorm.DB, llm *LLMService) *SettingsService {
	return &SettingsService{DB: db, LLM: llm}
}

// MaskKey keeps the last four characters of an API key.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}

// GetAI describes the AI configuration in use without exposing the key.
func (s *SettingsService) GetAI(ctx context.Context) (*dtos.AISettingsResponse, error) {
	p, err := s.LLM.ActiveSettings(ctx)
	if err != nil {
		return nil, err
	}
	source := "environment"
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.AIProviderSetting{}).Where("active = ?", true).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		source = "database"
	}
	return &dtos.AISettingsResponse{
		Provider:       p.Provider,
		Model:          p.Model,
		APIKeySet:      p.APIKey != "",
		APIKeyMasked:   MaskKey(p.APIKey),
		BaseURL:        p.BaseURL,
		Temperature:    p.Temperature,
		MaxTokens:      p.MaxTokens,
		TimeoutSeconds: p.TimeoutSeconds,
		MaxRetries:     p.MaxRetries,
		Source:         source,
	}, nil
}

// UpdateAI stores a new active AI configuration and drops the cached client.
// Older rows stay as history.
func (s *SettingsService) UpdateAI(ctx context.Context, req *dtos.AISettingsRequest, actorID *uint) (*dtos.AISettingsResponse, error) {
	if !models.ValidProvider(req.Provider) {
		return nil, invalid("unknown ai provider %q", req.Provider)
	}
	current, err := s.LLM.ActiveSettings(ctx)
	if err != nil {
		return nil, err
	}

	row := &models.AIProviderSetting{
		Provider:       req.Provider,
		Model:          strings.TrimSpace(req.Model),
		BaseURL:        strings.TrimSpace(req.BaseURL),
		Temperature:    current.Temperature,
		MaxTokens:      req.MaxTokens,
		TimeoutSeconds: req.TimeoutSeconds,
		MaxRetries:     req.MaxRetries,
		Active:         true,
		UpdatedByID:    actorID,
	}
	if req.Temperature != nil {
		row.Temperature = *req.Temperature
	}
	switch {
	case req.APIKey != nil:
		row.APIKey = strings.TrimSpace(*req.APIKey)
	case req.Provider == current.Provider:
		row.APIKey = current.APIKey
	}
	if row.Provider == models.ProviderGoogleAI && row.APIKey == "" {
		return nil, invalid("googleai requires an api_key")
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.AIProviderSetting{}).Where("active = ?", true).Update("active", false).Error; err != nil {
			return err
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, err
	}
	s.LLM.Invalidate()
	return s.GetAI(ctx)
}

func (s *SettingsService) TestAI(ctx context.Context) *AITestResult {
	return s.LLM.Test(ctx)
}

func (s *SettingsService) List(ctx context.Context) ([]models.SystemSetting, error) {
	out := []models.SystemSetting{}
	err := s.DB.WithContext(ctx).Order("key").Find(&out).Error
	return out, err
}

func (s *SettingsService) Get(ctx context.Context, key string) (*models.SystemSetting, error) {
	var st models.SystemSetting
	if err := s.DB.WithContext(ctx).Where("key = ?", key).First(&st).Error; err != nil {
		return nil, dbError(err, "setting")
	}
	return &st, nil
}

// Set creates or replaces a setting. An empty description keeps the old one.
func (s *SettingsService) Set(ctx context.Context, key string, req *dtos.SettingRequest) (*models.SystemSetting, error) {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > 100 {
		return nil, invalid("setting key must be 1-100 characters")
	}
	st := &models.SystemSetting{Key: key, Value: req.Value, Description: req.Description}
	cols := []string{"value", "updated_at"}
	if req.Description != "" {
		cols = append(cols, "description")
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}).Create(st).Error
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, key)
}

func (s *SettingsService) value(ctx context.Context, key string) (string, bool) {
	if s == nil || s.DB == nil {
		return "", false
	}
	st, err := s.Get(ctx, key)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(st.Value), true
}

// Bool reads a boolean setting, returning def when it is missing or unparsable.
func (s *SettingsService) Bool(ctx context.Context, key string, def bool) bool {
	v, ok := s.value(ctx, key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Int reads an integer setting, returning def when it is missing or unparsable.
func (s *SettingsService) Int(ctx context.Context, key string, def int) int {
	v, ok := s.value(ctx, key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (s *SettingsService) String(ctx context.Context, key, def string) string {
	v, ok := s.value(ctx, key)
	if !ok || v == "" {
		return def
	}
	return v
}
