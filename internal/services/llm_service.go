package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/justsurfingit/ats-backend/internal/config"
	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"gorm.io/gorm"
)

const (
	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 8 * time.Second

	// maxPostingChars bounds the job posting text sent to the model.
	maxPostingChars = 20000
)

// ProviderSettings is the effective AI configuration for one call.
type ProviderSettings struct {
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	APIKey         string  `json:"-"`
	BaseURL        string  `json:"base_url"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	MaxRetries     int     `json:"max_retries"`
}

// clientKey identifies the settings a cached client was built from.
func (p ProviderSettings) clientKey() string {
	return strings.Join([]string{p.Provider, p.Model, p.APIKey, p.BaseURL}, "|")
}

// ModelFactory builds a langchaingo model for the given settings.
type ModelFactory func(ctx context.Context, p ProviderSettings) (llms.Model, error)

// Completion describes one (possibly retried) call to the provider.
type Completion struct {
	Text     string        `json:"text"`
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Attempts int           `json:"attempts"`
	Latency  time.Duration `json:"latency"`
}

type LLMService struct {
	DB       *gorm.DB
	Defaults config.AIConfig
	NewModel ModelFactory

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.RWMutex
	client   llms.Model
	clientID string
}

// NewLLMService reads settings from db (when not nil) and falls back to defaults.
func NewLLMService(db *gorm.DB, defaults config.AIConfig) *LLMService {
	return &LLMService{
		DB:       db,
		Defaults: defaults,
		NewModel: DefaultModelFactory,
		sleep:    sleepCtx,
	}
}

func DefaultModelFactory(ctx context.Context, p ProviderSettings) (llms.Model, error) {
	// clients outlive the request that first builds them
	ctx = context.WithoutCancel(ctx)

	switch p.Provider {
	case models.ProviderGoogleAI:
		if p.APIKey == "" {
			return nil, errors.New("googleai requires an API key")
		}
		llm, err := googleai.New(ctx,
			googleai.WithAPIKey(p.APIKey),
			googleai.WithDefaultModel(p.Model),
		)
		if err != nil {
			return nil, err
		}
		return llm, nil
	case models.ProviderOpenAI:
		opts := []openai.Option{openai.WithToken(p.APIKey), openai.WithModel(p.Model)}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, err
		}
		return llm, nil
	case models.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(p.Model)}
		if p.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(p.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, err
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", p.Provider)
	}
}

func defaultModel(provider string) string {
	switch provider {
	case models.ProviderGoogleAI:
		return "gemini-2.5-flash"
	case models.ProviderOpenAI:
		return "gpt-4o-mini"
	case models.ProviderOllama:
		return "llama3.1"
	}
	return ""
}

// ActiveSettings returns the active DB row, or the env defaults when there is none.
func (s *LLMService) ActiveSettings(ctx context.Context) (ProviderSettings, error) {
	p := ProviderSettings{
		Provider:       s.Defaults.Provider,
		Model:          s.Defaults.Model,
		APIKey:         s.Defaults.APIKey,
		BaseURL:        s.Defaults.BaseURL,
		Temperature:    s.Defaults.Temperature,
		MaxTokens:      s.Defaults.MaxTokens,
		TimeoutSeconds: int(s.Defaults.Timeout / time.Second),
		MaxRetries:     s.Defaults.MaxRetries,
	}

	if s.DB != nil {
		var row models.AIProviderSetting
		err := s.DB.WithContext(ctx).Where("active = ?", true).Order("id DESC").First(&row).Error
		switch {
		case err == nil:
			p.Provider = row.Provider
			p.Model = row.Model
			p.APIKey = row.APIKey
			p.BaseURL = row.BaseURL
			p.Temperature = row.Temperature
			p.MaxRetries = row.MaxRetries
			if row.MaxTokens > 0 {
				p.MaxTokens = row.MaxTokens
			}
			if row.TimeoutSeconds > 0 {
				p.TimeoutSeconds = row.TimeoutSeconds
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return p, fmt.Errorf("load ai settings: %w", err)
		}
	}

	if p.Provider == "" {
		p.Provider = models.ProviderNone
	}
	if p.Model == "" {
		p.Model = defaultModel(p.Provider)
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	return p, nil
}

// Invalidate drops the cached client so the next call rebuilds it.
func (s *LLMService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.clientID = ""
}

func (s *LLMService) model(ctx context.Context, p ProviderSettings) (llms.Model, error) {
	if p.Provider == models.ProviderNone {
		return nil, fmt.Errorf("%w: no provider configured", ErrAIUnavailable)
	}
	id := p.clientKey()

	s.mu.RLock()
	if s.client != nil && s.clientID == id {
		m := s.client
		s.mu.RUnlock()
		return m, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil && s.clientID == id {
		return s.client, nil
	}
	m, err := s.NewModel(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}
	s.client, s.clientID = m, id
	log.WithFields(log.Fields{"provider": p.Provider, "model": p.Model}).Info("ai client initialised")
	return m, nil
}

// Backoff returns the wait before retry n (0-based): 500ms doubling, capped at 8s.
func Backoff(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	if n >= 5 {
		return maxBackoff
	}
	return min(baseBackoff<<n, maxBackoff)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// generate calls the provider with retries. check rejects unusable output, which
// counts as a failed attempt. The returned Completion is set whenever the provider
// was reached, even on error.
func (s *LLMService) generate(ctx context.Context, msgs []llms.MessageContent, jsonMode bool, check func(string) error) (*Completion, error) {
	p, err := s.ActiveSettings(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.model(ctx, p)
	if err != nil {
		return nil, err
	}

	opts := []llms.CallOption{llms.WithTemperature(p.Temperature)}
	if p.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(p.MaxTokens))
	}
	if jsonMode {
		opts = append(opts, llms.WithJSONMode())
	}
	timeout := time.Duration(p.TimeoutSeconds) * time.Second

	comp := &Completion{Provider: p.Provider, Model: p.Model}
	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, Backoff(attempt-1)); err != nil {
				return comp, err
			}
		}
		comp.Attempts++

		text, err := callOnce(ctx, m, msgs, timeout, opts)
		comp.Text = text
		if err == nil && check != nil {
			if cerr := check(text); cerr != nil {
				err = fmt.Errorf("%w: %v", ErrAIMalformed, cerr)
			}
		}
		if err == nil {
			comp.Latency = time.Since(start)
			return comp, nil
		}
		if ctx.Err() != nil {
			return comp, ctx.Err()
		}
		lastErr = err
		log.WithFields(log.Fields{
			"provider": p.Provider,
			"model":    p.Model,
			"attempt":  comp.Attempts,
		}).WithError(err).Warn("ai call failed")
	}
	comp.Latency = time.Since(start)

	if errors.Is(lastErr, ErrAIMalformed) {
		return comp, fmt.Errorf("after %d attempts: %w", comp.Attempts, lastErr)
	}
	return comp, fmt.Errorf("%w after %d attempts: %v", ErrAIUnavailable, comp.Attempts, lastErr)
}

func callOnce(ctx context.Context, m llms.Model, msgs []llms.MessageContent, timeout time.Duration, opts []llms.CallOption) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	resp, err := m.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("empty response from provider")
	}
	return resp.Choices[0].Content, nil
}

// Complete sends a single prompt and returns the text answer.
func (s *LLMService) Complete(ctx context.Context, prompt string) (*Completion, error) {
	msgs := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}
	return s.generate(ctx, msgs, false, nonEmpty)
}

// GenerateJSON asks for a JSON object and decodes it into a fresh T.
// Output that does not decode is retried like a transport failure.
func GenerateJSON[T any](ctx context.Context, s *LLMService, prompt string) (*T, *Completion, error) {
	var out *T
	msgs := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}
	comp, err := s.generate(ctx, msgs, true, func(text string) error {
		v := new(T)
		if err := DecodeJSON(text, v); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, comp, err
	}
	return out, comp, nil
}

func nonEmpty(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("empty answer")
	}
	return nil
}

// CleanJSON strips markdown fences and isolates the first JSON object.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	if start < 0 {
		return s
	}
	// first complete object; prose after it may contain braces of its own
	var obj json.RawMessage
	if err := json.NewDecoder(strings.NewReader(s[start:])).Decode(&obj); err == nil {
		return string(obj)
	}
	if end := strings.LastIndex(s, "}"); end > start {
		return s[start : end+1]
	}
	return s
}

// DecodeJSON cleans model output and unmarshals it into v.
func DecodeJSON(text string, v any) error {
	cleaned := CleanJSON(text)
	if !strings.HasPrefix(cleaned, "{") {
		return errors.New("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

type AITestResult struct {
	OK        bool   `json:"ok"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	LatencyMS int64  `json:"latency_ms"`
	Reply     string `json:"reply,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Test sends a trivial prompt with the active settings.
func (s *LLMService) Test(ctx context.Context) *AITestResult {
	p, err := s.ActiveSettings(ctx)
	res := &AITestResult{Provider: p.Provider, Model: p.Model}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	start := time.Now()
	comp, err := s.Complete(ctx, "Reply with the single word: pong")
	res.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.OK = true
	res.Reply = strings.TrimSpace(comp.Text)
	return res
}

const jobExtractionPrompt = `You are an expert job posting extraction agent. Analyse the raw HTML or text of a job posting and extract structured data.

Instructions:
1. Ignore navigation menus, footers, "similar jobs" lists and advertisements.
2. Respond with one valid JSON object only, no markdown.
3. If a value is missing, use null (or an empty array). Do not guess.

Schema:
{
  "title": "Job title, e.g. Senior Backend Engineer",
  "department": "Team or department",
  "location": "Location or 'Remote'",
  "employment_type": "full-time | part-time | contract | internship",
  "description": "Clean summary of responsibilities and requirements without HTML",
  "required_skills": ["Go", "PostgreSQL", "Kubernetes"],
  "salary_range": "Salary text if explicitly stated, e.g. '$100k - $150k'"
}

Raw content:
%s`

// ExtractJobDetails turns a raw posting into structured fields.
func (s *LLMService) ExtractJobDetails(ctx context.Context, raw string) (*dtos.ExtractedJob, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, invalid("raw_html is empty")
	}
	if len(raw) > maxPostingChars {
		raw = truncateUTF8(raw, maxPostingChars)
	}
	job, _, err := GenerateJSON[dtos.ExtractedJob](ctx, s, fmt.Sprintf(jobExtractionPrompt, raw))
	if err != nil {
		return nil, err
	}
	job.RequiredSkills = dedupeStrings(job.RequiredSkills)
	return job, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		k := strings.ToLower(v)
		if v == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}
