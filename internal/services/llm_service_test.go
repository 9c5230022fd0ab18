package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/justsurfingit/ats-backend/internal/config"
	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel replays scripted replies; an entry with err set fails that call.
type fakeModel struct {
	mu      sync.Mutex
	replies []fakeReply
	calls   int
	prompts []string
	// hook runs before every call
	hook func()
}

type fakeReply struct {
	text string
	err  error
}

func (f *fakeModel) GenerateContent(ctx context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if f.hook != nil {
		f.hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var sb []string
	for _, m := range msgs {
		for _, p := range m.Parts {
			if tp, ok := p.(llms.TextContent); ok {
				sb = append(sb, tp.Text)
			}
		}
	}
	f.prompts = append(f.prompts, strings.Join(sb, "\n"))

	idx := f.calls
	f.calls++
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	r := f.replies[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: r.text}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, opts...)
}

func (f *fakeModel) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// newTestLLM returns a service wired to fake with no waiting between retries.
func newTestLLM(fake *fakeModel, retries int) (*LLMService, *int) {
	builds := 0
	s := NewLLMService(nil, config.AIConfig{
		Provider:    models.ProviderOpenAI,
		Model:       "test-model",
		APIKey:      "sk-test",
		Temperature: 0,
		Timeout:     time.Second,
		MaxRetries:  retries,
	})
	s.NewModel = func(context.Context, ProviderSettings) (llms.Model, error) {
		builds++
		return fake, nil
	}
	s.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return s, &builds
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		n    int
		want time.Duration
	}{
		{-1, 500 * time.Millisecond},
		{0, 500 * time.Millisecond},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 8 * time.Second},
		{60, 8 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(tt.n), "n=%d", tt.n)
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"chatter", "Sure! Here you go: {\"a\":{\"b\":2}} Hope it helps.", `{"a":{"b":2}}`},
		{"no object", "no json here", "no json here"},
		{"braces after", "{\"a\":\"x}\"} Note: fields {unknown} were skipped.", `{"a":"x}"}`},
		{"truncated", "{\"a\": [1, 2", "{\"a\": [1, 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSON(tt.in))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		A int `json:"a"`
	}
	require.NoError(t, DecodeJSON("```json\n{\"a\": 3}\n```", &v))
	assert.Equal(t, 3, v.A)

	assert.Error(t, DecodeJSON("nothing", &v))
	assert.Error(t, DecodeJSON(`{"a": "three"`, &v))
}

func TestComplete_RetriesThenSucceeds(t *testing.T) {
	fake := &fakeModel{replies: []fakeReply{
		{err: errors.New("503 overloaded")},
		{text: "pong"},
	}}
	s, _ := newTestLLM(fake, 2)

	comp, err := s.Complete(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", comp.Text)
	assert.Equal(t, 2, comp.Attempts)
	assert.Equal(t, models.ProviderOpenAI, comp.Provider)
	assert.Equal(t, "test-model", comp.Model)
}

func TestComplete_AllAttemptsFail(t *testing.T) {
	fake := &fakeModel{replies: []fakeReply{{err: errors.New("connection refused")}}}
	s, _ := newTestLLM(fake, 2)

	comp, err := s.Complete(context.Background(), "ping")
	assert.ErrorIs(t, err, ErrAIUnavailable)
	require.NotNil(t, comp)
	assert.Equal(t, 3, comp.Attempts)
	assert.Equal(t, 3, fake.Calls())
}

func TestComplete_ProviderNone(t *testing.T) {
	s := NewLLMService(nil, config.AIConfig{Provider: models.ProviderNone})
	_, err := s.Complete(context.Background(), "ping")
	assert.ErrorIs(t, err, ErrAIUnavailable)
}

func TestComplete_FactoryError(t *testing.T) {
	s := NewLLMService(nil, config.AIConfig{Provider: models.ProviderOpenAI})
	s.NewModel = func(context.Context, ProviderSettings) (llms.Model, error) {
		return nil, errors.New("missing token")
	}
	_, err := s.Complete(context.Background(), "ping")
	assert.ErrorIs(t, err, ErrAIUnavailable)
}

func TestComplete_ContextCancelledStopsRetrying(t *testing.T) {
	fake := &fakeModel{replies: []fakeReply{{err: errors.New("timeout")}}}
	s, _ := newTestLLM(fake, 5)
	ctx, cancel := context.WithCancel(context.Background())
	s.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := s.Complete(ctx, "ping")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, fake.Calls())
}

func TestGenerateJSON_MalformedIsRetried(t *testing.T) {
	fake := &fakeModel{replies: []fakeReply{
		{text: "I think the answer is {not json"},
		{text: "```json\n{\"title\": \"Go Engineer\", \"required_skills\": [\"Go\"]}\n```"},
	}}
	s, _ := newTestLLM(fake, 1)

	type out struct {
		Title  string   `json:"title"`
		Skills []string `json:"required_skills"`
	}
	v, comp, err := GenerateJSON[out](context.Background(), s, "extract")
	require.NoError(t, err)
	assert.Equal(t, "Go Engineer", v.Title)
	assert.Equal(t, []string{"Go"}, v.Skills)
	assert.Equal(t, 2, comp.Attempts)
}

func TestDecodeJSON_TrailingProseWithBraces(t *testing.T) {
	var v struct {
		Title string `json:"title"`
	}
	require.NoError(t, DecodeJSON("```json\n{\"title\": \"SRE\"}\n```\nSkills like {Go} were inferred.", &v))
	assert.Equal(t, "SRE", v.Title)
}

func TestGenerateJSON_MalformedEveryTime(t *testing.T) {
	fake := &fakeModel{replies: []fakeReply{{text: "sorry, I cannot help"}}}
	s, _ := newTestLLM(fake, 1)

	_, comp, err := GenerateJSON[map[string]any](context.Background(), s, "extract")
	assert.ErrorIs(t, err, ErrAIMalformed)
	assert.NotErrorIs(t, err, ErrAIUnavailable)
	assert.Equal(t, "sorry, I cannot help", comp.Text)
}

func TestLLMService_CachesClientUntilInvalidated(t *testing.T) {
	fake := &fakeModel{replies: []fakeReply{{text: "ok"}}}
	s, builds := newTestLLM(fake, 0)
	ctx := context.Background()

	_, err := s.Complete(ctx, "a")
	require.NoError(t, err)
	_, err = s.Complete(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, *builds)

	s.Invalidate()
	_, err = s.Complete(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, *builds)
}

func TestActiveSettings_Defaults(t *testing.T) {
	s := NewLLMService(nil, config.AIConfig{Provider: models.ProviderGoogleAI, Timeout: 30 * time.Second, MaxRetries: -1})
	p, err := s.ActiveSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", p.Model)
	assert.Equal(t, 30, p.TimeoutSeconds)
	assert.Equal(t, 0, p.MaxRetries)

	s = NewLLMService(nil, config.AIConfig{})
	p, err = s.ActiveSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ProviderNone, p.Provider)
}

func TestExtractJobDetails(t *testing.T) {
	fake := &fakeModel{replies: []fakeReply{{text: `{"title":"Backend Engineer","location":"Remote","required_skills":["Go","go"," Postgres "],"salary_range":null}`}}}
	s, _ := newTestLLM(fake, 0)

	job, err := s.ExtractJobDetails(context.Background(), "<html><h1>Backend Engineer</h1></html>")
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", job.Title)
	assert.Equal(t, "Remote", job.Location)
	assert.Equal(t, []string{"Go", "Postgres"}, job.RequiredSkills)
	assert.Empty(t, job.SalaryRange)
}

func TestExtractJobDetails_Empty(t *testing.T) {
	s, _ := newTestLLM(&fakeModel{replies: []fakeReply{{text: "{}"}}}, 0)
	_, err := s.ExtractJobDetails(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "ab", truncateUTF8("abc", 2))
	assert.Equal(t, "abc", truncateUTF8("abc", 10))
	// "é" is two bytes; cutting in the middle drops it
	assert.Equal(t, "a", truncateUTF8("aé", 2))
}

func TestTest_ReportsFailure(t *testing.T) {
	s := NewLLMService(nil, config.AIConfig{Provider: models.ProviderNone})
	res := s.Test(context.Background())
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Error)

	fake := &fakeModel{replies: []fakeReply{{text: " pong \n"}}}
	s, _ = newTestLLM(fake, 0)
	res = s.Test(context.Background())
	assert.True(t, res.OK)
	assert.Equal(t, "pong", res.Reply)
}
