package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/justsurfingit/ats-backend/internal/database"
	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchTerms(t *testing.T) {
	assert.Equal(t, []string{"go", "kubernetes", "berlin"}, searchTerms("Who knows Go and Kubernetes in Berlin?"))
	assert.Equal(t, []string{"c++"}, searchTerms("candidates with C++"))
	assert.Empty(t, searchTerms("who are the best candidates?"))
}

func TestRenderProfile(t *testing.T) {
	start := time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC)
	c := &models.Candidate{
		ID: 7, FullName: "Jane Doe", Headline: "Backend Engineer", Location: "Berlin",
		YearsExperience: 6.5, Status: models.CandidateStatusActive, Email: "jane@example.com",
		Skills:          []models.Skill{{Name: "Go"}, {Name: "Docker"}},
		WorkExperiences: []models.WorkExperience{{Company: "Acme", Title: "Engineer", StartDate: &start, IsCurrent: true}},
		Educations:      []models.Education{{Institution: "TU Berlin", Degree: "MSc", Field: "CS", EndYear: 2016}},
		Summary:         "Builds APIs.",
	}
	want := "[Candidate #7] Jane Doe | Backend Engineer | Berlin | 6.5 yrs experience | status: active\n" +
		"Email: jane@example.com\n" +
		"Skills: Go, Docker\n" +
		"Experience: Engineer at Acme (2019-04 to present)\n" +
		"Education: MSc CS, TU Berlin (2016)\n" +
		"Summary: Builds APIs."
	assert.Equal(t, want, renderProfile(c))

	assert.Equal(t, "[Candidate #1] - | status: new\nEmail: x@example.com",
		renderProfile(&models.Candidate{ID: 1, Status: models.CandidateStatusNew, Email: "x@example.com"}))
}

func TestRankCandidates(t *testing.T) {
	cands := []models.Candidate{
		{ID: 1, FullName: "A", Skills: []models.Skill{{Name: "Java"}}},
		{ID: 2, FullName: "B", Skills: []models.Skill{{Name: "Go"}, {Name: "Kubernetes"}}},
		{ID: 3, FullName: "C", Skills: []models.Skill{{Name: "Kubernetes"}}},
	}
	rankCandidates(cands, []string{"go", "kubernetes"})
	assert.Equal(t, uint(2), cands[0].ID)
	assert.Equal(t, uint(3), cands[1].ID)
	assert.Equal(t, uint(1), cands[2].ID)

	// aliases count as hits
	rankCandidates(cands, []string{"k8s"})
	assert.Equal(t, uint(2), cands[0].ID)
	assert.Equal(t, uint(3), cands[1].ID)
	assert.Equal(t, uint(1), cands[2].ID)

	cands = []models.Candidate{
		{ID: 1, FullName: "A", Skills: []models.Skill{{Name: "Java"}}},
		{ID: 2, FullName: "B", Skills: []models.Skill{{Name: "Postgres"}}},
	}
	rankCandidates(cands, []string{"postgresql"})
	assert.Equal(t, uint(2), cands[0].ID)
}

func TestChat_Ask(t *testing.T) {
	db := database.OpenTestDB(t)
	ctx := context.Background()
	go1 := &models.Candidate{Email: "go@example.com", FullName: "Gopher One", Status: models.CandidateStatusActive,
		Skills: []models.Skill{{Name: "Go"}}}
	java := &models.Candidate{Email: "java@example.com", FullName: "Duke Two", Status: models.CandidateStatusActive,
		Skills: []models.Skill{{Name: "Java"}}}
	require.NoError(t, db.Create(go1).Error)
	require.NoError(t, db.Create(java).Error)

	fake := &fakeModel{replies: []fakeReply{{text: " Gopher One (#1) knows Go. "}}}
	llm, _ := newTestLLM(fake, 0)
	llm.DB = db
	chat := NewChatService(db, llm, NewSettingsService(db, llm))

	resp, err := chat.Ask(ctx, &dtos.ChatRequest{
		Message: "Who knows Kubernetes or Go?",
		History: []dtos.ChatTurn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Gopher One (#1) knows Go.", resp.Answer)
	assert.Equal(t, []uint{go1.ID}, resp.CandidateIDs)
	assert.Equal(t, models.ProviderOpenAI, resp.Provider)
	assert.Contains(t, fake.prompts[0], "Gopher One")
	assert.NotContains(t, fake.prompts[0], "Duke Two")

	resp, err = chat.Ask(ctx, &dtos.ChatRequest{Message: "Any golang people?"})
	require.NoError(t, err)
	assert.Equal(t, []uint{go1.ID}, resp.CandidateIDs)

	resp, err = chat.Ask(ctx, &dtos.ChatRequest{Message: "Compare them", CandidateIDs: []uint{go1.ID, java.ID}})
	require.NoError(t, err)
	assert.Equal(t, []uint{go1.ID, java.ID}, resp.CandidateIDs)

	_, err = chat.Ask(ctx, &dtos.ChatRequest{Message: "Compare", CandidateIDs: []uint{999}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChat_ProviderDown(t *testing.T) {
	db := database.OpenTestDB(t)
	fake := &fakeModel{replies: []fakeReply{{err: errors.New("502 bad gateway")}}}
	llm, _ := newTestLLM(fake, 1)
	llm.DB = db
	chat := NewChatService(db, llm, NewSettingsService(db, llm))

	_, err := chat.Ask(context.Background(), &dtos.ChatRequest{Message: "Who knows Go?"})
	assert.ErrorIs(t, err, ErrAIUnavailable)
}
