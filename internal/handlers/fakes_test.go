package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/justsurfingit/ats-backend/internal/services"
)

type fakeAudit struct {
	mu      sync.Mutex
	entries []services.AuditEntry
}

func (f *fakeAudit) Record(_ context.Context, e services.AuditEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

func (f *fakeAudit) List(context.Context, dtos.AuditFilter) ([]models.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AuditLog, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, models.AuditLog{UserID: e.UserID, Action: e.Action, EntityType: e.EntityType})
	}
	return out, nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

// fakeSessions knows one token per user.
type fakeSessions struct {
	tokens map[string]*models.User
}

func (f *fakeSessions) Authenticate(_ context.Context, token string) (*models.User, error) {
	if u, ok := f.tokens[token]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("invalid or expired token: %w", services.ErrUnauthorized)
}

func (f *fakeSessions) Login(_ context.Context, req *dtos.LoginRequest, _ services.ClientInfo) (*dtos.LoginResponse, error) {
	for tok, u := range f.tokens {
		if u.Email == req.Email && req.Password == "password1" {
			return &dtos.LoginResponse{Token: tok, ExpiresAt: time.Now().Add(time.Hour), User: *u}, nil
		}
	}
	return nil, fmt.Errorf("invalid email or password: %w", services.ErrUnauthorized)
}

func (f *fakeSessions) Logout(_ context.Context, token string) error {
	delete(f.tokens, token)
	return nil
}

type fakeUsers struct{ users []models.User }

func (f *fakeUsers) List(context.Context) ([]models.User, error) { return f.users, nil }

func (f *fakeUsers) Create(_ context.Context, req *dtos.UserCreateRequest) (*models.User, error) {
	u := models.User{ID: uint(len(f.users) + 10), Email: req.Email, Role: req.Role, Active: true}
	f.users = append(f.users, u)
	return &u, nil
}

func (f *fakeUsers) Update(_ context.Context, id uint, req *dtos.UserUpdateRequest) (*models.User, error) {
	for i := range f.users {
		if f.users[i].ID == id {
			if req.Role != nil {
				f.users[i].Role = *req.Role
			}
			if req.Active != nil {
				f.users[i].Active = *req.Active
			}
			return &f.users[i], nil
		}
	}
	return nil, fmt.Errorf("user %w", services.ErrNotFound)
}

type fakeCandidates struct {
	items map[uint]*models.Candidate
	next  uint
}

func newFakeCandidates() *fakeCandidates {
	return &fakeCandidates{items: map[uint]*models.Candidate{}, next: 1}
}

func (f *fakeCandidates) List(context.Context, dtos.CandidateFilter) (*services.CandidatePage, error) {
	page := &services.CandidatePage{Items: []models.Candidate{}, Page: 1, PageSize: 20}
	for _, c := range f.items {
		page.Items = append(page.Items, *c)
	}
	page.Total = int64(len(page.Items))
	return page, nil
}

func (f *fakeCandidates) Get(_ context.Context, id uint) (*models.Candidate, error) {
	if c, ok := f.items[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("candidate %w", services.ErrNotFound)
}

func (f *fakeCandidates) Create(_ context.Context, req *dtos.CandidateCreateRequest) (*models.Candidate, error) {
	for _, c := range f.items {
		if c.Email == req.Email {
			return nil, fmt.Errorf("candidate with this email %w", services.ErrConflict)
		}
	}
	c := &models.Candidate{ID: f.next, Email: req.Email, FullName: req.FullName, Status: models.CandidateStatusNew}
	f.items[c.ID] = c
	f.next++
	return c, nil
}

func (f *fakeCandidates) Update(ctx context.Context, id uint, req *dtos.CandidateUpdateRequest) (*models.Candidate, error) {
	c, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Headline != nil {
		c.Headline = *req.Headline
	}
	return c, nil
}

func (f *fakeCandidates) Delete(ctx context.Context, id uint) error {
	if _, err := f.Get(ctx, id); err != nil {
		return err
	}
	delete(f.items, id)
	return nil
}

func (f *fakeCandidates) ReplaceProfile(ctx context.Context, id uint, prof *dtos.CandidateProfile) (*models.Candidate, error) {
	c, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Skills = nil
	for _, s := range prof.Skills {
		c.Skills = append(c.Skills, models.Skill{CandidateID: id, Name: s.Name})
	}
	return c, nil
}

type fakeResumes struct {
	uploads []services.UploadInput
	force   bool
}

func (f *fakeResumes) IngestSync(_ context.Context, in services.UploadInput) (*services.IngestResult, error) {
	f.uploads = append(f.uploads, in)
	return &services.IngestResult{
		Candidate:        &models.Candidate{ID: 1, Email: "jane@example.com"},
		Resume:           &models.Resume{ID: 5, CandidateID: 1, Version: 1, FileName: in.FileName, ParseStatus: models.ParseStatusParsed},
		Analysis:         &models.AIAnalysis{ID: 9, Status: models.AnalysisCompleted},
		CandidateCreated: true,
	}, nil
}

func (f *fakeResumes) Upload(_ context.Context, candidateID uint, in services.UploadInput) (*models.Resume, error) {
	if candidateID != 1 {
		return nil, fmt.Errorf("candidate %w", services.ErrNotFound)
	}
	f.uploads = append(f.uploads, in)
	return &models.Resume{ID: 6, CandidateID: candidateID, Version: 2, FileName: in.FileName, ParseStatus: models.ParseStatusPending}, nil
}

func (f *fakeResumes) Reparse(_ context.Context, id uint, force bool) (*models.Resume, error) {
	f.force = force
	return &models.Resume{ID: id, ParseStatus: models.ParseStatusPending}, nil
}

func (f *fakeResumes) ListForCandidate(context.Context, uint) ([]models.Resume, error) {
	return []models.Resume{}, nil
}

func (f *fakeResumes) Get(_ context.Context, id uint) (*models.Resume, error) {
	return &models.Resume{ID: id}, nil
}

func (f *fakeResumes) Download(_ context.Context, id uint) (*models.Resume, []byte, error) {
	return &models.Resume{ID: id, FileName: "jane doe.txt", MimeType: "text/plain"}, []byte("hello"), nil
}

func (f *fakeResumes) LatestAnalysis(context.Context, uint) (*models.AIAnalysis, error) {
	return nil, fmt.Errorf("analysis %w", services.ErrNotFound)
}

type fakeJobs struct {
	extractErr error
}

func (f *fakeJobs) CreateJob(_ context.Context, req *dtos.JobCreationRequest, _ *uint) (*models.Job, error) {
	return &models.Job{ID: 3, Title: req.Title, Status: models.JobStatusDraft}, nil
}

func (f *fakeJobs) ListJobs(context.Context, dtos.JobFilter) ([]models.Job, error) {
	return []models.Job{{ID: 3, Title: "Backend"}}, nil
}

func (f *fakeJobs) GetJob(_ context.Context, id uint) (*models.Job, error) {
	if id != 3 {
		return nil, fmt.Errorf("job %w", services.ErrNotFound)
	}
	return &models.Job{ID: 3, Title: "Backend"}, nil
}

func (f *fakeJobs) UpdateJob(ctx context.Context, id uint, _ *dtos.JobUpdateRequest) (*models.Job, error) {
	return f.GetJob(ctx, id)
}

func (f *fakeJobs) DeleteJob(ctx context.Context, id uint) error {
	_, err := f.GetJob(ctx, id)
	return err
}

func (f *fakeJobs) ExtractJob(context.Context, *dtos.JobExtractionRequest) (*dtos.ExtractedJob, error) {
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return &dtos.ExtractedJob{Title: "Go Engineer", RequiredSkills: []string{"Go"}}, nil
}

type fakeMatcher struct{ minScore float64 }

func (f *fakeMatcher) RecomputeForJob(_ context.Context, jobID uint) ([]models.CandidateJobMatch, error) {
	return []models.CandidateJobMatch{{CandidateID: 1, JobID: jobID, Score: 50}}, nil
}

func (f *fakeMatcher) ListForJob(_ context.Context, jobID uint, minScore float64) ([]models.CandidateJobMatch, error) {
	f.minScore = minScore
	return []models.CandidateJobMatch{}, nil
}

func (f *fakeMatcher) ListForCandidate(context.Context, uint) ([]models.CandidateJobMatch, error) {
	return []models.CandidateJobMatch{}, nil
}

type fakeApplications struct{}

func (fakeApplications) Create(_ context.Context, req *dtos.ApplicationCreateRequest, _ *uint) (*models.Application, error) {
	if req.JobID == 99 {
		return nil, fmt.Errorf("application for this candidate and job %w", services.ErrConflict)
	}
	return &models.Application{ID: 1, CandidateID: req.CandidateID, JobID: req.JobID, Status: models.ApplicationApplied}, nil
}

func (fakeApplications) ChangeStatus(_ context.Context, id uint, req *dtos.ApplicationStatusRequest, _ *uint) (*models.Application, error) {
	if req.Status == models.ApplicationScreening {
		return nil, fmt.Errorf("interview -> screening: %w", services.ErrInvalidTransition)
	}
	return &models.Application{ID: id, Status: req.Status}, nil
}

func (fakeApplications) List(context.Context, dtos.ApplicationFilter) ([]models.Application, error) {
	return []models.Application{}, nil
}

func (fakeApplications) Get(_ context.Context, id uint) (*models.Application, error) {
	return &models.Application{ID: id}, nil
}

func (fakeApplications) Delete(context.Context, uint) error { return nil }

type fakeSettings struct {
	updated *dtos.AISettingsRequest
}

func (f *fakeSettings) GetAI(context.Context) (*dtos.AISettingsResponse, error) {
	return &dtos.AISettingsResponse{Provider: models.ProviderOpenAI, APIKeySet: true, APIKeyMasked: services.MaskKey("sk-secret-1234")}, nil
}

func (f *fakeSettings) UpdateAI(_ context.Context, req *dtos.AISettingsRequest, _ *uint) (*dtos.AISettingsResponse, error) {
	f.updated = req
	return &dtos.AISettingsResponse{Provider: req.Provider, Model: req.Model, Source: "database"}, nil
}

func (f *fakeSettings) TestAI(context.Context) *services.AITestResult {
	return &services.AITestResult{OK: false, Provider: models.ProviderNone, Error: "ai provider unavailable"}
}

func (f *fakeSettings) List(context.Context) ([]models.SystemSetting, error) {
	return []models.SystemSetting{{Key: "company_name", Value: "Acme"}}, nil
}

func (f *fakeSettings) Get(_ context.Context, key string) (*models.SystemSetting, error) {
	if key != "company_name" {
		return nil, fmt.Errorf("setting %w", services.ErrNotFound)
	}
	return &models.SystemSetting{Key: key, Value: "Acme"}, nil
}

func (f *fakeSettings) Set(_ context.Context, key string, req *dtos.SettingRequest) (*models.SystemSetting, error) {
	return &models.SystemSetting{Key: key, Value: req.Value}, nil
}

type fakeChat struct{ err error }

func (f fakeChat) Ask(_ context.Context, req *dtos.ChatRequest) (*dtos.ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dtos.ChatResponse{Answer: "Jane (#1) knows Go.", CandidateIDs: []uint{1}, Provider: "openai", Model: "test"}, nil
}

type fakeReports struct{ jobID uint }

func (f *fakeReports) ApplicationsWorkbook(_ context.Context, jobID uint) ([]byte, error) {
	f.jobID = jobID
	return []byte("PK\x03\x04"), nil
}
