package handlers

import (
	"context"

	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/justsurfingit/ats-backend/internal/services"
)

// The handlers depend on these narrow views of the services.

type Auditor interface {
	Record(ctx context.Context, e services.AuditEntry)
	List(ctx context.Context, f dtos.AuditFilter) ([]models.AuditLog, error)
}

type SessionService interface {
	Authenticator
	Login(ctx context.Context, req *dtos.LoginRequest, client services.ClientInfo) (*dtos.LoginResponse, error)
	Logout(ctx context.Context, token string) error
}

type UserStore interface {
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, req *dtos.UserCreateRequest) (*models.User, error)
	Update(ctx context.Context, id uint, req *dtos.UserUpdateRequest) (*models.User, error)
}

type CandidateStore interface {
	List(ctx context.Context, f dtos.CandidateFilter) (*services.CandidatePage, error)
	Get(ctx context.Context, id uint) (*models.Candidate, error)
	Create(ctx context.Context, req *dtos.CandidateCreateRequest) (*models.Candidate, error)
	Update(ctx context.Context, id uint, req *dtos.CandidateUpdateRequest) (*models.Candidate, error)
	Delete(ctx context.Context, id uint) error
	ReplaceProfile(ctx context.Context, id uint, prof *dtos.CandidateProfile) (*models.Candidate, error)
}

type ResumeStore interface {
	IngestSync(ctx context.Context, in services.UploadInput) (*services.IngestResult, error)
	Upload(ctx context.Context, candidateID uint, in services.UploadInput) (*models.Resume, error)
	Reparse(ctx context.Context, id uint, force bool) (*models.Resume, error)
	ListForCandidate(ctx context.Context, candidateID uint) ([]models.Resume, error)
	Get(ctx context.Context, id uint) (*models.Resume, error)
	Download(ctx context.Context, id uint) (*models.Resume, []byte, error)
	LatestAnalysis(ctx context.Context, resumeID uint) (*models.AIAnalysis, error)
}

type JobStore interface {
	CreateJob(ctx context.Context, req *dtos.JobCreationRequest, actorID *uint) (*models.Job, error)
	ListJobs(ctx context.Context, f dtos.JobFilter) ([]models.Job, error)
	GetJob(ctx context.Context, id uint) (*models.Job, error)
	UpdateJob(ctx context.Context, id uint, req *dtos.JobUpdateRequest) (*models.Job, error)
	DeleteJob(ctx context.Context, id uint) error
	ExtractJob(ctx context.Context, req *dtos.JobExtractionRequest) (*dtos.ExtractedJob, error)
}

type Matcher interface {
	RecomputeForJob(ctx context.Context, jobID uint) ([]models.CandidateJobMatch, error)
	ListForJob(ctx context.Context, jobID uint, minScore float64) ([]models.CandidateJobMatch, error)
	ListForCandidate(ctx context.Context, candidateID uint) ([]models.CandidateJobMatch, error)
}

type ApplicationStore interface {
	Create(ctx context.Context, req *dtos.ApplicationCreateRequest, actorID *uint) (*models.Application, error)
	ChangeStatus(ctx context.Context, id uint, req *dtos.ApplicationStatusRequest, actorID *uint) (*models.Application, error)
	List(ctx context.Context, f dtos.ApplicationFilter) ([]models.Application, error)
	Get(ctx context.Context, id uint) (*models.Application, error)
	Delete(ctx context.Context, id uint) error
}

type SettingsStore interface {
	GetAI(ctx context.Context) (*dtos.AISettingsResponse, error)
	UpdateAI(ctx context.Context, req *dtos.AISettingsRequest, actorID *uint) (*dtos.AISettingsResponse, error)
	TestAI(ctx context.Context) *services.AITestResult
	List(ctx context.Context) ([]models.SystemSetting, error)
	Get(ctx context.Context, key string) (*models.SystemSetting, error)
	Set(ctx context.Context, key string, req *dtos.SettingRequest) (*models.SystemSetting, error)
}

type ChatService interface {
	Ask(ctx context.Context, req *dtos.ChatRequest) (*dtos.ChatResponse, error)
}

type ReportService interface {
	ApplicationsWorkbook(ctx context.Context, jobID uint) ([]byte, error)
}
