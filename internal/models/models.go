package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	CandidateStatusNew      = "new"
	CandidateStatusActive   = "active"
	CandidateStatusHired    = "hired"
	CandidateStatusArchived = "archived"
)

const (
	SourceManual = "manual"
	SourceUpload = "upload"
	SourceEmail  = "email"
)

const (
	ParseStatusPending    = "pending"
	ParseStatusProcessing = "processing"
	ParseStatusParsed     = "parsed"
	ParseStatusFailed     = "failed"
)

const (
	AnalysisCompleted = "completed"
	AnalysisFailed    = "failed"
	AnalysisFallback  = "fallback"
)

// ValidCandidateStatus reports whether s is a known candidate status.
func ValidCandidateStatus(s string) bool {
	switch s {
	case CandidateStatusNew, CandidateStatusActive, CandidateStatusHired, CandidateStatusArchived:
		return true
	}
	return false
}

type Candidate struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	FullName        string  `gorm:"index" json:"full_name"`
	Email           string  `gorm:"uniqueIndex;not null" json:"email"`
	Phone           string  `json:"phone"`
	Location        string  `json:"location"`
	Headline        string  `json:"headline"`
	Summary         string  `gorm:"type:text" json:"summary"`
	YearsExperience float64 `json:"years_experience"`
	LinkedInURL     string  `json:"linkedin_url"`
	PortfolioURL    string  `json:"portfolio_url"`
	Status          string  `gorm:"type:varchar(20);not null;default:'new';index" json:"status"`
	Source          string  `gorm:"type:varchar(20);not null;default:'manual'" json:"source"`

	// Associations are only filled when preloaded.
	Resumes         []Resume            `gorm:"constraint:OnDelete:CASCADE" json:"resumes,omitempty"`
	Skills          []Skill             `gorm:"constraint:OnDelete:CASCADE" json:"skills,omitempty"`
	WorkExperiences []WorkExperience    `gorm:"constraint:OnDelete:CASCADE" json:"work_experiences,omitempty"`
	Educations      []Education         `gorm:"constraint:OnDelete:CASCADE" json:"educations,omitempty"`
	Projects        []Project           `gorm:"constraint:OnDelete:CASCADE" json:"projects,omitempty"`
	Certifications  []Certification     `gorm:"constraint:OnDelete:CASCADE" json:"certifications,omitempty"`
	Languages       []Language          `gorm:"constraint:OnDelete:CASCADE" json:"languages,omitempty"`
	Applications    []Application       `gorm:"constraint:OnDelete:CASCADE" json:"applications,omitempty"`
	Matches         []CandidateJobMatch `gorm:"constraint:OnDelete:CASCADE" json:"matches,omitempty"`
}

type Resume struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CandidateID    uint   `gorm:"not null;uniqueIndex:idx_resume_version" json:"candidate_id"`
	Version        int    `gorm:"not null;uniqueIndex:idx_resume_version" json:"version"`
	IsCurrent      bool   `gorm:"not null;index" json:"is_current"`
	FileName       string `gorm:"not null" json:"file_name"`
	MimeType       string `json:"mime_type"`
	SizeBytes      int64  `json:"size_bytes"`
	StorageBackend string `gorm:"type:varchar(20)" json:"storage_backend"`
	StorageKey     string `gorm:"not null" json:"-"`
	ContentHash    string `gorm:"type:char(64);index" json:"content_hash"`
	ExtractedText  string `gorm:"type:text" json:"-"`
	ParseStatus    string `gorm:"type:varchar(20);not null;default:'pending'" json:"parse_status"`
	ParseError     string `gorm:"type:text" json:"parse_error,omitempty"`

	Analyses []AIAnalysis `gorm:"constraint:OnDelete:CASCADE" json:"analyses,omitempty"`
}

type Skill struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	CandidateID uint      `gorm:"not null;index" json:"candidate_id"`
	Name        string    `gorm:"not null" json:"name"`
	Level       string    `json:"level"`
	Years       float64   `json:"years"`
}

type WorkExperience struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	CandidateID uint       `gorm:"not null;index" json:"candidate_id"`
	Company     string     `json:"company"`
	Title       string     `json:"title"`
	Location    string     `json:"location"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	IsCurrent   bool       `json:"is_current"`
	Description string     `gorm:"type:text" json:"description"`
}

type Education struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	CandidateID uint      `gorm:"not null;index" json:"candidate_id"`
	Institution string    `json:"institution"`
	Degree      string    `json:"degree"`
	Field       string    `json:"field"`
	StartYear   int       `json:"start_year"`
	EndYear     int       `json:"end_year"`
	Grade       string    `json:"grade"`
}

type Project struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	CandidateID  uint      `gorm:"not null;index" json:"candidate_id"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Description  string    `gorm:"type:text" json:"description"`
	URL          string    `json:"url"`
	Technologies string    `json:"technologies"`
}

type Certification struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	CandidateID  uint       `gorm:"not null;index" json:"candidate_id"`
	Name         string     `json:"name"`
	Issuer       string     `json:"issuer"`
	IssuedAt     *time.Time `json:"issued_at"`
	ExpiresAt    *time.Time `json:"expires_at"`
	CredentialID string     `json:"credential_id"`
}

type Language struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	CandidateID uint      `gorm:"not null;index" json:"candidate_id"`
	Name        string    `json:"name"`
	Proficiency string    `json:"proficiency"`
}

// AIAnalysis caches the AI output for one resume text.
type AIAnalysis struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ResumeID      uint           `gorm:"not null;index" json:"resume_id"`
	Provider      string         `json:"provider"`
	Model         string         `json:"model"`
	PromptVersion string         `json:"prompt_version"`
	TextHash      string         `gorm:"type:char(64);index" json:"text_hash"`
	Status        string         `gorm:"type:varchar(20);not null" json:"status"`
	Result        datatypes.JSON `json:"result"`
	RawResponse   string         `gorm:"type:text" json:"-"`
	Error         string         `gorm:"type:text" json:"error,omitempty"`
	Attempts      int            `json:"attempts"`
	LatencyMS     int64          `json:"latency_ms"`
}

// ProcessedEmail marks a Gmail message as already ingested.
type ProcessedEmail struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
}

// InboxState is the Gmail sync bookmark for one mailbox.
type InboxState struct {
	ID            uint   `gorm:"primaryKey"`
	Mailbox       string `gorm:"uniqueIndex;not null"`
	LastHistoryID uint64
	UpdatedAt     time.Time
}
