package models

import (
	"time"

	"github.com/lib/pq"
)

const (
	JobStatusDraft  = "draft"
	JobStatusOpen   = "open"
	JobStatusClosed = "closed"
)

const (
	ApplicationApplied   = "applied"
	ApplicationScreening = "screening"
	ApplicationInterview = "interview"
	ApplicationOffer     = "offer"
	ApplicationRejected  = "rejected"
	ApplicationHired     = "hired"
)

// applicationStage orders the forward pipeline. Rejected sits outside it.
var applicationStage = map[string]int{
	ApplicationApplied:   0,
	ApplicationScreening: 1,
	ApplicationInterview: 2,
	ApplicationOffer:     3,
	ApplicationHired:     4,
}

func ValidJobStatus(s string) bool {
	return s == JobStatusDraft || s == JobStatusOpen || s == JobStatusClosed
}

func ValidApplicationStatus(s string) bool {
	_, ok := applicationStage[s]
	return ok || s == ApplicationRejected
}

// IsTerminalApplicationStatus reports whether no further change is allowed.
func IsTerminalApplicationStatus(s string) bool {
	return s == ApplicationHired || s == ApplicationRejected
}

// CanTransition reports whether an application may move from one status to another.
// Rejection is allowed from any open status; otherwise moves must go forward.
func CanTransition(from, to string) bool {
	if !ValidApplicationStatus(from) || !ValidApplicationStatus(to) || from == to {
		return false
	}
	if IsTerminalApplicationStatus(from) {
		return false
	}
	if to == ApplicationRejected {
		return true
	}
	return applicationStage[to] > applicationStage[from]
}

type Job struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title          string         `gorm:"not null" json:"title"`
	Department     string         `json:"department"`
	Location       string         `json:"location"`
	EmploymentType string         `json:"employment_type"`
	Description    string         `gorm:"type:text" json:"description"`
	Requirements   string         `gorm:"type:text" json:"requirements"`
	RequiredSkills pq.StringArray `gorm:"type:text[]" json:"required_skills"`
	SalaryMin      int            `json:"salary_min"`
	SalaryMax      int            `json:"salary_max"`
	Currency       string         `gorm:"type:varchar(3)" json:"currency"`
	JobLink        string         `json:"job_link"`
	Status         string         `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	CreatedByID    *uint          `json:"created_by_id"`

	Applications []Application       `gorm:"constraint:OnDelete:CASCADE" json:"applications,omitempty"`
	Matches      []CandidateJobMatch `gorm:"constraint:OnDelete:CASCADE" json:"matches,omitempty"`
}

type Application struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CandidateID uint       `gorm:"not null;uniqueIndex:idx_application_pair" json:"candidate_id"`
	Candidate   *Candidate `json:"candidate,omitempty"`
	JobID       uint       `gorm:"not null;uniqueIndex:idx_application_pair" json:"job_id"`
	Job         *Job       `json:"job,omitempty"`
	ResumeID    *uint      `json:"resume_id"`
	Status      string     `gorm:"type:varchar(20);not null;default:'applied';index" json:"status"`
	Notes       string     `gorm:"type:text" json:"notes"`
	AppliedAt   time.Time  `json:"applied_at"`

	Events []ApplicationEvent `gorm:"constraint:OnDelete:CASCADE" json:"events,omitempty"`
}

// ApplicationEvent is one entry in the status history of an application.
type ApplicationEvent struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	ApplicationID uint      `gorm:"not null;index" json:"application_id"`
	EventType     string    `json:"event_type"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	Note          string    `gorm:"type:text" json:"note"`
	ActorID       *uint     `json:"actor_id"`
}

type CandidateJobMatch struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CandidateID   uint           `gorm:"not null;uniqueIndex:idx_match_pair" json:"candidate_id"`
	JobID         uint           `gorm:"not null;uniqueIndex:idx_match_pair" json:"job_id"`
	Score         float64        `gorm:"index" json:"score"`
	MatchedSkills pq.StringArray `gorm:"type:text[]" json:"matched_skills"`
	MissingSkills pq.StringArray `gorm:"type:text[]" json:"missing_skills"`
	Method        string         `gorm:"type:varchar(20)" json:"method"`
	Rationale     string         `gorm:"type:text" json:"rationale,omitempty"`
}
