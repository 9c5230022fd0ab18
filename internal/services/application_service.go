package services

import (
	"context"
	"fmt"
	"time"

	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	EventCreated       = "created"
	EventStatusChanged = "status_changed"
)

type ApplicationService struct {
	DB *gorm.DB
}

func NewApplicationService(db *gorm.DB) *ApplicationService {
	return &ApplicationService{DB: db}
}

// Create links a candidate to an open job. A second application for the same
// pair is a conflict.
func (s *ApplicationService) Create(ctx context.Context, req *dtos.ApplicationCreateRequest, actorID *uint) (*models.Application, error) {
	app := &models.Application{
		CandidateID: req.CandidateID,
		JobID:       req.JobID,
		ResumeID:    req.ResumeID,
		Status:      models.ApplicationApplied,
		Notes:       req.Notes,
		AppliedAt:   time.Now(),
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Candidate
		if err := tx.Select("id").First(&c, req.CandidateID).Error; err != nil {
			return dbError(err, "candidate")
		}
		var job models.Job
		if err := tx.Select("id", "status").First(&job, req.JobID).Error; err != nil {
			return dbError(err, "job")
		}
		if job.Status != models.JobStatusOpen {
			return invalid("job is %s, only open jobs accept applications", job.Status)
		}
		if req.ResumeID != nil {
			var r models.Resume
			if err := tx.Select("id", "candidate_id").First(&r, *req.ResumeID).Error; err != nil {
				return dbError(err, "resume")
			}
			if r.CandidateID != req.CandidateID {
				return invalid("resume %d does not belong to candidate %d", r.ID, req.CandidateID)
			}
		}

		if err := tx.Create(app).Error; err != nil {
			return dbError(err, "application for this candidate and job")
		}
		return tx.Create(&models.ApplicationEvent{
			ApplicationID: app.ID,
			EventType:     EventCreated,
			ToStatus:      app.Status,
			Note:          req.Notes,
			ActorID:       actorID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// ChangeStatus moves an application along the pipeline. Hiring also marks the
// candidate as hired.
func (s *ApplicationService) ChangeStatus(ctx context.Context, id uint, req *dtos.ApplicationStatusRequest, actorID *uint) (*models.Application, error) {
	if !models.ValidApplicationStatus(req.Status) {
		return nil, invalid("unknown application status %q", req.Status)
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app models.Application
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&app, id).Error; err != nil {
			return dbError(err, "application")
		}
		if !models.CanTransition(app.Status, req.Status) {
			return fmt.Errorf("%s -> %s: %w", app.Status, req.Status, ErrInvalidTransition)
		}
		from := app.Status
		if err := tx.Model(&app).Update("status", req.Status).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.ApplicationEvent{
			ApplicationID: app.ID,
			EventType:     EventStatusChanged,
			FromStatus:    from,
			ToStatus:      req.Status,
			Note:          req.Note,
			ActorID:       actorID,
		}).Error; err != nil {
			return err
		}
		if req.Status == models.ApplicationHired {
			return tx.Model(&models.Candidate{}).Where("id = ?", app.CandidateID).
				Update("status", models.CandidateStatusHired).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *ApplicationService) List(ctx context.Context, f dtos.ApplicationFilter) ([]models.Application, error) {
	q := s.DB.WithContext(ctx).Model(&models.Application{})
	if f.JobID != 0 {
		q = q.Where("job_id = ?", f.JobID)
	}
	if f.CandidateID != 0 {
		q = q.Where("candidate_id = ?", f.CandidateID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	out := []models.Application{}
	err := q.Preload("Candidate").Preload("Job").Order("updated_at DESC").Find(&out).Error
	return out, err
}

// Get returns the application with its candidate, job and status history.
func (s *ApplicationService) Get(ctx context.Context, id uint) (*models.Application, error) {
	var app models.Application
	err := s.DB.WithContext(ctx).
		Preload("Candidate").
		Preload("Job").
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&app, id).Error
	if err != nil {
		return nil, dbError(err, "application")
	}
	return &app, nil
}

func (s *ApplicationService) Delete(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Application{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dbError(gorm.ErrRecordNotFound, "application")
	}
	return nil
}
