package services

import (
	"context"
	"encoding/json"

	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultAuditLimit = 100

// AuditEntry describes one mutation for the audit log.
type AuditEntry struct {
	UserID     *uint
	Action     string
	EntityType string
	EntityID   uint
	Details    any
	IPAddress  string
}

type AuditService struct {
	DB *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{DB: db}
}

// Record writes the entry. Failures are logged, never returned: the mutation
// it describes has already happened.
func (s *AuditService) Record(ctx context.Context, e AuditEntry) {
	row := &models.AuditLog{
		UserID:     e.UserID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		IPAddress:  e.IPAddress,
	}
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err == nil {
			row.Details = datatypes.JSON(b)
		}
	}
	if err := s.DB.WithContext(context.WithoutCancel(ctx)).Create(row).Error; err != nil {
		log.WithError(err).WithFields(log.Fields{
			"action":      e.Action,
			"entity_type": e.EntityType,
			"entity_id":   e.EntityID,
		}).Error("failed to write audit log")
	}
}

func (s *AuditService) List(ctx context.Context, f dtos.AuditFilter) ([]models.AuditLog, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	q := s.DB.WithContext(ctx).Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	out := []models.AuditLog{}
	err := q.Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}
