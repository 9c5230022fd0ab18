package database

import (
	"context"
	"fmt"
	"time"

	"github.com/justsurfingit/ats-backend/internal/logging"
	"github.com/justsurfingit/ats-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// migrationLockKey is the pg advisory lock taken while a migration runs.
const migrationLockKey = 7_300_211

type Migration struct {
	Version uint
	Name    string
	Up      func(tx *gorm.DB) error
}

type MigrationState struct {
	Version   uint       `json:"version"`
	Name      string     `json:"name"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

// Migrations is the ordered schema history. Append only.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "initial_schema", Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.User{}, &models.UserSession{}, &models.AuditLog{},
				&models.Candidate{}, &models.Job{},
				&models.Resume{}, &models.AIAnalysis{},
				&models.Skill{}, &models.WorkExperience{}, &models.Education{},
				&models.Project{}, &models.Certification{}, &models.Language{},
				&models.Application{}, &models.ApplicationEvent{}, &models.CandidateJobMatch{},
				&models.AIProviderSetting{}, &models.SystemSetting{},
				&models.ProcessedEmail{}, &models.InboxState{},
			)
		}},
		{Version: 2, Name: "single_current_resume", Up: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_resumes_one_current
				ON resumes (candidate_id) WHERE is_current`).Error
		}},
		{Version: 3, Name: "case_insensitive_emails", Up: func(tx *gorm.DB) error {
			if err := tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_candidates_email_lower ON candidates (lower(email))`).Error; err != nil {
				return err
			}
			return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (lower(email))`).Error
		}},
		{Version: 4, Name: "status_check_constraints", Up: func(tx *gorm.DB) error {
			checks := []struct{ table, name, expr string }{
				{"candidates", "chk_candidates_status", "status IN ('new','active','hired','archived')"},
				{"jobs", "chk_jobs_status", "status IN ('draft','open','closed')"},
				{"applications", "chk_applications_status", "status IN ('applied','screening','interview','offer','rejected','hired')"},
				{"resumes", "chk_resumes_parse_status", "parse_status IN ('pending','processing','parsed','failed')"},
				{"users", "chk_users_role", "role IN ('admin','recruiter','viewer')"},
				{"candidate_job_matches", "chk_matches_score", "score >= 0 AND score <= 100"},
			}
			for _, c := range checks {
				if err := tx.Exec(fmt.Sprintf(`ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s`, c.table, c.name)).Error; err != nil {
					return fmt.Errorf("%s: %w", c.name, err)
				}
				if err := tx.Exec(fmt.Sprintf(`ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s)`, c.table, c.name, c.expr)).Error; err != nil {
					return fmt.Errorf("%s: %w", c.name, err)
				}
			}
			return nil
		}},
		{Version: 5, Name: "default_system_settings", Up: func(tx *gorm.DB) error {
			defaults := []models.SystemSetting{
				{Key: "company_name", Value: "", Description: "Shown in exports and chat answers"},
				{Key: "chat_context_limit", Value: "10", Description: "Max candidates sent to the AI per chat question"},
				{Key: "auto_match_on_parse", Value: "true", Description: "Recompute matches for open jobs after a resume is parsed"},
			}
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults).Error
		}},
	}
}

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return RunMigrations(ctx, db, Migrations())
}

// RunMigrations applies each migration not yet recorded in schema_migrations.
// Every migration runs in its own transaction under an advisory lock, so running
// this concurrently or repeatedly is safe.
func RunMigrations(ctx context.Context, db *gorm.DB, migrations []Migration) error {
	logger := logging.Component("migrate")
	if err := validateMigrations(migrations); err != nil {
		return err
	}
	if err := db.WithContext(ctx).AutoMigrate(&models.SchemaMigration{}); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		applied := false
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrationLockKey).Error; err != nil {
				return err
			}
			var count int64
			if err := tx.Model(&models.SchemaMigration{}).Where("version = ?", m.Version).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return nil
			}
			if err := m.Up(tx); err != nil {
				return err
			}
			applied = true
			return tx.Create(&models.SchemaMigration{Version: m.Version, Name: m.Name, AppliedAt: time.Now()}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		if applied {
			logger.WithField("version", m.Version).Infof("applied %s", m.Name)
		}
	}
	return nil
}

// MigrationStatus lists every known migration and when it was applied.
func MigrationStatus(ctx context.Context, db *gorm.DB) ([]MigrationState, error) {
	if err := db.WithContext(ctx).AutoMigrate(&models.SchemaMigration{}); err != nil {
		return nil, err
	}
	var rows []models.SchemaMigration
	if err := db.WithContext(ctx).Order("version").Find(&rows).Error; err != nil {
		return nil, err
	}
	return mergeStatus(Migrations(), rows), nil
}

func mergeStatus(migrations []Migration, applied []models.SchemaMigration) []MigrationState {
	byVersion := make(map[uint]models.SchemaMigration, len(applied))
	for _, a := range applied {
		byVersion[a.Version] = a
	}
	out := make([]MigrationState, 0, len(migrations))
	for _, m := range migrations {
		st := MigrationState{Version: m.Version, Name: m.Name}
		if a, ok := byVersion[m.Version]; ok {
			at := a.AppliedAt
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out
}

func validateMigrations(migrations []Migration) error {
	var last uint
	for i, m := range migrations {
		if m.Version == 0 {
			return fmt.Errorf("migration %q has version 0", m.Name)
		}
		if i > 0 && m.Version <= last {
			return fmt.Errorf("migration %d (%s) is out of order", m.Version, m.Name)
		}
		if m.Up == nil {
			return fmt.Errorf("migration %d (%s) has no Up func", m.Version, m.Name)
		}
		last = m.Version
	}
	return nil
}
