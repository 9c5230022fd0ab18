package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/justsurfingit/ats-backend/internal/config"
	"gorm.io/gorm"
)

// OpenTestDB connects to TEST_DATABASE_URL, migrates it and empties every table.
// The test is skipped when the variable is unset.
func OpenTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := Connect(&config.Config{
		DatabaseURL:    dsn,
		DBMaxOpenConns: 5,
		DBMaxIdleConns: 2,
		DBConnLifetime: time.Minute,
	})
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	err = db.Exec(`TRUNCATE users, user_sessions, audit_logs, candidates, jobs, resumes, ai_analyses,
		skills, work_experiences, educations, projects, certifications, languages,
		applications, application_events, candidate_job_matches, ai_provider_settings,
		processed_emails, inbox_states, system_settings RESTART IDENTITY CASCADE`).Error
	if err != nil {
		t.Fatalf("truncate test database: %v", err)
	}
	t.Cleanup(func() { Close(db) })
	return db
}
