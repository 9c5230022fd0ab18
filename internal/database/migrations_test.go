package database

import (
	"context"
	"testing"
	"time"

	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func noop(*gorm.DB) error { return nil }

func TestValidateMigrations(t *testing.T) {
	tests := []struct {
		name    string
		list    []Migration
		wantErr string
	}{
		{name: "builtin list", list: Migrations()},
		{name: "empty", list: nil},
		{name: "zero version", list: []Migration{{Version: 0, Name: "x", Up: noop}}, wantErr: "version 0"},
		{name: "duplicate", list: []Migration{{1, "a", noop}, {1, "b", noop}}, wantErr: "out of order"},
		{name: "descending", list: []Migration{{2, "a", noop}, {1, "b", noop}}, wantErr: "out of order"},
		{name: "missing up", list: []Migration{{1, "a", nil}}, wantErr: "no Up func"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMigrations(tt.list)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeStatus(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	list := []Migration{{1, "one", noop}, {2, "two", noop}, {3, "three", noop}}
	applied := []models.SchemaMigration{{Version: 1, Name: "one", AppliedAt: at}, {Version: 3, Name: "three", AppliedAt: at}}

	got := mergeStatus(list, applied)
	require.Len(t, got, 3)
	require.NotNil(t, got[0].AppliedAt)
	assert.Equal(t, at, *got[0].AppliedAt)
	assert.Nil(t, got[1].AppliedAt)
	assert.NotNil(t, got[2].AppliedAt)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := OpenTestDB(t)
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))

	var count int64
	require.NoError(t, db.Model(&models.SchemaMigration{}).Count(&count).Error)
	assert.Equal(t, int64(len(Migrations())), count)

	states, err := MigrationStatus(ctx, db)
	require.NoError(t, err)
	for _, s := range states {
		assert.NotNil(t, s.AppliedAt, "migration %d not applied", s.Version)
	}
}

func TestCreateKeepsExplicitFalse(t *testing.T) {
	db := OpenTestDB(t)

	u := &models.User{Email: "off@example.com", PasswordHash: "x", Role: models.RoleViewer, Active: false}
	require.NoError(t, db.Create(u).Error)
	var gotUser models.User
	require.NoError(t, db.First(&gotUser, u.ID).Error)
	assert.False(t, gotUser.Active)

	c := &models.Candidate{Email: "c@example.com", Status: models.CandidateStatusNew}
	require.NoError(t, db.Create(c).Error)
	r := &models.Resume{CandidateID: c.ID, FileName: "old.pdf", Version: 1, IsCurrent: false, ParseStatus: models.ParseStatusParsed}
	require.NoError(t, db.Create(r).Error)
	var gotResume models.Resume
	require.NoError(t, db.First(&gotResume, r.ID).Error)
	assert.False(t, gotResume.IsCurrent)

	s := &models.AIProviderSetting{Provider: models.ProviderNone, Active: false}
	require.NoError(t, db.Create(s).Error)
	var gotSetting models.AIProviderSetting
	require.NoError(t, db.First(&gotSetting, s.ID).Error)
	assert.False(t, gotSetting.Active)
}
