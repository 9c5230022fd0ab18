package services

import (
	"context"
	"testing"

	"github.com/justsurfingit/ats-backend/internal/database"
	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_CreateValidation(t *testing.T) {
	svc := NewJobService(nil, nil)
	tests := []struct {
		name string
		req  dtos.JobCreationRequest
	}{
		{"blank title", dtos.JobCreationRequest{Title: "   "}},
		{"salary range", dtos.JobCreationRequest{Title: "Eng", SalaryMin: 100, SalaryMax: 50}},
		{"status", dtos.JobCreationRequest{Title: "Eng", Status: "paused"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateJob(context.Background(), &tt.req, nil)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestJob_CRUD(t *testing.T) {
	db := database.OpenTestDB(t)
	ctx := context.Background()
	svc := NewJobService(db, nil)

	job, err := svc.CreateJob(ctx, &dtos.JobCreationRequest{
		Title:          " Backend Engineer ",
		Location:       "Berlin",
		RequiredSkills: []string{"Go", "go", "PostgreSQL"},
		Currency:       "eur",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", job.Title)
	assert.Equal(t, models.JobStatusDraft, job.Status)
	assert.Equal(t, "EUR", job.Currency)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, []string(job.RequiredSkills))

	open := models.JobStatusOpen
	maxSalary := 10
	_, err = svc.UpdateJob(ctx, job.ID, &dtos.JobUpdateRequest{SalaryMax: &maxSalary, Status: &open})
	require.NoError(t, err)
	minSalary := 20
	_, err = svc.UpdateJob(ctx, job.ID, &dtos.JobUpdateRequest{SalaryMin: &minSalary})
	assert.ErrorIs(t, err, ErrInvalidInput)

	list, err := svc.ListJobs(ctx, dtos.JobFilter{Status: models.JobStatusOpen, Q: "backend"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 10, list[0].SalaryMax)

	list, err = svc.ListJobs(ctx, dtos.JobFilter{Q: "100%"})
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, svc.DeleteJob(ctx, job.ID))
	_, err = svc.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteJob(ctx, job.ID), ErrNotFound)
}
