package services

import (
	"context"
	"strings"

	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type JobService struct {
	DB  *gorm.DB
	LLM *LLMService
}

func NewJobService(db *gorm.DB, llm *LLMService) *JobService {
	return &JobService{
		DB:  db,
		LLM: llm,
	}
}

func cleanSkills(in []string) pq.StringArray {
	out := dedupeStrings(in)
	return pq.StringArray(out)
}

func (s *JobService) CreateJob(ctx context.Context, req *dtos.JobCreationRequest, actorID *uint) (*models.Job, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if req.SalaryMax > 0 && req.SalaryMin > req.SalaryMax {
		return nil, invalid("salary_min is greater than salary_max")
	}
	job := &models.Job{
		Title:          title,
		Department:     req.Department,
		Location:       req.Location,
		EmploymentType: req.EmploymentType,
		Description:    req.Description,
		Requirements:   req.Requirements,
		RequiredSkills: cleanSkills(req.RequiredSkills),
		SalaryMin:      req.SalaryMin,
		SalaryMax:      req.SalaryMax,
		Currency:       strings.ToUpper(req.Currency),
		JobLink:        req.JobLink,
		Status:         req.Status,
		CreatedByID:    actorID,
	}
	if job.Status == "" {
		job.Status = models.JobStatusDraft
	}
	if !models.ValidJobStatus(job.Status) {
		return nil, invalid("unknown job status %q", job.Status)
	}
	if err := s.DB.WithContext(ctx).Create(job).Error; err != nil {
		return nil, dbError(err, "job")
	}
	return job, nil
}

func (s *JobService) ListJobs(ctx context.Context, f dtos.JobFilter) ([]models.Job, error) {
	q := s.DB.WithContext(ctx).Model(&models.Job{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if term := strings.TrimSpace(f.Q); term != "" {
		like := "%" + escapeLike(term) + "%"
		q = q.Where("title ILIKE ? OR description ILIKE ? OR department ILIKE ? OR location ILIKE ?", like, like, like, like)
	}
	jobs := []models.Job{}
	err := q.Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

func (s *JobService) GetJob(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	if err := s.DB.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, dbError(err, "job")
	}
	return &job, nil
}

func (s *JobService) UpdateJob(ctx context.Context, id uint, req *dtos.JobUpdateRequest) (*models.Job, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			updates[col] = strings.TrimSpace(*v)
		}
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, invalid("title cannot be empty")
	}
	set("title", req.Title)
	set("department", req.Department)
	set("location", req.Location)
	set("employment_type", req.EmploymentType)
	set("description", req.Description)
	set("requirements", req.Requirements)
	set("job_link", req.JobLink)
	if req.Currency != nil {
		updates["currency"] = strings.ToUpper(*req.Currency)
	}
	if req.RequiredSkills != nil {
		updates["required_skills"] = cleanSkills(*req.RequiredSkills)
	}
	minSalary, maxSalary := job.SalaryMin, job.SalaryMax
	if req.SalaryMin != nil {
		minSalary = *req.SalaryMin
		updates["salary_min"] = minSalary
	}
	if req.SalaryMax != nil {
		maxSalary = *req.SalaryMax
		updates["salary_max"] = maxSalary
	}
	if maxSalary > 0 && minSalary > maxSalary {
		return nil, invalid("salary_min is greater than salary_max")
	}
	if req.Status != nil {
		if !models.ValidJobStatus(*req.Status) {
			return nil, invalid("unknown job status %q", *req.Status)
		}
		updates["status"] = *req.Status
	}
	if len(updates) == 0 {
		return job, nil
	}

	if err := s.DB.WithContext(ctx).Model(job).Updates(updates).Error; err != nil {
		return nil, dbError(err, "job")
	}
	return s.GetJob(ctx, id)
}

// DeleteJob removes the job; applications and matches cascade.
func (s *JobService) DeleteJob(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Job{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dbError(gorm.ErrRecordNotFound, "job")
	}
	return nil
}

// ExtractJob asks the AI provider to read a raw posting. Nothing is stored.
func (s *JobService) ExtractJob(ctx context.Context, req *dtos.JobExtractionRequest) (*dtos.ExtractedJob, error) {
	raw := req.RawHTML
	if strings.TrimSpace(raw) != "" && req.URL != "" {
		raw = "Source URL: " + req.URL + "\n\n" + raw
	}
	return s.LLM.ExtractJobDetails(ctx, raw)
}
