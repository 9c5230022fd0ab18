package services

import (
	"context"
	"errors"
	"strings"

	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/justsurfingit/ats-backend/internal/storage"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

type CandidateService struct {
	DB    *gorm.DB
	Store storage.Store
}

func NewCandidateService(db *gorm.DB, store storage.Store) *CandidateService {
	return &CandidateService{DB: db, Store: store}
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

func pageBounds(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

type CandidatePage struct {
	Items    []models.Candidate `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// List searches candidates by free text, status and skill.
func (s *CandidateService) List(ctx context.Context, f dtos.CandidateFilter) (*CandidatePage, error) {
	page, size := pageBounds(f.Page, f.PageSize)
	out := &CandidatePage{Items: []models.Candidate{}, Page: page, PageSize: size}

	q := s.DB.WithContext(ctx).Model(&models.Candidate{})
	if term := strings.TrimSpace(f.Q); term != "" {
		like := "%" + escapeLike(term) + "%"
		q = q.Where(`candidates.full_name ILIKE ? OR candidates.email ILIKE ? OR candidates.headline ILIKE ?
			OR candidates.summary ILIKE ? OR candidates.location ILIKE ?`, like, like, like, like, like)
	}
	if f.Status != "" {
		q = q.Where("candidates.status = ?", f.Status)
	}
	if skill := strings.TrimSpace(f.Skill); skill != "" {
		byKey, err := skillNamesByKey(s.DB.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		names := byKey[NormalizeSkill(skill)]
		if len(names) == 0 {
			return out, nil
		}
		q = q.Where(`EXISTS (SELECT 1 FROM skills WHERE skills.candidate_id = candidates.id AND skills.name IN ?)`, names)
	}

	if err := q.Count(&out.Total).Error; err != nil {
		return nil, err
	}
	err := q.Preload("Skills").
		Order("candidates.updated_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&out.Items).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// skillNamesByKey groups every stored skill spelling under its NormalizeSkill
// key, so a filter for "golang" finds candidates whose skill reads "Go".
func skillNamesByKey(db *gorm.DB) (map[string][]string, error) {
	var names []string
	if err := db.Model(&models.Skill{}).Distinct().Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	byKey := make(map[string][]string, len(names))
	for _, n := range names {
		if key := NormalizeSkill(n); key != "" {
			byKey[key] = append(byKey[key], n)
		}
	}
	return byKey, nil
}

// escapeLike stops user input from acting as LIKE wildcards.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *CandidateService) Get(ctx context.Context, id uint) (*models.Candidate, error) {
	var c models.Candidate
	err := s.DB.WithContext(ctx).
		Preload("Resumes", func(db *gorm.DB) *gorm.DB { return db.Order("version DESC") }).
		Preload("Skills").
		Preload("WorkExperiences", func(db *gorm.DB) *gorm.DB { return db.Order("start_date DESC NULLS LAST") }).
		Preload("Educations").
		Preload("Projects").
		Preload("Certifications").
		Preload("Languages").
		Preload("Applications").
		Preload("Matches", func(db *gorm.DB) *gorm.DB { return db.Order("score DESC") }).
		First(&c, id).Error
	if err != nil {
		return nil, dbError(err, "candidate")
	}
	return &c, nil
}

func (s *CandidateService) Create(ctx context.Context, req *dtos.CandidateCreateRequest) (*models.Candidate, error) {
	c := &models.Candidate{
		Email:           normalizeEmail(req.Email),
		FirstName:       strings.TrimSpace(req.FirstName),
		LastName:        strings.TrimSpace(req.LastName),
		FullName:        strings.TrimSpace(req.FullName),
		Phone:           req.Phone,
		Location:        req.Location,
		Headline:        req.Headline,
		Summary:         req.Summary,
		YearsExperience: req.YearsExperience,
		LinkedInURL:     req.LinkedInURL,
		PortfolioURL:    req.PortfolioURL,
		Status:          req.Status,
		Source:          req.Source,
	}
	if c.Email == "" {
		return nil, invalid("email is required")
	}
	if c.Status == "" {
		c.Status = models.CandidateStatusNew
	}
	if !models.ValidCandidateStatus(c.Status) {
		return nil, invalid("unknown candidate status %q", c.Status)
	}
	if c.Source == "" {
		c.Source = models.SourceManual
	}
	if c.FullName == "" {
		c.FullName = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	if err := s.DB.WithContext(ctx).Create(c).Error; err != nil {
		return nil, dbError(err, "candidate with this email")
	}
	return c, nil
}

func (s *CandidateService) Update(ctx context.Context, id uint, req *dtos.CandidateUpdateRequest) (*models.Candidate, error) {
	var c models.Candidate
	if err := s.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, dbError(err, "candidate")
	}

	updates := map[string]any{}
	setStr := func(col string, v *string) {
		if v != nil {
			updates[col] = strings.TrimSpace(*v)
		}
	}
	if req.Email != nil {
		e := normalizeEmail(*req.Email)
		if e == "" {
			return nil, invalid("email cannot be empty")
		}
		updates["email"] = e
	}
	setStr("first_name", req.FirstName)
	setStr("last_name", req.LastName)
	setStr("full_name", req.FullName)
	setStr("phone", req.Phone)
	setStr("location", req.Location)
	setStr("headline", req.Headline)
	setStr("summary", req.Summary)
	setStr("linkedin_url", req.LinkedInURL)
	setStr("portfolio_url", req.PortfolioURL)
	if req.YearsExperience != nil {
		updates["years_experience"] = *req.YearsExperience
	}
	if req.Status != nil {
		if !models.ValidCandidateStatus(*req.Status) {
			return nil, invalid("unknown candidate status %q", *req.Status)
		}
		updates["status"] = *req.Status
	}
	if len(updates) == 0 {
		return &c, nil
	}

	if err := s.DB.WithContext(ctx).Model(&c).Updates(updates).Error; err != nil {
		return nil, dbError(err, "candidate with this email")
	}
	if err := s.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, dbError(err, "candidate")
	}
	return &c, nil
}

// Delete removes the candidate (children cascade in the database) and then
// the stored resume files.
func (s *CandidateService) Delete(ctx context.Context, id uint) error {
	var keys []string
	if err := s.DB.WithContext(ctx).Model(&models.Resume{}).
		Where("candidate_id = ?", id).Pluck("storage_key", &keys).Error; err != nil {
		return err
	}

	res := s.DB.WithContext(ctx).Delete(&models.Candidate{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dbError(gorm.ErrRecordNotFound, "candidate")
	}

	if s.Store != nil {
		for _, k := range keys {
			if err := s.Store.Delete(ctx, k); err != nil {
				log.WithError(err).WithField("key", k).Warn("failed to delete stored resume")
			}
		}
	}
	return nil
}

// ReplaceProfile swaps every child record of the candidate for the given ones.
func (s *CandidateService) ReplaceProfile(ctx context.Context, id uint, prof *dtos.CandidateProfile) (*models.Candidate, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Candidate
		if err := tx.Select("id").First(&c, id).Error; err != nil {
			return dbError(err, "candidate")
		}
		return replaceChildren(tx, id, prof, false)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// replaceChildren rewrites the candidate's child tables. With onlyProvided set,
// kinds with no entries in prof are left alone.
func replaceChildren(tx *gorm.DB, candidateID uint, prof *dtos.CandidateProfile, onlyProvided bool) error {
	skills := make([]models.Skill, 0, len(prof.Skills))
	for _, v := range prof.Skills {
		skills = append(skills, models.Skill{CandidateID: candidateID, Name: strings.TrimSpace(v.Name), Level: v.Level, Years: v.Years})
	}
	exps := make([]models.WorkExperience, 0, len(prof.WorkExperiences))
	for _, v := range prof.WorkExperiences {
		isCurrent := v.IsCurrent || strings.EqualFold(strings.TrimSpace(v.EndDate), "present")
		exps = append(exps, models.WorkExperience{
			CandidateID: candidateID, Company: v.Company, Title: v.Title, Location: v.Location,
			StartDate: parseLooseDate(v.StartDate), EndDate: parseLooseDate(v.EndDate),
			IsCurrent: isCurrent, Description: v.Description,
		})
	}
	edus := make([]models.Education, 0, len(prof.Educations))
	for _, v := range prof.Educations {
		edus = append(edus, models.Education{
			CandidateID: candidateID, Institution: v.Institution, Degree: v.Degree, Field: v.Field,
			StartYear: v.StartYear, EndYear: v.EndYear, Grade: v.Grade,
		})
	}
	projects := make([]models.Project, 0, len(prof.Projects))
	for _, v := range prof.Projects {
		projects = append(projects, models.Project{
			CandidateID: candidateID, Name: v.Name, Role: v.Role, Description: v.Description,
			URL: v.URL, Technologies: strings.Join(v.Technologies, ", "),
		})
	}
	certs := make([]models.Certification, 0, len(prof.Certifications))
	for _, v := range prof.Certifications {
		certs = append(certs, models.Certification{
			CandidateID: candidateID, Name: v.Name, Issuer: v.Issuer,
			IssuedAt: parseLooseDate(v.IssuedAt), ExpiresAt: parseLooseDate(v.ExpiresAt), CredentialID: v.CredentialID,
		})
	}
	langs := make([]models.Language, 0, len(prof.Languages))
	for _, v := range prof.Languages {
		langs = append(langs, models.Language{CandidateID: candidateID, Name: v.Name, Proficiency: v.Proficiency})
	}

	kinds := []struct {
		present bool
		model   any
		rows    any
	}{
		{len(skills) > 0, &models.Skill{}, &skills},
		{len(exps) > 0, &models.WorkExperience{}, &exps},
		{len(edus) > 0, &models.Education{}, &edus},
		{len(projects) > 0, &models.Project{}, &projects},
		{len(certs) > 0, &models.Certification{}, &certs},
		{len(langs) > 0, &models.Language{}, &langs},
	}
	for _, k := range kinds {
		if onlyProvided && !k.present {
			continue
		}
		if err := tx.Where("candidate_id = ?", candidateID).Delete(k.model).Error; err != nil {
			return err
		}
		if !k.present {
			continue
		}
		if err := tx.Create(k.rows).Error; err != nil {
			return err
		}
	}
	return nil
}

// findOrCreateByEmail returns the candidate with this email, creating it from
// seed when missing. The bool reports whether a row was created.
func findOrCreateByEmail(tx *gorm.DB, seed *models.Candidate) (*models.Candidate, bool, error) {
	seed.Email = normalizeEmail(seed.Email)
	if seed.Email == "" {
		return nil, false, invalid("candidate email is required")
	}
	var c models.Candidate
	err := tx.Where("lower(email) = ?", seed.Email).First(&c).Error
	if err == nil {
		return &c, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	if seed.Status == "" {
		seed.Status = models.CandidateStatusNew
	}
	if err := tx.Create(seed).Error; err != nil {
		return nil, false, dbError(err, "candidate with this email")
	}
	return seed, true, nil
}
