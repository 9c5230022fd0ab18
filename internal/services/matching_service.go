package services

import (
	"context"
	"math"
	"sort"

	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const MatchMethodSkills = "skills"

type MatcherService struct {
	DB *gorm.DB
}

func NewMatcherService(db *gorm.DB) *MatcherService {
	return &MatcherService{DB: db}
}

// ScoreSkills compares candidate skills with a job's required skills after
// normalisation. Score is 100 * matched / required, rounded to one decimal.
// A job with no required skills scores 0.
func ScoreSkills(have, required []string) (score float64, matched, missing []string) {
	own := make(map[string]bool, len(have))
	for _, s := range have {
		if k := NormalizeSkill(s); k != "" {
			own[k] = true
		}
	}

	seen := map[string]bool{}
	total := 0
	for _, r := range required {
		k := NormalizeSkill(r)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		total++
		if own[k] {
			matched = append(matched, r)
		} else {
			missing = append(missing, r)
		}
	}
	if total == 0 {
		return 0, matched, missing
	}
	score = math.Round(1000*float64(len(matched))/float64(total)) / 10
	return score, matched, missing
}

func buildMatch(c *models.Candidate, job *models.Job) models.CandidateJobMatch {
	names := make([]string, 0, len(c.Skills))
	for _, s := range c.Skills {
		names = append(names, s.Name)
	}
	score, matched, missing := ScoreSkills(names, job.RequiredSkills)
	if matched == nil {
		matched = []string{}
	}
	if missing == nil {
		missing = []string{}
	}
	return models.CandidateJobMatch{
		CandidateID:   c.ID,
		JobID:         job.ID,
		Score:         score,
		MatchedSkills: pq.StringArray(matched),
		MissingSkills: pq.StringArray(missing),
		Method:        MatchMethodSkills,
	}
}

func upsertMatches(tx *gorm.DB, rows []models.CandidateJobMatch) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "candidate_id"}, {Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "matched_skills", "missing_skills", "method", "rationale", "updated_at"}),
	}).CreateInBatches(rows, 200).Error
}

// replaceMatches upserts rows and drops the rows for the same job (or
// candidate) that the recompute no longer covers.
func replaceMatches(db *gorm.DB, rows []models.CandidateJobMatch, scope string, scopeID uint, keepCol string) error {
	keep := make([]uint, 0, len(rows))
	for _, r := range rows {
		if keepCol == "candidate_id" {
			keep = append(keep, r.CandidateID)
		} else {
			keep = append(keep, r.JobID)
		}
	}
	return db.Transaction(func(tx *gorm.DB) error {
		stale := tx.Where(scope+" = ?", scopeID)
		if len(keep) > 0 {
			stale = stale.Where(keepCol+" NOT IN ?", keep)
		}
		if err := stale.Delete(&models.CandidateJobMatch{}).Error; err != nil {
			return err
		}
		return upsertMatches(tx, rows)
	})
}

// RecomputeForJob scores every non-archived candidate against the job and
// returns the matches best first. Rows for candidates archived since the last
// run are removed.
func (s *MatcherService) RecomputeForJob(ctx context.Context, jobID uint) ([]models.CandidateJobMatch, error) {
	var job models.Job
	if err := s.DB.WithContext(ctx).First(&job, jobID).Error; err != nil {
		return nil, dbError(err, "job")
	}

	var candidates []models.Candidate
	err := s.DB.WithContext(ctx).Preload("Skills").
		Where("status <> ?", models.CandidateStatusArchived).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	rows := make([]models.CandidateJobMatch, 0, len(candidates))
	for i := range candidates {
		rows = append(rows, buildMatch(&candidates[i], &job))
	}
	if err := replaceMatches(s.DB.WithContext(ctx), rows, "job_id", jobID, "candidate_id"); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"job_id": jobID, "candidates": len(rows)}).Info("matches recomputed")

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	return rows, nil
}

// RecomputeForCandidate scores the candidate against every open job. Rows for
// jobs that are no longer open are removed; an archived candidate keeps none.
func (s *MatcherService) RecomputeForCandidate(ctx context.Context, candidateID uint) ([]models.CandidateJobMatch, error) {
	var c models.Candidate
	if err := s.DB.WithContext(ctx).Preload("Skills").First(&c, candidateID).Error; err != nil {
		return nil, dbError(err, "candidate")
	}
	if c.Status == models.CandidateStatusArchived {
		if err := replaceMatches(s.DB.WithContext(ctx), nil, "candidate_id", c.ID, "job_id"); err != nil {
			return nil, err
		}
		return []models.CandidateJobMatch{}, nil
	}

	var jobs []models.Job
	if err := s.DB.WithContext(ctx).Where("status = ?", models.JobStatusOpen).Find(&jobs).Error; err != nil {
		return nil, err
	}
	rows := make([]models.CandidateJobMatch, 0, len(jobs))
	for i := range jobs {
		rows = append(rows, buildMatch(&c, &jobs[i]))
	}
	if err := replaceMatches(s.DB.WithContext(ctx), rows, "candidate_id", c.ID, "job_id"); err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	return rows, nil
}

func (s *MatcherService) ListForJob(ctx context.Context, jobID uint, minScore float64) ([]models.CandidateJobMatch, error) {
	var job models.Job
	if err := s.DB.WithContext(ctx).Select("id").First(&job, jobID).Error; err != nil {
		return nil, dbError(err, "job")
	}
	out := []models.CandidateJobMatch{}
	err := s.DB.WithContext(ctx).Where("job_id = ? AND score >= ?", jobID, minScore).
		Order("score DESC, candidate_id").Find(&out).Error
	return out, err
}

func (s *MatcherService) ListForCandidate(ctx context.Context, candidateID uint) ([]models.CandidateJobMatch, error) {
	var c models.Candidate
	if err := s.DB.WithContext(ctx).Select("id").First(&c, candidateID).Error; err != nil {
		return nil, dbError(err, "candidate")
	}
	out := []models.CandidateJobMatch{}
	err := s.DB.WithContext(ctx).Where("candidate_id = ?", candidateID).
		Order("score DESC, job_id").Find(&out).Error
	return out, err
}
