package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/justsurfingit/ats-backend/internal/extract"
	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/justsurfingit/ats-backend/internal/queue"
	"github.com/justsurfingit/ats-backend/internal/storage"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// placeholderDomain marks candidates created from a resume with no email in it.
const placeholderDomain = "@resume.invalid"

type UploadInput struct {
	FileName string
	Data     []byte
}

type IngestResult struct {
	Candidate        *models.Candidate  `json:"candidate"`
	Resume           *models.Resume     `json:"resume"`
	Analysis         *models.AIAnalysis `json:"analysis"`
	CandidateCreated bool               `json:"candidate_created"`
}

type ResumeService struct {
	DB       *gorm.DB
	Store    storage.Store
	Parser   *ResumeParser
	Queue    queue.Queue
	Matcher  *MatcherService
	Settings *SettingsService
	MaxBytes int64
}

func NewResumeService(db *gorm.DB, store storage.Store, parser *ResumeParser, q queue.Queue, maxBytes int64) *ResumeService {
	return &ResumeService{DB: db, Store: store, Parser: parser, Queue: q, MaxBytes: maxBytes}
}

func hashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type preparedFile struct {
	name string
	ext  string
	mime string
	text string
	hash string
	data []byte
}

// prepare validates the upload and extracts its text before anything is stored.
func (s *ResumeService) prepare(in UploadInput) (*preparedFile, error) {
	name := filepath.Base(strings.TrimSpace(in.FileName))
	if name == "" || name == "." || name == "/" {
		return nil, invalid("file name is required")
	}
	if len(in.Data) == 0 {
		return nil, invalid("file is empty")
	}
	if s.MaxBytes > 0 && int64(len(in.Data)) > s.MaxBytes {
		return nil, invalid("file exceeds the %d MB upload limit", s.MaxBytes>>20)
	}
	mime, err := extract.DetectMime(name, in.Data)
	if err != nil {
		return nil, invalid("%v", err)
	}
	text, err := extract.TextByMime(mime, in.Data)
	if err != nil {
		return nil, invalid("%v", err)
	}
	return &preparedFile{
		name: name,
		ext:  strings.ToLower(filepath.Ext(name)),
		mime: mime,
		text: text,
		hash: hashHex(in.Data),
		data: in.Data,
	}, nil
}

func (s *ResumeService) store(ctx context.Context, owner string, f *preparedFile) (string, error) {
	key := storage.ResumeKey(owner, f.ext)
	if err := s.Store.Put(ctx, key, f.data, f.mime); err != nil {
		return "", fmt.Errorf("store resume: %w", err)
	}
	return key, nil
}

func (s *ResumeService) discard(ctx context.Context, key string) {
	if err := s.Store.Delete(context.WithoutCancel(ctx), key); err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to remove orphaned resume file")
	}
}

// createVersion makes r the newest, current resume of its candidate.
func createVersion(tx *gorm.DB, r *models.Resume) error {
	var c models.Candidate
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&c, r.CandidateID).Error; err != nil {
		return dbError(err, "candidate")
	}
	var maxVersion int
	if err := tx.Model(&models.Resume{}).Where("candidate_id = ?", r.CandidateID).
		Select("COALESCE(MAX(version), 0)").Scan(&maxVersion).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.Resume{}).Where("candidate_id = ? AND is_current", r.CandidateID).
		Update("is_current", false).Error; err != nil {
		return err
	}
	r.Version = maxVersion + 1
	r.IsCurrent = true
	return tx.Create(r).Error
}

// IngestSync stores, parses and files a resume in one request. The candidate is
// matched by the email found in the resume, or created.
func (s *ResumeService) IngestSync(ctx context.Context, in UploadInput) (*IngestResult, error) {
	f, err := s.prepare(in)
	if err != nil {
		return nil, err
	}
	analysis, parsed, err := s.analyze(ctx, f.text, false)
	if err != nil {
		return nil, err
	}
	key, err := s.store(ctx, "inbox", f)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(parsed.Email)
	if email == "" {
		email = "unknown-" + f.hash[:12] + placeholderDomain
	}

	res := &IngestResult{Analysis: analysis}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cand, created, err := findOrCreateByEmail(tx, &models.Candidate{
			Email:  email,
			Source: models.SourceUpload,
			Status: models.CandidateStatusNew,
		})
		if err != nil {
			return err
		}
		res.CandidateCreated = created

		r := &models.Resume{
			CandidateID:    cand.ID,
			FileName:       f.name,
			MimeType:       f.mime,
			SizeBytes:      int64(len(f.data)),
			StorageBackend: s.Store.Backend(),
			StorageKey:     key,
			ContentHash:    f.hash,
			ExtractedText:  f.text,
			ParseStatus:    models.ParseStatusParsed,
		}
		if err := createVersion(tx, r); err != nil {
			return err
		}
		analysis.ResumeID = r.ID
		if err := tx.Create(analysis).Error; err != nil {
			return err
		}
		if err := applyParsed(tx, cand.ID, parsed); err != nil {
			return err
		}
		res.Resume = r
		return nil
	})
	if err != nil {
		s.discard(ctx, key)
		return nil, err
	}

	s.afterParse(ctx, res.Resume.CandidateID)
	cand, err := s.candidate(ctx, res.Resume.CandidateID)
	if err != nil {
		return nil, err
	}
	res.Candidate = cand
	return res, nil
}

func (s *ResumeService) candidate(ctx context.Context, id uint) (*models.Candidate, error) {
	var c models.Candidate
	err := s.DB.WithContext(ctx).Preload("Skills").Preload("WorkExperiences").Preload("Educations").
		First(&c, id).Error
	return &c, dbError(err, "candidate")
}

// Upload adds a new resume version for an existing candidate and queues parsing.
func (s *ResumeService) Upload(ctx context.Context, candidateID uint, in UploadInput) (*models.Resume, error) {
	var c models.Candidate
	if err := s.DB.WithContext(ctx).Select("id").First(&c, candidateID).Error; err != nil {
		return nil, dbError(err, "candidate")
	}
	f, err := s.prepare(in)
	if err != nil {
		return nil, err
	}
	key, err := s.store(ctx, strconv.FormatUint(uint64(candidateID), 10), f)
	if err != nil {
		return nil, err
	}

	r := &models.Resume{
		CandidateID:    candidateID,
		FileName:       f.name,
		MimeType:       f.mime,
		SizeBytes:      int64(len(f.data)),
		StorageBackend: s.Store.Backend(),
		StorageKey:     key,
		ContentHash:    f.hash,
		ExtractedText:  f.text,
		ParseStatus:    models.ParseStatusPending,
	}
	if err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createVersion(tx, r)
	}); err != nil {
		s.discard(ctx, key)
		return nil, err
	}

	s.enqueue(ctx, r, false)
	return r, nil
}

// Reparse queues another parse of a stored resume. Without force a cached
// analysis of the same text is reused.
func (s *ResumeService) Reparse(ctx context.Context, id uint, force bool) (*models.Resume, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.ParseStatus == models.ParseStatusProcessing {
		return nil, fmt.Errorf("resume is already being parsed: %w", ErrConflict)
	}
	if err := s.setStatus(ctx, r, models.ParseStatusPending, ""); err != nil {
		return nil, err
	}
	s.enqueue(ctx, r, force)
	return r, nil
}

func (s *ResumeService) enqueue(ctx context.Context, r *models.Resume, force bool) {
	err := s.Queue.Publish(ctx, queue.ParseJob{ResumeID: r.ID, Force: force})
	if err == nil {
		return
	}
	msg := err.Error()
	if errors.Is(err, queue.ErrQueueFull) {
		msg = "queue full"
	}
	log.WithError(err).WithField("resume_id", r.ID).Warn("could not queue resume for parsing")
	if serr := s.setStatus(context.WithoutCancel(ctx), r, models.ParseStatusFailed, msg); serr != nil {
		log.WithError(serr).WithField("resume_id", r.ID).Error("failed to mark resume as failed")
	}
}

func (s *ResumeService) setStatus(ctx context.Context, r *models.Resume, status, parseErr string) error {
	err := s.DB.WithContext(ctx).Model(r).Updates(map[string]any{
		"parse_status": status,
		"parse_error":  parseErr,
	}).Error
	if err != nil {
		return err
	}
	r.ParseStatus, r.ParseError = status, parseErr
	return nil
}

// Process is the queue handler: parse one resume and apply the result.
func (s *ResumeService) Process(ctx context.Context, job queue.ParseJob) error {
	logger := log.WithFields(log.Fields{"component": "parse-worker", "resume_id": job.ResumeID})

	var r models.Resume
	if err := s.DB.WithContext(ctx).First(&r, job.ResumeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("resume no longer exists, skipping")
			return nil
		}
		return err
	}
	if err := s.setStatus(ctx, &r, models.ParseStatusProcessing, ""); err != nil {
		return err
	}

	fail := func(err error) error {
		status, msg := models.ParseStatusFailed, err.Error()
		// shutdown, not a bad resume: leave it for the next run
		if ctx.Err() != nil {
			status, msg = models.ParseStatusPending, ""
		}
		if serr := s.setStatus(context.WithoutCancel(ctx), &r, status, msg); serr != nil {
			logger.WithError(serr).Error("failed to record parse outcome")
		}
		return err
	}

	text := r.ExtractedText
	if text == "" {
		data, err := s.Store.Get(ctx, r.StorageKey)
		if err != nil {
			return fail(fmt.Errorf("load stored file: %w", err))
		}
		if text, err = extract.TextByMime(r.MimeType, data); err != nil {
			return fail(fmt.Errorf("extract text: %w", err))
		}
	}

	start := time.Now()
	analysis, parsed, err := s.analyze(ctx, text, job.Force)
	if err != nil {
		return fail(err)
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		analysis.ResumeID = r.ID
		if err := tx.Create(analysis).Error; err != nil {
			return err
		}
		// only the current version feeds the candidate profile
		var current bool
		if err := tx.Model(&models.Resume{}).Where("id = ?", r.ID).Select("is_current").Scan(&current).Error; err != nil {
			return err
		}
		if current {
			if err := applyParsed(tx, r.CandidateID, parsed); err != nil {
				return err
			}
		}
		return tx.Model(&r).Updates(map[string]any{
			"parse_status":   models.ParseStatusParsed,
			"parse_error":    "",
			"extracted_text": text,
		}).Error
	})
	if err != nil {
		return fail(err)
	}

	logger.WithFields(log.Fields{
		"status":   analysis.Status,
		"attempts": analysis.Attempts,
		"took_ms":  time.Since(start).Milliseconds(),
	}).Info("resume parsed")
	s.afterParse(ctx, r.CandidateID)
	return nil
}

// analyze returns an unsaved AIAnalysis and the parsed resume. A completed
// analysis of identical text with the active model is reused unless forced.
func (s *ResumeService) analyze(ctx context.Context, text string, force bool) (*models.AIAnalysis, *ParsedResume, error) {
	textHash := hashHex([]byte(text))

	if !force && s.Parser != nil && s.Parser.LLM != nil {
		if p, err := s.Parser.LLM.ActiveSettings(ctx); err == nil && p.Provider != models.ProviderNone {
			var cached models.AIAnalysis
			err := s.DB.WithContext(ctx).
				Where("text_hash = ? AND model = ? AND prompt_version = ? AND status = ?",
					textHash, p.Model, PromptVersion, models.AnalysisCompleted).
				Order("id DESC").First(&cached).Error
			if err == nil {
				var parsed ParsedResume
				if jerr := json.Unmarshal(cached.Result, &parsed); jerr == nil {
					return &models.AIAnalysis{
						Provider:      cached.Provider,
						Model:         cached.Model,
						PromptVersion: cached.PromptVersion,
						TextHash:      textHash,
						Status:        models.AnalysisCompleted,
						Result:        cached.Result,
						RawResponse:   cached.RawResponse,
					}, &parsed, nil
				}
			}
		}
	}

	out, err := s.Parser.Parse(ctx, text)
	if err != nil {
		return nil, nil, err
	}
	result, err := json.Marshal(out.Parsed)
	if err != nil {
		return nil, nil, err
	}
	return &models.AIAnalysis{
		Provider:      out.Provider,
		Model:         out.Model,
		PromptVersion: PromptVersion,
		TextHash:      textHash,
		Status:        out.Status,
		Result:        datatypes.JSON(result),
		RawResponse:   out.Raw,
		Error:         out.Error,
		Attempts:      out.Attempts,
		LatencyMS:     out.Latency.Milliseconds(),
	}, out.Parsed, nil
}

// applyParsed fills empty candidate fields and replaces the child records the
// parse produced. Values typed in by recruiters are kept.
func applyParsed(tx *gorm.DB, candidateID uint, p *ParsedResume) error {
	var c models.Candidate
	if err := tx.First(&c, candidateID).Error; err != nil {
		return dbError(err, "candidate")
	}

	updates := map[string]any{}
	fill := func(col, current, parsed string) {
		parsed = strings.TrimSpace(parsed)
		if strings.TrimSpace(current) == "" && parsed != "" {
			updates[col] = parsed
		}
	}
	fill("first_name", c.FirstName, p.FirstName)
	fill("last_name", c.LastName, p.LastName)
	fill("full_name", c.FullName, p.FullName)
	fill("phone", c.Phone, p.Phone)
	fill("location", c.Location, p.Location)
	fill("headline", c.Headline, p.Headline)
	fill("summary", c.Summary, p.Summary)
	fill("linkedin_url", c.LinkedInURL, p.LinkedInURL)
	fill("portfolio_url", c.PortfolioURL, p.PortfolioURL)
	if c.YearsExperience == 0 && p.YearsExperience > 0 {
		updates["years_experience"] = float64(p.YearsExperience)
	}
	if email := normalizeEmail(p.Email); email != "" && strings.HasSuffix(c.Email, placeholderDomain) {
		var taken int64
		if err := tx.Model(&models.Candidate{}).Where("lower(email) = ?", email).Count(&taken).Error; err != nil {
			return err
		}
		if taken == 0 {
			updates["email"] = email
		}
	}
	if len(updates) > 0 {
		if err := tx.Model(&c).Updates(updates).Error; err != nil {
			return dbError(err, "candidate")
		}
	}

	prof := p.Profile()
	return replaceChildren(tx, candidateID, &prof, true)
}

func (s *ResumeService) afterParse(ctx context.Context, candidateID uint) {
	if s.Matcher == nil {
		return
	}
	if s.Settings != nil && !s.Settings.Bool(ctx, SettingAutoMatch, true) {
		return
	}
	if _, err := s.Matcher.RecomputeForCandidate(ctx, candidateID); err != nil {
		log.WithError(err).WithField("candidate_id", candidateID).Warn("auto-match after parse failed")
	}
}

// IngestFromInbox files an emailed resume under the sender's candidate and
// queues it for parsing.
func (s *ResumeService) IngestFromInbox(ctx context.Context, seed *models.Candidate, in UploadInput) (*models.Resume, error) {
	var cand *models.Candidate
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		cand, _, err = findOrCreateByEmail(tx, seed)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Upload(ctx, cand.ID, in)
}

func (s *ResumeService) ListForCandidate(ctx context.Context, candidateID uint) ([]models.Resume, error) {
	var c models.Candidate
	if err := s.DB.WithContext(ctx).Select("id").First(&c, candidateID).Error; err != nil {
		return nil, dbError(err, "candidate")
	}
	out := []models.Resume{}
	err := s.DB.WithContext(ctx).Where("candidate_id = ?", candidateID).Order("version DESC").Find(&out).Error
	return out, err
}

func (s *ResumeService) Get(ctx context.Context, id uint) (*models.Resume, error) {
	var r models.Resume
	if err := s.DB.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, dbError(err, "resume")
	}
	return &r, nil
}

// Download returns the resume row and the original file bytes.
func (s *ResumeService) Download(ctx context.Context, id uint) (*models.Resume, []byte, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.Store.Get(ctx, r.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("resume file %w", ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	return r, data, nil
}

// LatestAnalysis returns the newest AI analysis of a resume.
func (s *ResumeService) LatestAnalysis(ctx context.Context, resumeID uint) (*models.AIAnalysis, error) {
	if _, err := s.Get(ctx, resumeID); err != nil {
		return nil, err
	}
	var a models.AIAnalysis
	err := s.DB.WithContext(ctx).Where("resume_id = ?", resumeID).Order("id DESC").First(&a).Error
	if err != nil {
		return nil, dbError(err, "analysis")
	}
	return &a, nil
}
