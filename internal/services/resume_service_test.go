package services

import (
	"context"
	"testing"
	"time"

	"github.com/justsurfingit/ats-backend/internal/database"
	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/justsurfingit/ats-backend/internal/queue"
	"github.com/justsurfingit/ats-backend/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type resumeFixture struct {
	db    *gorm.DB
	svc   *ResumeService
	queue *queue.MemoryQueue
	fake  *fakeModel
}

func newResumeFixture(t *testing.T, replies ...fakeReply) *resumeFixture {
	t.Helper()
	db := database.OpenTestDB(t)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	if len(replies) == 0 {
		replies = []fakeReply{{text: `{"full_name": "Jane Doe", "headline": "Backend Engineer", "skills": ["Go", "Docker"],
			"work_experience": [{"company": "Acme", "title": "Engineer", "start_date": "2019-04", "end_date": "Present"}]}`}}
	}
	fake := &fakeModel{replies: replies}
	llm, _ := newTestLLM(fake, 0)
	llm.DB = db

	q := queue.NewMemoryQueue(4)
	svc := NewResumeService(db, store, NewResumeParser(llm), q, 1<<20)
	svc.Matcher = NewMatcherService(db)
	svc.Settings = NewSettingsService(db, llm)
	return &resumeFixture{db: db, svc: svc, queue: q, fake: fake}
}

func TestResume_IngestSync(t *testing.T) {
	f := newResumeFixture(t)
	ctx := context.Background()

	res, err := f.svc.IngestSync(ctx, UploadInput{FileName: "jane.txt", Data: []byte(sampleResume)})
	require.NoError(t, err)
	assert.True(t, res.CandidateCreated)
	assert.Equal(t, "jane.doe@example.com", res.Candidate.Email)
	assert.Equal(t, "Jane Doe", res.Candidate.FullName)
	assert.Equal(t, models.SourceUpload, res.Candidate.Source)
	assert.Len(t, res.Candidate.Skills, 2)
	require.Len(t, res.Candidate.WorkExperiences, 1)
	assert.True(t, res.Candidate.WorkExperiences[0].IsCurrent)

	assert.Equal(t, 1, res.Resume.Version)
	assert.True(t, res.Resume.IsCurrent)
	assert.Equal(t, models.ParseStatusParsed, res.Resume.ParseStatus)
	assert.Equal(t, models.AnalysisCompleted, res.Analysis.Status)

	// same text again: same candidate, new version, cached analysis
	res2, err := f.svc.IngestSync(ctx, UploadInput{FileName: "jane-v2.txt", Data: []byte(sampleResume)})
	require.NoError(t, err)
	assert.False(t, res2.CandidateCreated)
	assert.Equal(t, res.Candidate.ID, res2.Candidate.ID)
	assert.Equal(t, 2, res2.Resume.Version)
	assert.Equal(t, 1, f.fake.Calls())

	var current int64
	require.NoError(t, f.db.Model(&models.Resume{}).Where("candidate_id = ? AND is_current", res.Candidate.ID).Count(&current).Error)
	assert.EqualValues(t, 1, current)
}

func TestResume_IngestSyncKeepsManualEdits(t *testing.T) {
	f := newResumeFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Create(&models.Candidate{Email: "jane.doe@example.com", Headline: "Staff Engineer", Status: models.CandidateStatusActive}).Error)

	res, err := f.svc.IngestSync(ctx, UploadInput{FileName: "jane.txt", Data: []byte(sampleResume)})
	require.NoError(t, err)
	assert.Equal(t, "Staff Engineer", res.Candidate.Headline)
	assert.Equal(t, "Jane Doe", res.Candidate.FullName)
}

func TestResume_IngestSyncFallsBackWithoutAI(t *testing.T) {
	f := newResumeFixture(t, fakeReply{text: "not json at all"})
	ctx := context.Background()

	res, err := f.svc.IngestSync(ctx, UploadInput{FileName: "jane.txt", Data: []byte(sampleResume)})
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisFallback, res.Analysis.Status)
	assert.NotEmpty(t, res.Analysis.Error)
	assert.Equal(t, models.ParseStatusParsed, res.Resume.ParseStatus)
	assert.Equal(t, "Jane Q Doe", res.Candidate.FullName)
}

func TestResume_IngestSyncWithoutEmail(t *testing.T) {
	f := newResumeFixture(t, fakeReply{text: `{"full_name": "No Contact"}`})

	res, err := f.svc.IngestSync(context.Background(), UploadInput{FileName: "anon.txt", Data: []byte("No Contact\nGo developer")})
	require.NoError(t, err)
	assert.Contains(t, res.Candidate.Email, placeholderDomain)
}

func TestResume_RejectsBadUploads(t *testing.T) {
	f := newResumeFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   UploadInput
	}{
		{"empty", UploadInput{FileName: "a.txt"}},
		{"no name", UploadInput{Data: []byte("hello")}},
		{"unsupported", UploadInput{FileName: "a.png", Data: []byte("\x89PNG")}},
		{"too large", UploadInput{FileName: "a.txt", Data: make([]byte, 2<<20)}},
		{"no text", UploadInput{FileName: "a.txt", Data: []byte("   \n  ")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.IngestSync(ctx, tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestResume_UploadAndProcess(t *testing.T) {
	f := newResumeFixture(t)
	ctx := context.Background()
	c := &models.Candidate{Email: "jane.doe@example.com", Status: models.CandidateStatusNew}
	require.NoError(t, f.db.Create(c).Error)

	r, err := f.svc.Upload(ctx, c.ID, UploadInput{FileName: "cv.txt", Data: []byte(sampleResume)})
	require.NoError(t, err)
	assert.Equal(t, models.ParseStatusPending, r.ParseStatus)
	assert.Equal(t, 1, f.queue.Len())

	require.NoError(t, f.queue.Start(ctx, 1, f.svc.Process))
	require.NoError(t, f.queue.Close(ctx))

	got, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParseStatusParsed, got.ParseStatus)

	a, err := f.svc.LatestAnalysis(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisCompleted, a.Status)

	var cand models.Candidate
	require.NoError(t, f.db.Preload("Skills").First(&cand, c.ID).Error)
	assert.Equal(t, "Backend Engineer", cand.Headline)
	assert.Len(t, cand.Skills, 2)

	_, data, err := f.svc.Download(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleResume, string(data))
}

func TestResume_UploadQueueFull(t *testing.T) {
	f := newResumeFixture(t)
	ctx := context.Background()
	c := &models.Candidate{Email: "x@example.com"}
	require.NoError(t, f.db.Create(c).Error)

	var last *models.Resume
	for i := 0; i < 5; i++ {
		r, err := f.svc.Upload(ctx, c.ID, UploadInput{FileName: "cv.txt", Data: []byte(sampleResume)})
		require.NoError(t, err)
		last = r
	}
	assert.Equal(t, 5, last.Version)
	assert.Equal(t, models.ParseStatusFailed, last.ParseStatus)
	assert.Equal(t, "queue full", last.ParseError)

	list, err := f.svc.ListForCandidate(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.True(t, list[0].IsCurrent)
	assert.False(t, list[1].IsCurrent)
}

func TestResume_ProcessMissingResume(t *testing.T) {
	f := newResumeFixture(t)
	assert.NoError(t, f.svc.Process(context.Background(), queue.ParseJob{ResumeID: 424242, QueuedAt: time.Now()}))
}

func TestResume_UploadUnknownCandidate(t *testing.T) {
	f := newResumeFixture(t)
	_, err := f.svc.Upload(context.Background(), 9999, UploadInput{FileName: "cv.txt", Data: []byte(sampleResume)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResume_ProcessInterruptedStaysPending(t *testing.T) {
	f := newResumeFixture(t)
	c := &models.Candidate{Email: "jane.doe@example.com"}
	require.NoError(t, f.db.Create(c).Error)
	r, err := f.svc.Upload(context.Background(), c.ID, UploadInput{FileName: "cv.txt", Data: []byte(sampleResume)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.fake.hook = cancel

	err = f.svc.Process(ctx, queue.ParseJob{ResumeID: r.ID})
	assert.ErrorIs(t, err, context.Canceled)

	got, err := f.svc.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParseStatusPending, got.ParseStatus)
	assert.Empty(t, got.ParseError)

	var analyses int64
	require.NoError(t, f.db.Model(&models.AIAnalysis{}).Where("resume_id = ?", r.ID).Count(&analyses).Error)
	assert.Zero(t, analyses)
}

// recordingQueue keeps published jobs so a test can run them by hand.
type recordingQueue struct {
	jobs []queue.ParseJob
}

func (q *recordingQueue) Publish(_ context.Context, job queue.ParseJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}
func (q *recordingQueue) Start(context.Context, int, queue.Handler) error { return nil }
func (q *recordingQueue) Close(context.Context) error { return nil }

func TestResume_ReparseForceBypassesCache(t *testing.T) {
	f := newResumeFixture(t)
	ctx := context.Background()
	rq := &recordingQueue{}
	f.svc.Queue = rq

	res, err := f.svc.IngestSync(ctx, UploadInput{FileName: "jane.txt", Data: []byte(sampleResume)})
	require.NoError(t, err)
	require.Equal(t, 1, f.fake.Calls())

	tests := []struct {
		force     bool
		wantCalls int
	}{
		{force: false, wantCalls: 1},
		{force: true, wantCalls: 2},
	}
	for _, tt := range tests {
		r, err := f.svc.Reparse(ctx, res.Resume.ID, tt.force)
		require.NoError(t, err)
		assert.Equal(t, models.ParseStatusPending, r.ParseStatus)

		job := rq.jobs[len(rq.jobs)-1]
		assert.Equal(t, tt.force, job.Force)
		require.NoError(t, f.svc.Process(ctx, job))
		assert.Equal(t, tt.wantCalls, f.fake.Calls(), "force=%v", tt.force)

		a, err := f.svc.LatestAnalysis(ctx, res.Resume.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AnalysisCompleted, a.Status)
	}
}
