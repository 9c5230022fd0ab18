package services

import (
	"context"

	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/justsurfingit/ats-backend/internal/queue"
	log "github.com/sirupsen/logrus"
)

// ParseWorker runs ResumeService.Process for every job on the queue.
type ParseWorker struct {
	Queue   queue.Queue
	Resumes *ResumeService
	Workers int
}

func NewParseWorker(q queue.Queue, resumes *ResumeService, workers int) *ParseWorker {
	if workers < 1 {
		workers = 1
	}
	return &ParseWorker{Queue: q, Resumes: resumes, Workers: workers}
}

// Start launches the workers. With requeue set, resumes left pending or
// processing by a previous run are queued again; use it only for queues that
// do not survive a restart.
func (w *ParseWorker) Start(ctx context.Context, requeue bool) error {
	if err := w.Queue.Start(ctx, w.Workers, w.Resumes.Process); err != nil {
		return err
	}
	if !requeue {
		return nil
	}

	var ids []uint
	err := w.Resumes.DB.WithContext(ctx).Model(&models.Resume{}).
		Where("parse_status IN ?", []string{models.ParseStatusPending, models.ParseStatusProcessing}).
		Order("id").Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	for _, id := range ids {
		r := &models.Resume{ID: id}
		w.Resumes.enqueue(ctx, r, false)
	}
	if len(ids) > 0 {
		log.WithField("resumes", len(ids)).Info("requeued unfinished resume parses")
	}
	return nil
}

// Stop closes the queue and waits for running parses until ctx is done.
func (w *ParseWorker) Stop(ctx context.Context) error {
	return w.Queue.Close(ctx)
}
