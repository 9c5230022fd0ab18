package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/justsurfingit/ats-backend/internal/logging"
)

// MemoryQueue is a buffered channel drained by a fixed worker pool.
type MemoryQueue struct {
	mu     sync.RWMutex
	jobs   chan ParseJob
	closed bool
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size < 1 {
		size = 1
	}
	return &MemoryQueue{jobs: make(chan ParseJob, size)}
}

// Publish never blocks; a full buffer returns ErrQueueFull.
func (q *MemoryQueue) Publish(_ context.Context, job ParseJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	if job.QueuedAt.IsZero() {
		job.QueuedAt = time.Now()
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Start(ctx context.Context, workers int, h Handler) error {
	if workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", workers)
	}
	logger := logging.Component("parse-queue")
	wctx, cancel := workerContext(ctx)
	q.mu.Lock()
	q.cancel = cancel
	q.mu.Unlock()
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go func(id int) {
			defer q.wg.Done()
			for job := range q.jobs {
				// interrupted: leave the rest buffered, their rows stay pending
				if wctx.Err() != nil {
					return
				}
				runHandler(wctx, h, job, logger.WithField("worker", id))
			}
		}(i)
	}
	logger.WithField("workers", workers).Info("memory queue workers started")
	return nil
}

func (q *MemoryQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	cancel := q.cancel
	q.mu.Unlock()

	err := drain(ctx, &q.wg, cancel)
	if cancel != nil {
		cancel()
	}
	return err
}

// Len is the number of jobs waiting in the buffer.
func (q *MemoryQueue) Len() int { return len(q.jobs) }
