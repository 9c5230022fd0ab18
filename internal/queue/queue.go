// Package queue carries resume parse jobs from the HTTP layer to background workers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/justsurfingit/ats-backend/internal/config"
)

const (
	BackendMemory   = "memory"
	BackendRabbitMQ = "rabbitmq"
)

var (
	ErrQueueFull = errors.New("queue full")
	ErrClosed    = errors.New("queue closed")
)

// ParseJob asks a worker to (re)parse one stored resume.
type ParseJob struct {
	ResumeID uint      `json:"resume_id"`
	Force    bool      `json:"force"`
	QueuedAt time.Time `json:"queued_at"`
}

type Handler func(ctx context.Context, job ParseJob) error

// workerContext detaches the handler context from the caller's cancellation.
func workerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(context.WithoutCancel(ctx))
}

// drain waits for wg; once ctx is done it calls cancel and keeps waiting.
// It returns ctx's error when the deadline cut the drain short.
func drain(ctx context.Context, wg *sync.WaitGroup, cancel context.CancelFunc) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		<-done
		return fmt.Errorf("parse workers interrupted: %w", ctx.Err())
	}
}

type Queue interface {
	Publish(ctx context.Context, job ParseJob) error
	// Start launches workers that call h for every job until Close. Handlers
	// keep ctx's values but not its cancellation; only Close cancels them.
	Start(ctx context.Context, workers int, h Handler) error
	// Close stops accepting jobs and waits for running handlers. When ctx is
	// done first, the handlers' context is cancelled and Close waits for
	// them to return.
	Close(ctx context.Context) error
}

func New(cfg config.QueueConfig) (Queue, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryQueue(cfg.BufferSize), nil
	case BackendRabbitMQ:
		return NewRabbitQueue(cfg.RabbitMQURL, cfg.QueueName)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}
