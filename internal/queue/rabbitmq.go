package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/justsurfingit/ats-backend/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

const consumerTag = "ats-parse-worker"

// RabbitQueue publishes parse jobs to a durable RabbitMQ queue.
type RabbitQueue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue

	pubMu  sync.Mutex
	wg     sync.WaitGroup
	once   sync.Once
	cancel context.CancelFunc
}

func NewRabbitQueue(url, name string) (*RabbitQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		name,  // queue name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	logging.Component("parse-queue").WithField("queue", q.Name).Info("connected to RabbitMQ")
	return &RabbitQueue{conn: conn, channel: ch, queue: q}, nil
}

func (r *RabbitQueue) Publish(ctx context.Context, job ParseJob) error {
	if job.QueuedAt.IsZero() {
		job.QueuedAt = time.Now()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	if r.channel.IsClosed() {
		return ErrClosed
	}
	return r.channel.PublishWithContext(
		ctx,
		"",           // exchange
		r.queue.Name, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (r *RabbitQueue) Start(ctx context.Context, workers int, h Handler) error {
	if workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", workers)
	}
	if err := r.channel.Qos(workers, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}
	msgs, err := r.channel.Consume(
		r.queue.Name,
		consumerTag,
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger := logging.Component("parse-queue")
	wctx, cancel := workerContext(ctx)
	r.cancel = cancel
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go func(id int) {
			defer r.wg.Done()
			wlog := logger.WithField("worker", id)
			for d := range msgs {
				var job ParseJob
				if err := json.Unmarshal(d.Body, &job); err != nil {
					wlog.WithError(err).Warn("invalid job format, dropping")
					_ = d.Nack(false, false)
					continue
				}
				if err := runHandler(wctx, h, job, wlog); err != nil {
					// interrupted by shutdown: hand the message back to the broker
					_ = d.Nack(false, wctx.Err() != nil)
					continue
				}
				_ = d.Ack(false)
			}
		}(i)
	}
	logger.WithField("workers", workers).Info("rabbitmq consumers started")
	return nil
}

func (r *RabbitQueue) Close(ctx context.Context) error {
	var err error
	r.once.Do(func() {
		if cerr := r.channel.Cancel(consumerTag, false); cerr != nil {
			log.WithError(cerr).Debug("cancel consumer")
		}
		err = drain(ctx, &r.wg, r.cancel)
		if r.cancel != nil {
			r.cancel()
		}
		r.pubMu.Lock()
		defer r.pubMu.Unlock()
		if cerr := r.channel.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if cerr := r.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

// runHandler isolates panics so one bad resume cannot kill a worker.
func runHandler(ctx context.Context, h Handler, job ParseJob, logger *log.Entry) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
			logger.WithField("resume_id", job.ResumeID).Errorf("parse handler panicked: %v", rec)
		}
	}()
	if err = h(ctx, job); err != nil {
		logger.WithError(err).WithField("resume_id", job.ResumeID).Warn("parse job failed")
	}
	return err
}
