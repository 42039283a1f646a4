package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/reviews-extractor/internal/entity"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one location to extract.
type Job struct {
	LocationID  string
	SubmittedAt time.Time
	TraceID     string
}

// Outcome is reported once per job.
type Outcome struct {
	Job      Job
	Artifact entity.Artifact
	Err      error
}

// Queue extracts several locations concurrently. Each worker owns its own Loop, so polls
// for one batch stay sequential while different batches proceed independently.
type Queue struct {
	api      API
	loopOpts []LoopOption
	logger   *slog.Logger
	workers  int
	timeout  time.Duration
	onDone   func(Outcome)

	ch     chan Job
	wg     sync.WaitGroup
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithJobTimeout bounds a single extraction. Zero, the default, means no deadline.
func WithJobTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithLoopOptions(opts ...LoopOption) Option {
	return func(q *Queue) { q.loopOpts = append(q.loopOpts, opts...) }
}

// WithOnDone registers fn for job outcomes. It is called from worker goroutines.
func WithOnDone(fn func(Outcome)) Option {
	return func(q *Queue) { q.onDone = fn }
}

func NewQueue(api API, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		api:     api,
		logger:  logger,
		workers: 4,
		ch:      make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				opts := append([]LoopOption{WithLogger(q.logger.With("worker_id", workerID))}, q.loopOpts...)
				loop := NewLoop(q.api, opts...)
				q.logger.Debug("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, loop, job)
				}

				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) run(workerID int, loop *Loop, job Job) {
	ctx := q.ctx
	var cancel context.CancelFunc
	if q.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	art, err := loop.Run(ctx, job.LocationID)
	cancel()
	loop.Reset()

	if err != nil {
		q.logger.Error("queue.job.failed", "worker_id", workerID, "trace_id", job.TraceID, "location_id", job.LocationID, "error", err)
	} else {
		q.logger.Info("queue.job.done", "worker_id", workerID, "trace_id", job.TraceID, "location_id", job.LocationID, "file", art.FileName)
	}
	if q.onDone != nil {
		q.onDone(Outcome{Job: job, Artifact: art, Err: err})
	}
}

// Enqueue schedules locationID. It blocks while the queue is full.
func (q *Queue) Enqueue(ctx context.Context, locationID string) (Job, error) {
	job := Job{LocationID: locationID, SubmittedAt: time.Now().UTC(), TraceID: uuid.NewString()}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "location_id", locationID)
		return Job{}, ErrQueueClosed
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue.full", "location_id", locationID)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return Job{}, ctx.Err()
		}
	}
	q.logger.Info("queue.enqueued", "location_id", locationID, "trace_id", job.TraceID)
	return job, nil
}

// Shutdown stops accepting jobs and waits for queued ones. If ctx ends first, in-flight
// loops are cancelled.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
		q.cancel()
		<-done
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
	q.cancel()
}
