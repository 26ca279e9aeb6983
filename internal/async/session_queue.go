package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/internal/common"
)

// SessionQueue runs sessions on a fixed worker pool. Sessions share nothing but the runner's
// repositories, so any number may be in flight.
type SessionQueue struct {
	runner  Runner
	logger  *slog.Logger
	workers int
	timeout time.Duration
	base    context.Context

	ch      chan Job
	results chan Result
	wg      sync.WaitGroup
	once    sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*SessionQueue)

func WithWorkers(n int) Option {
	return func(q *SessionQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *SessionQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
			q.results = make(chan Result, n)
		}
	}
}

// WithSessionTimeout bounds a whole session run. Zero means no bound beyond the base context.
func WithSessionTimeout(d time.Duration) Option {
	return func(q *SessionQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(q *SessionQueue) {
		if l != nil {
			q.logger = l
		}
	}
}

// NewSessionQueue starts the workers. Cancelling base stops every running session between
// batches; queued jobs still drain and report the cancellation.
func NewSessionQueue(base context.Context, runner Runner, opts ...Option) *SessionQueue {
	q := &SessionQueue{
		runner:  runner,
		logger:  slog.Default(),
		workers: 2,
		base:    base,
		ch:      make(chan Job, 64),
		results: make(chan Result, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *SessionQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.results <- q.run(workerID, job)
				}
				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *SessionQueue) run(workerID int, job Job) Result {
	ctx := q.base
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	ctx = common.WithRequestID(ctx, job.ID.String())
	ctx = common.WithLogger(ctx, q.logger.With("job_id", job.ID))

	start := time.Now()
	res, err := q.runner.Run(ctx, job.Request)
	out := Result{Job: job, Result: res, Err: err, Duration: time.Since(start)}
	if err != nil {
		q.logger.Error("queue.job.failed", "worker_id", workerID, "job_id", job.ID,
			"project_id", job.Request.ProjectID, "err", err)
	} else {
		q.logger.Info("queue.job.ok", "worker_id", workerID, "job_id", job.ID,
			"project_id", job.Request.ProjectID, "state", res.Outcome.State,
			"elapsed_ms", out.Duration.Milliseconds())
	}
	return out
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *SessionQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "project_id", job.Request.ProjectID)
		return common.NewAppError("QUEUE_CLOSED", "queue is shutting down", common.ErrInvalidInput)
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queue.enqueued", "job_id", job.ID, "project_id", job.Request.ProjectID, "session_id", job.Request.SessionID)
		return nil
	default:
	}
	q.logger.Warn("queue.full", "job_id", job.ID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results yields one Result per accepted job and is closed after Shutdown drains the workers.
// Callers that enqueue more jobs than the queue size must read results concurrently.
func (q *SessionQueue) Results() <-chan Result {
	return q.results
}

func (q *SessionQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		q.wg.Wait()
		close(q.results)
	}()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.ok")
	}
}
