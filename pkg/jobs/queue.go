package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer has no free slot.
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueStopped is passed to OnDrop for jobs still waiting at Stop.
	ErrQueueStopped = errors.New("queue stopped")
)

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var target *permanentError
	return errors.As(err, &target)
}

// QueueConfig configures the worker pool.
type QueueConfig struct {
	Workers    int
	BufferSize int
	// MaxRetries of zero selects the default of three; negative disables retries.
	MaxRetries int
	// RetryDelay is the first backoff step; it doubles per attempt up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// JobTimeout bounds a single handler call when positive.
	JobTimeout time.Duration
	// OnDrop is called once for every job the queue gives up on: permanent
	// failures, exhausted retries, retries that could not be re-enqueued and
	// jobs still pending when the queue stops. err is the last failure.
	OnDrop func(job Job, err error)
	Logger *zap.Logger
}

func (cfg QueueConfig) withDefaults() QueueConfig {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = 3
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = 30 * cfg.RetryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

// Queue dispatches jobs to a fixed pool of goroutines. Failed jobs are
// re-enqueued with exponential backoff unless marked Permanent.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	log     *zap.SugaredLogger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewQueue builds a queue; call Start before enqueueing.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		log:     cfg.Logger.Sugar().With("queue", name),
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Calls after the first are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.log.Infow("queue started", "workers", q.cfg.Workers, "buffer", q.cfg.BufferSize)
}

// Stop cancels workers and pending retries and waits for them to exit.
// Buffered jobs are handed to OnDrop.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()

	dropped := 0
	for len(q.jobs) > 0 {
		q.drop(<-q.jobs, ErrQueueStopped)
		dropped++
	}
	q.log.Infow("queue stopped", "dropped", dropped)
}

// Pending reports how many jobs wait in the buffer.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

// Enqueue adds a job without blocking. It fails with ErrQueueFull when
// every buffer slot is taken.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx, started := q.ctx, q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("queue %s stopped: %w", q.name, err)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.run(job); err != nil {
				q.handleFailure(job, err)
			}
		}
	}
}

func (q *Queue) run(job Job) (err error) {
	ctx := q.ctx
	if q.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.JobTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("job panicked: %v", r))
		}
	}()
	return q.handler(ctx, job)
}

func (q *Queue) backoff(attempt int) time.Duration {
	delay := q.cfg.RetryDelay
	for i := 1; i < attempt && delay < q.cfg.MaxRetryDelay; i++ {
		delay *= 2
	}
	if delay > q.cfg.MaxRetryDelay {
		delay = q.cfg.MaxRetryDelay
	}
	return delay
}

func (q *Queue) handleFailure(job Job, err error) {
	log := q.log.With("job_id", job.ID, "type", job.Type)
	if IsPermanent(err) {
		log.Warnw("job failed permanently", "error", err)
		q.drop(job, err)
		return
	}
	job.Attempt++
	if job.Attempt > q.cfg.MaxRetries {
		log.Errorw("job exceeded retries", "attempts", job.Attempt, "error", err)
		q.drop(job, err)
		return
	}
	delay := q.backoff(job.Attempt)
	log.Warnw("job failed, retrying", "attempt", job.Attempt, "delay", delay, "error", err)

	q.wg.Add(1)
	go func(j Job) {
		defer q.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.drop(j, fmt.Errorf("%w before retry: %v", ErrQueueStopped, err))
		case <-timer.C:
			if requeueErr := q.Enqueue(j); requeueErr != nil {
				log.Errorw("failed to requeue job", "error", requeueErr)
				q.drop(j, fmt.Errorf("%w after: %v", requeueErr, err))
			}
		}
	}(job)
}

func (q *Queue) drop(job Job, err error) {
	if q.cfg.OnDrop == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorw("drop callback panicked", "job_id", job.ID, "panic", r)
		}
	}()
	q.cfg.OnDrop(job, err)
}
