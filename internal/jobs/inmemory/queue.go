package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/sales-tracker/internal/jobs"
	"github.com/dvloznov/sales-tracker/internal/logger"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

var (
	// ErrQueueClosed is returned when publishing to or starting a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("queue already started")
)

// DefaultRetryBackoff is the wait between retries of a failed run.
const DefaultRetryBackoff = 30 * time.Second

// Queue runs pipeline jobs one at a time in submission order. Every run
// replaces the persisted dataset, so there is exactly one worker and a job
// that is retried holds the worker until it succeeds or gives up.
//
// A job asking for the same run as one still waiting in the queue is merged
// into the waiting job instead of being queued twice.
type Queue struct {
	jobChan chan *jobs.RunPipelineJob
	done    chan struct{}
	wg      sync.WaitGroup
	store   jobs.JobStore

	mu      sync.Mutex
	closed  bool
	started bool
	waiting map[string]string // run key -> job ID, for queued jobs not yet started

	retryBackoff time.Duration
}

// NewQueue creates a queue that buffers up to bufferSize waiting jobs. store
// may be nil.
func NewQueue(bufferSize int, store jobs.JobStore) *Queue {
	return &Queue{
		jobChan:      make(chan *jobs.RunPipelineJob, bufferSize),
		done:         make(chan struct{}),
		store:        store,
		waiting:      make(map[string]string),
		retryBackoff: DefaultRetryBackoff,
	}
}

// PublishRunPipeline queues job. It assigns the job ID, status and creation
// time, and defaults the source to the sales API. When an identical run is
// already waiting, job receives that run's ID and nothing new is queued.
// The queue keeps its own copy, so the caller may read job afterwards.
func (q *Queue) PublishRunPipeline(ctx context.Context, job *jobs.RunPipelineJob) error {
	if job.Source == "" {
		job.Source = jobs.SourceAPI
	}
	key := job.RunKey()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if id, ok := q.waiting[key]; ok {
		q.mu.Unlock()
		job.JobID = id
		job.Status = jobs.JobStatusPending
		log := logger.FromContext(ctx)
		log.Info().Str("job_id", id).Msg("Identical run already queued")
		return nil
	}
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	job.Status = jobs.JobStatusPending
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	q.waiting[key] = job.JobID
	q.mu.Unlock()

	if err := q.save(ctx, job); err != nil {
		q.release(key, job.JobID)
		return fmt.Errorf("PublishRunPipeline: saving job: %w", err)
	}

	queued := *job
	select {
	case q.jobChan <- &queued:
		return nil
	case <-ctx.Done():
		q.release(key, job.JobID)
		return ctx.Err()
	case <-q.done:
		q.release(key, job.JobID)
		return ErrQueueClosed
	}
}

// Start launches the worker. It returns immediately; the worker stops when ctx
// is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.started {
		return ErrAlreadyStarted
	}
	q.started = true

	q.wg.Add(1)
	go q.worker(ctx, handler)
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			return
		case job := <-q.jobChan:
			q.run(ctx, job, handler)
		}
	}
}

// run executes one job, retrying transient failures in place.
func (q *Queue) run(ctx context.Context, job *jobs.RunPipelineJob, handler jobs.JobHandler) {
	q.release(job.RunKey(), job.JobID)

	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("source", string(job.Source)).
		Logger()
	ctx = logger.WithContext(ctx, log)

	started := time.Now().UTC()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	_ = q.save(ctx, job)

	b := retry.WithMaxRetries(uint64(job.MaxRetries), retry.NewConstant(q.retryBackoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		err := handler(ctx, job)
		if err == nil || errors.Is(err, jobs.ErrPermanent) || job.RetryCount >= job.MaxRetries {
			return err
		}
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		job.Error = err.Error()
		_ = q.save(ctx, job)
		log.Warn().
			Err(err).
			Int("retry", job.RetryCount).
			Int("max_retries", job.MaxRetries).
			Msg("Run failed, retrying")
		return retry.RetryableError(err)
	})

	finished := time.Now().UTC()
	job.CompletedAt = &finished
	if err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		log.Error().
			Err(err).
			Bool("permanent", errors.Is(err, jobs.ErrPermanent)).
			Dur("duration", finished.Sub(started)).
			Msg("Run failed")
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().
			Int("rows", job.Rows).
			Dur("duration", finished.Sub(started)).
			Msg("Run completed")
	}
	_ = q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.RunPipelineJob) error {
	if q.store == nil {
		return nil
	}
	return q.store.SaveJob(ctx, job)
}

// release forgets a waiting run so an identical one can be queued again.
func (q *Queue) release(key, jobID string) {
	q.mu.Lock()
	if q.waiting[key] == jobID {
		delete(q.waiting, key)
	}
	q.mu.Unlock()
}

// Stop closes the queue and waits for the running job, if any. Jobs still
// waiting are dropped and keep their pending status.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	dropped := len(q.waiting)
	q.mu.Unlock()

	if dropped > 0 {
		log := logger.FromContext(ctx)
		log.Warn().Int("jobs", dropped).Msg("Queued runs dropped at shutdown")
	}

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
