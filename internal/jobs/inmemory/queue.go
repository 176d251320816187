package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/wechat-ledger/internal/jobs"
	"github.com/dvloznov/wechat-ledger/internal/logger"
)

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// Failed jobs are not retried; a failed report must be submitted again.
type Queue struct {
	jobChan   chan *jobs.ReportJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	pending   sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	workers   int
	closed    bool
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before PublishReport
// blocks; workers is the number of jobs processed concurrently. A nil store
// gets a fresh in-memory registry.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if store == nil {
		store = NewStore()
	}
	return &Queue{
		jobChan:   make(chan *jobs.ReportJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   workers,
	}
}

// Store returns the registry the queue records job state in.
func (q *Queue) Store() jobs.JobStore { return q.store }

// PublishReport implements the Publisher interface.
func (q *Queue) PublishReport(ctx context.Context, job *jobs.ReportJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if err := q.store.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	q.pending.Add(1)
	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		q.pending.Done()
		return ctx.Err()
	case <-q.closeChan:
		q.pending.Done()
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
// It starts the configured number of workers, each calling handler for one
// job at a time.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

// worker processes jobs from the queue.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs a single job and records its terminal state.
func (q *Queue) processJob(ctx context.Context, job *jobs.ReportJob, handler jobs.JobHandler) {
	defer q.pending.Done()
	log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Str("report", job.ReportName).Logger()

	if err := q.store.UpdateJobStatus(ctx, job.JobID, jobs.JobStatusRunning, ""); err != nil {
		log.Error().Err(err).Msg("Failed to mark job running")
		return
	}

	err := handler(ctx, job)

	status, msg := jobs.JobStatusCompleted, ""
	if err != nil {
		status, msg = jobs.JobStatusFailed, err.Error()
		log.Error().Err(err).Msg("Job failed")
	} else {
		log.Info().Msg("Job completed")
	}

	if err := q.store.UpdateJobStatus(ctx, job.JobID, status, msg); err != nil {
		log.Error().Err(err).Msg("Failed to record job result")
	}
}

// Wait blocks until every published job has been processed or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop implements the Consumer interface.
// Jobs still buffered are marked failed; in-flight jobs run to completion
// unless ctx ends first.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	q.drain(ctx)

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain fails every job still buffered so that Wait returns and the
// registry holds no pending jobs after Stop.
func (q *Queue) drain(ctx context.Context) {
	log := logger.FromContext(ctx)
	for {
		select {
		case job := <-q.jobChan:
			if job == nil {
				continue
			}
			if err := q.store.UpdateJobStatus(ctx, job.JobID, jobs.JobStatusFailed, errQueueStopped); err != nil {
				log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to record dropped job")
			}
			q.pending.Done()
		default:
			return
		}
	}
}

const errQueueStopped = "queue stopped before the job started"

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
