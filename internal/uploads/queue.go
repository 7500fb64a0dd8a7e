package uploads

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue is an in-memory upload queue backed by a channel. It is safe for
// concurrent use and suitable for the single-process demo tooling; a
// multi-instance deployment would swap in Cloud Tasks or Pub/Sub behind the
// same interfaces.
type Queue struct {
	jobChan     chan *Job
	closeChan   chan struct{}
	wg          sync.WaitGroup
	mu          sync.RWMutex
	store       JobStore
	handler     Handler
	workerCount int
	closed      bool
}

// NewQueue creates an upload queue. bufferSize bounds how many flushed
// batches can wait before Publish blocks the streamer; workerCount is the
// number of concurrent upload workers.
func NewQueue(bufferSize, workerCount int, store JobStore) *Queue {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Queue{
		jobChan:     make(chan *Job, bufferSize),
		closeChan:   make(chan struct{}),
		store:       store,
		workerCount: workerCount,
	}
}

// Publish implements Publisher. Missing job fields get defaults so callers
// only need to fill BatchID and FilePath.
func (q *Queue) Publish(ctx context.Context, job *Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("upload queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = 3
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("uploads.Publish: save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("upload queue is closed")
	}
}

// Start implements Consumer, launching the worker goroutines. ctx governs
// the workers' lifetime; pass one that outlives any cancellation that should
// still let queued jobs finish, and bound the drain via Stop instead.
func (q *Queue) Start(ctx context.Context, handler Handler) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("upload queue is closed")
	}
	q.handler = handler
	q.mu.Unlock()

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler Handler) {
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

// processJob runs one job through the handler, re-enqueueing failures with a
// linear backoff until MaxRetries is exhausted.
func (q *Queue) processJob(ctx context.Context, job *Job, handler Handler) {
	job.Status = StatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Error = err.Error()

		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = StatusRetrying

			// Re-publish a copy: the original may still be read through the
			// store or by the caller while the backoff timer fires.
			retry := *job
			retry.Status = StatusPending
			retry.StartedAt = nil
			retry.CompletedAt = nil

			backoff := time.Duration(job.RetryCount) * time.Second
			time.AfterFunc(backoff, func() {
				_ = q.Publish(ctx, &retry)
			})
		} else {
			job.Status = StatusFailed
		}
	} else {
		job.Status = StatusCompleted
		job.Error = ""
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// Stop implements Consumer. It stops accepting work, waits for in-flight
// jobs, then drains anything still queued so a published job is never
// silently abandoned on shutdown. The whole sequence is bounded by ctx.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	handler := q.handler
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Workers may have exited on a cancelled run context with jobs still
	// buffered (the batch streamer flushes its final batch on shutdown, after
	// cancellation). Run the leftovers here, on the stop context.
	if handler == nil {
		return nil
	}
	for {
		select {
		case job := <-q.jobChan:
			if job == nil {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			q.processJob(ctx, job, handler)
		default:
			return nil
		}
	}
}

// Close implements Publisher.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ Publisher = (*Queue)(nil)
var _ Consumer = (*Queue)(nil)
