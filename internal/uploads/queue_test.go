package uploads

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_ProcessesPublishedJobs(t *testing.T) {
	store := NewMemoryStore()
	q := NewQueue(10, 2, store)

	var mu sync.Mutex
	handled := make(map[string]bool)
	done := make(chan struct{}, 3)

	handler := func(ctx context.Context, job *Job) error {
		mu.Lock()
		handled[job.BatchID] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	}

	ctx := context.Background()
	require.NoError(t, q.Start(ctx, handler))

	for _, batchID := range []string{"b1", "b2", "b3"} {
		require.NoError(t, q.Publish(ctx, &Job{BatchID: batchID, FilePath: "/tmp/" + batchID}))
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, q.Stop(stopCtx))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, handled, 3)
}

func TestQueue_RetriesFailedJob(t *testing.T) {
	store := NewMemoryStore()
	q := NewQueue(10, 1, store)

	var mu sync.Mutex
	attempts := 0
	succeeded := make(chan struct{})

	handler := func(ctx context.Context, job *Job) error {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 2 {
			return errors.New("stage bucket unavailable")
		}
		close(succeeded)
		return nil
	}

	ctx := context.Background()
	require.NoError(t, q.Start(ctx, handler))
	require.NoError(t, q.Publish(ctx, &Job{JobID: "job-1", BatchID: "b1", FilePath: "/tmp/b1"}))

	select {
	case <-succeeded:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not retried to success")
	}

	// Give the final store save a moment to land.
	require.Eventually(t, func() bool {
		job, err := store.GetJob(ctx, "job-1")
		return err == nil && job.Status == StatusCompleted
	}, 2*time.Second, 20*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, q.Stop(stopCtx))
}

// A batch flushed during shutdown publishes its upload job after the run
// context is already cancelled and the workers have exited. Stop must still
// run that job instead of abandoning it.
func TestQueue_StopDrainsJobsQueuedAfterCancel(t *testing.T) {
	store := NewMemoryStore()
	q := NewQueue(10, 1, store)

	var mu sync.Mutex
	handled := 0
	handler := func(ctx context.Context, job *Job) error {
		mu.Lock()
		handled++
		mu.Unlock()
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Start(runCtx, handler))
	cancel()

	// Give the workers time to observe the cancellation and exit.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, q.Publish(context.Background(), &Job{JobID: "final", BatchID: "final", FilePath: "/tmp/final"}))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, q.Stop(stopCtx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, handled, "job published after cancellation must still be handled on Stop")

	job, err := store.GetJob(context.Background(), "final")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
}

// The retry path must re-publish a copy so the backoff timer never mutates a
// job another reader still holds.
func TestQueue_RetryRepublishesCopy(t *testing.T) {
	q := NewQueue(10, 1, nil)

	var mu sync.Mutex
	var pointers []*Job
	succeeded := make(chan struct{})

	handler := func(ctx context.Context, job *Job) error {
		mu.Lock()
		pointers = append(pointers, job)
		n := len(pointers)
		mu.Unlock()
		if n < 2 {
			return errors.New("stage bucket unavailable")
		}
		close(succeeded)
		return nil
	}

	ctx := context.Background()
	require.NoError(t, q.Start(ctx, handler))
	require.NoError(t, q.Publish(ctx, &Job{JobID: "job-1", BatchID: "b1", FilePath: "/tmp/b1"}))

	select {
	case <-succeeded:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not retried to success")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, q.Stop(stopCtx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, pointers, 2)
	assert.NotSame(t, pointers[0], pointers[1])
	assert.Equal(t, 1, pointers[1].RetryCount)
}

func TestQueue_PublishAfterCloseFails(t *testing.T) {
	q := NewQueue(1, 1, nil)
	require.NoError(t, q.Close())

	err := q.Publish(context.Background(), &Job{BatchID: "b1"})
	assert.Error(t, err)
}

func TestMemoryStore_ListByStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveJob(ctx, &Job{JobID: "1", Status: StatusCompleted}))
	require.NoError(t, store.SaveJob(ctx, &Job{JobID: "2", Status: StatusFailed}))
	require.NoError(t, store.SaveJob(ctx, &Job{JobID: "3", Status: StatusCompleted}))

	completed, err := store.ListJobs(ctx, StatusCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	all, err := store.ListJobs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
