package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/rsvp-relay/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeExecutor struct {
	mu       sync.Mutex
	queue    []*models.BulkJob
	executed []uint
	running  int
	overlap  bool
	fail     map[uint]error
	block    chan struct{}
}

func (e *fakeExecutor) add(id uint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append(e.queue, &models.BulkJob{ID: id, UUID: uuid.New(), Status: models.BulkJobStatusPending})
}

func (e *fakeExecutor) ResumableJobs(ctx context.Context, limit int) ([]*models.BulkJob, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]*models.BulkJob(nil), e.queue...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (e *fakeExecutor) ExecuteJob(ctx context.Context, job *models.BulkJob) error {
	e.mu.Lock()
	e.running++
	if e.running > 1 {
		e.overlap = true
	}
	block := e.block
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running--
		e.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, job.ID)
	if err := e.fail[job.ID]; err != nil {
		return err
	}
	for i, j := range e.queue {
		if j.ID == job.ID {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			break
		}
	}
	return nil
}

func (e *fakeExecutor) snapshot() []uint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uint(nil), e.executed...)
}

func TestBulkJobRunner_DrainsQueueInOrder(t *testing.T) {
	exec := &fakeExecutor{}
	exec.add(1)
	exec.add(2)
	exec.add(3)

	r := NewBulkJobRunner(exec, time.Hour, 2, zap.NewNop())
	r.runOnce(context.Background())

	assert.Equal(t, []uint{1, 2, 3}, exec.snapshot())
	assert.False(t, exec.overlap)
}

func TestBulkJobRunner_FailingJobIsTriedOncePerPass(t *testing.T) {
	exec := &fakeExecutor{fail: map[uint]error{1: errors.New("gateway down")}}
	exec.add(1)
	exec.add(2)

	r := NewBulkJobRunner(exec, time.Hour, 10, zap.NewNop())
	r.runOnce(context.Background())

	assert.Equal(t, []uint{1, 2}, exec.snapshot())
}

func TestBulkJobRunner_NotifyWakesTheLoop(t *testing.T) {
	exec := &fakeExecutor{}
	r := NewBulkJobRunner(exec, time.Hour, 10, zap.NewNop())
	stop := r.Start(context.Background())
	defer stop()

	exec.add(7)
	r.Notify()
	r.Notify()

	require.Eventually(t, func() bool {
		return len(exec.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []uint{7}, exec.snapshot())
}

func TestBulkJobRunner_StopInterruptsTheRunningJob(t *testing.T) {
	exec := &fakeExecutor{block: make(chan struct{})}
	exec.add(1)

	r := NewBulkJobRunner(exec, time.Hour, 10, zap.NewNop())
	stop := r.Start(context.Background())

	require.Eventually(t, func() bool {
		exec.mu.Lock()
		defer exec.mu.Unlock()
		return exec.running == 1
	}, 2*time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}

	// The interrupted job is still queued for the next start
	jobs, err := exec.ResumableJobs(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.Empty(t, exec.snapshot())
}
