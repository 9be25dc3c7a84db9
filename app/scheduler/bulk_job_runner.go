// Package scheduler runs background work that outlives a single request
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/amirphl/rsvp-relay/models"
	"go.uber.org/zap"
)

// BulkJobExecutor is the part of the bulk send flow the runner drives
type BulkJobExecutor interface {
	ResumableJobs(ctx context.Context, limit int) ([]*models.BulkJob, error)
	ExecuteJob(ctx context.Context, job *models.BulkJob) error
}

// BulkJobRunner executes queued and interrupted bulk jobs one at a time, so
// sends of different jobs never interleave. It polls every interval and can
// be woken early with Notify.
type BulkJobRunner struct {
	executor  BulkJobExecutor
	interval  time.Duration
	batchSize int
	logger    *zap.Logger

	wake chan struct{}
	wg   sync.WaitGroup
}

func NewBulkJobRunner(executor BulkJobExecutor, interval time.Duration, batchSize int, logger *zap.Logger) *BulkJobRunner {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &BulkJobRunner{
		executor:  executor,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.Named("bulk_runner"),
		wake:      make(chan struct{}, 1),
	}
}

// Notify wakes the runner without blocking. Wakes while a pass is running
// collapse into one more pass.
func (r *BulkJobRunner) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Start launches the runner loop in a background goroutine and returns a stop
// function that waits for the current job to observe cancellation.
func (r *BulkJobRunner) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.runOnce(ctx)
			case <-r.wake:
				r.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		r.wg.Wait()
	}
}

// runOnce drains the resumable jobs, oldest first. A job is tried at most
// once per pass so one that keeps erroring waits for the next tick.
func (r *BulkJobRunner) runOnce(ctx context.Context) {
	tried := map[uint]bool{}
	for ctx.Err() == nil {
		jobs, err := r.executor.ResumableJobs(ctx, r.batchSize)
		if err != nil {
			r.logger.Error("Failed to list resumable bulk jobs", zap.Error(err))
			return
		}

		executed := 0
		for _, job := range jobs {
			if ctx.Err() != nil {
				return
			}
			if tried[job.ID] {
				continue
			}
			tried[job.ID] = true
			executed++

			err := r.executor.ExecuteJob(ctx, job)
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				r.logger.Info("Bulk job interrupted", zap.String("job", job.UUID.String()), zap.Int("next_index", job.NextIndex))
				return
			default:
				r.logger.Warn("Bulk job stopped", zap.String("job", job.UUID.String()), zap.Error(err))
			}
		}
		if executed == 0 {
			return
		}
	}
}
