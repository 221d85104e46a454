package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"artomate-backend/internal/models"
	"artomate-backend/pkg/messagequeue"
)

// ErrDispatcherClosed is returned when a job is dispatched after shutdown began.
var ErrDispatcherClosed = errors.New("generation dispatcher is shut down")

// InlineDispatcher runs each job on its own goroutine in this process.
type InlineDispatcher struct {
	runner  JobRunner
	timeout time.Duration
	logger  *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewInlineDispatcher creates a dispatcher whose jobs are bounded by timeout.
func NewInlineDispatcher(runner JobRunner, timeout time.Duration, logger *zap.Logger) *InlineDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &InlineDispatcher{runner: runner, timeout: timeout, logger: logger, baseCtx: ctx, cancel: cancel}
}

// Dispatch starts the job and returns immediately. The request context is not
// inherited: the job outlives the HTTP request that started it.
func (d *InlineDispatcher) Dispatch(_ context.Context, job models.GenerationJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx := d.baseCtx
		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
		if err := d.runner.Run(ctx, job); err != nil {
			d.logger.Warn("Generation job failed", zap.String("jobID", job.JobID), zap.String("campaignID", job.CampaignID), zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops accepting jobs and waits for running ones. When ctx expires
// first, running jobs are cancelled and ctx.Err() is returned.
func (d *InlineDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// QueueDispatcher publishes jobs to a message queue for cmd/worker to consume.
type QueueDispatcher struct {
	mq    messagequeue.MessageQueue
	queue string
}

// NewQueueDispatcher creates a dispatcher publishing to queue.
func NewQueueDispatcher(mq messagequeue.MessageQueue, queue string) *QueueDispatcher {
	return &QueueDispatcher{mq: mq, queue: queue}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job models.GenerationJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode generation job: %w", err)
	}
	if err := d.mq.Publish(ctx, d.queue, body); err != nil {
		return fmt.Errorf("failed to publish generation job: %w", err)
	}
	return nil
}

// ConsumeGenerationJobs runs jobs from queue until ctx is cancelled.
// A failed job is not redelivered: its failure is already recorded on the campaign.
func ConsumeGenerationJobs(ctx context.Context, mq messagequeue.MessageQueue, queue string, runner JobRunner, timeout time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	return mq.Consume(ctx, queue, func(ctx context.Context, body []byte) error {
		var job models.GenerationJob
		if err := json.Unmarshal(body, &job); err != nil {
			return fmt.Errorf("failed to decode generation job: %w", err)
		}
		if job.UserID == "" || job.CampaignID == "" {
			return fmt.Errorf("generation job %q is missing its user or campaign", job.JobID)
		}

		jobCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			jobCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		logger.Info("Running generation job", zap.String("jobID", job.JobID), zap.String("campaignID", job.CampaignID))
		if err := runner.Run(jobCtx, job); err != nil {
			logger.Warn("Generation job failed", zap.String("jobID", job.JobID), zap.Error(err))
		}
		return nil
	})
}
