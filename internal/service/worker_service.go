package service

import (
	"context"
	"fmt"
	"time"

	"github.com/architeacher/amqp-jobqueue/internal/config"
	"github.com/architeacher/amqp-jobqueue/internal/infrastructure"
	"github.com/architeacher/amqp-jobqueue/internal/ports"
	"github.com/architeacher/amqp-jobqueue/pkg/queue"
)

const (
	outcomeCompleted = "completed"
	outcomeRetried   = "retried"
	outcomeDiscarded = "discarded"
	outcomeUnmatched = "unmatched"
)

type (
	WorkerService interface {
		ProcessJob(ctx context.Context, queueName string, job *queue.Job) error
	}

	workerService struct {
		handlers  map[string]ports.JobHandler
		workerCfg config.WorkerConfig
		logger    *infrastructure.Logger
		metrics   infrastructure.Metrics
	}
)

func NewWorkerService(
	handlers map[string]ports.JobHandler,
	workerCfg config.WorkerConfig,
	logger *infrastructure.Logger,
	metrics infrastructure.Metrics,
) WorkerService {
	return &workerService{
		handlers:  handlers,
		workerCfg: workerCfg,
		logger:    logger,
		metrics:   metrics,
	}
}

func (s *workerService) ProcessJob(ctx context.Context, queueName string, job *queue.Job) error {
	started := time.Now()

	handler, ok := s.handlers[job.Name()]
	if !ok {
		s.logger.Warn().
			Str("job", job.Name()).
			Str("job_id", job.ID()).
			Msg("no handler registered for job, discarding")

		s.metrics.RecordJobProcessed(ctx, queueName, time.Since(started), outcomeUnmatched)

		return job.Reject()
	}

	if err := handler.Handle(ctx, job); err != nil {
		return s.handleFailure(ctx, queueName, job, started, err)
	}

	if err := job.Ack(); err != nil {
		return fmt.Errorf("failed to ack job %s: %w", job.ID(), err)
	}

	s.metrics.RecordJobProcessed(ctx, queueName, time.Since(started), outcomeCompleted)

	s.logger.Debug().
		Str("job", job.Name()).
		Str("job_id", job.ID()).
		Msg("job completed")

	return nil
}

func (s *workerService) handleFailure(ctx context.Context, queueName string, job *queue.Job, started time.Time, handleErr error) error {
	if job.Attempts()+1 >= s.workerCfg.MaxAttempts {
		s.logger.Warn().
			Err(handleErr).
			Str("job", job.Name()).
			Str("job_id", job.ID()).
			Int("attempts", job.Attempts()).
			Msg("job permanently failed after max attempts")

		s.metrics.RecordJobProcessed(ctx, queueName, time.Since(started), outcomeDiscarded)

		return job.Reject()
	}

	correlationID, err := job.Release(ctx, s.workerCfg.RetryDelay)
	if err != nil {
		return fmt.Errorf("failed to release job %s: %w", job.ID(), err)
	}

	s.metrics.RecordJobProcessed(ctx, queueName, time.Since(started), outcomeRetried)

	s.logger.Info().
		Err(handleErr).
		Str("job", job.Name()).
		Str("job_id", job.ID()).
		Str("correlation_id", correlationID).
		Int("attempts", job.Attempts()).
		Dur("retry_delay", s.workerCfg.RetryDelay).
		Msg("job released for retry")

	return nil
}
