package service

import (
	"context"
	"time"

	"github.com/architeacher/amqp-jobqueue/internal/infrastructure"
	"github.com/architeacher/amqp-jobqueue/internal/ports"
	"github.com/architeacher/amqp-jobqueue/pkg/queue"
)

type (
	DispatchService interface {
		Dispatch(ctx context.Context, job string, data any, opts ...queue.DeliveryOption) (string, error)
		DispatchDelayed(ctx context.Context, delay time.Duration, job string, data any, opts ...queue.DeliveryOption) (string, error)
		DispatchAt(ctx context.Context, at time.Time, job string, data any, opts ...queue.DeliveryOption) (string, error)
		PendingJobs(ctx context.Context, queueName string) (int, error)
	}

	dispatchService struct {
		dispatcher ports.Dispatcher
		queueName  string
		logger     *infrastructure.Logger
		metrics    infrastructure.Metrics
	}
)

func NewDispatchService(
	dispatcher ports.Dispatcher,
	queueName string,
	logger *infrastructure.Logger,
	metrics infrastructure.Metrics,
) DispatchService {
	return dispatchService{
		dispatcher: dispatcher,
		queueName:  queueName,
		logger:     logger,
		metrics:    metrics,
	}
}

func (s dispatchService) Dispatch(ctx context.Context, job string, data any, opts ...queue.DeliveryOption) (string, error) {
	correlationID, err := s.dispatcher.Enqueue(ctx, job, data, opts...)
	s.metrics.RecordEnqueue(ctx, s.queueName, false, err == nil)

	if err != nil {
		s.logger.Error().Err(err).
			Str("job", job).
			Msg("failed to dispatch job")

		return "", err
	}

	s.logger.Debug().
		Str("job", job).
		Str("correlation_id", correlationID).
		Msg("job dispatched")

	return correlationID, nil
}

func (s dispatchService) DispatchDelayed(ctx context.Context, delay time.Duration, job string, data any, opts ...queue.DeliveryOption) (string, error) {
	correlationID, err := s.dispatcher.EnqueueDelayed(ctx, delay, job, data, opts...)
	s.metrics.RecordEnqueue(ctx, s.queueName, true, err == nil)

	if err != nil {
		s.logger.Error().Err(err).
			Str("job", job).
			Dur("delay", delay).
			Msg("failed to dispatch delayed job")

		return "", err
	}

	s.logger.Debug().
		Str("job", job).
		Str("correlation_id", correlationID).
		Dur("delay", delay).
		Msg("delayed job dispatched")

	return correlationID, nil
}

func (s dispatchService) DispatchAt(ctx context.Context, at time.Time, job string, data any, opts ...queue.DeliveryOption) (string, error) {
	correlationID, err := s.dispatcher.EnqueueAt(ctx, at, job, data, opts...)
	s.metrics.RecordEnqueue(ctx, s.queueName, true, err == nil)

	if err != nil {
		s.logger.Error().Err(err).
			Str("job", job).
			Time("at", at).
			Msg("failed to schedule job")

		return "", err
	}

	return correlationID, nil
}

func (s dispatchService) PendingJobs(ctx context.Context, queueName string) (int, error) {
	return s.dispatcher.Size(ctx, queueName)
}
