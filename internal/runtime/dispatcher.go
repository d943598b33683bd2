package runtime

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/architeacher/amqp-jobqueue/internal/config"
	"github.com/architeacher/amqp-jobqueue/internal/infrastructure"
	"github.com/architeacher/amqp-jobqueue/internal/service"
	"github.com/architeacher/amqp-jobqueue/pkg/queue"
)

// DispatcherCtx wires the enqueue side: configuration, logging, metrics and
// a connected queue client behind a DispatchService.
type DispatcherCtx struct {
	cfg         *config.ServiceConfig
	logger      *infrastructure.Logger
	metrics     infrastructure.Metrics
	client      *queue.Client
	dispatchSvc service.DispatchService

	ctx        context.Context
	cancelFunc context.CancelFunc
}

func NewDispatcher(opts ...DispatcherOption) *DispatcherCtx {
	dCtx := &DispatcherCtx{}

	for i := range opts {
		opts[i](dCtx)
	}

	return dCtx
}

func (c *DispatcherCtx) Build() error {
	c.ctx, c.cancelFunc = context.WithCancel(context.Background())

	cfg, err := config.Init()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	c.cfg = cfg

	c.logger = infrastructure.New(cfg.Logging)

	c.metrics, err = infrastructure.NewMetrics(c.ctx, *cfg, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	overrides, err := cfg.Queue.Overrides()
	if err != nil {
		return fmt.Errorf("failed to parse queue overrides: %w", err)
	}

	clientOpts := []queue.ConnectionOption{
		queue.WithLogger(infrastructure.NewQueueLogger(c.logger)),
		queue.WithCircuitBreaker(gobreaker.Settings{Name: "rabbitmq"}),
		queue.WithRecoveryHook(func(action string) {
			c.metrics.RecordRecovery(c.ctx, action)
		}),
	}
	if overrides != nil {
		clientOpts = append(clientOpts, queue.WithOptionsProvider(overrides))
	}

	c.client = queue.NewClient(cfg.Queue.ClientConfig(), clientOpts...)

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	c.dispatchSvc = service.NewDispatchService(c.client, cfg.Queue.QueueName, c.logger, c.metrics)

	return nil
}

func (c *DispatcherCtx) DispatchService() service.DispatchService {
	return c.dispatchSvc
}

func (c *DispatcherCtx) Logger() *infrastructure.Logger {
	return c.logger
}

func (c *DispatcherCtx) Close() {
	defer c.cancelFunc()

	if c.client != nil {
		if err := c.client.Close(); err != nil {
			c.logger.Error().Err(err).Msg("failed to close queue client")
		}
	}

	if c.metrics != nil {
		if err := c.metrics.Shutdown(c.ctx); err != nil {
			c.logger.Error().Err(err).Msg("failed to shutdown metrics")
		}
	}
}
