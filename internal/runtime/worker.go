package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker"

	"github.com/architeacher/amqp-jobqueue/internal/config"
	"github.com/architeacher/amqp-jobqueue/internal/infrastructure"
	"github.com/architeacher/amqp-jobqueue/internal/ports"
	"github.com/architeacher/amqp-jobqueue/internal/service"
	"github.com/architeacher/amqp-jobqueue/internal/shared/backoff"
	"github.com/architeacher/amqp-jobqueue/pkg/queue"
)

type WorkerCtx struct {
	handlers map[string]ports.JobHandler

	cfg       *config.ServiceConfig
	logger    *infrastructure.Logger
	metrics   infrastructure.Metrics
	client    *queue.Client
	workerSvc service.WorkerService

	backoffStrategy backoff.Strategy
	metricsServer   *http.Server

	shutdownChannel chan os.Signal
	ctx             context.Context
	cancelFunc      context.CancelFunc
}

func NewWorker(handlers map[string]ports.JobHandler, opts ...WorkerOption) *WorkerCtx {
	wCtx := &WorkerCtx{
		handlers:        handlers,
		shutdownChannel: make(chan os.Signal, 1),
	}

	for i := range opts {
		opts[i](wCtx)
	}

	return wCtx
}

func (c *WorkerCtx) Run() {
	c.build()
	c.start()
	c.wait()
	c.shutdown()
}

func (c *WorkerCtx) build() {
	c.ctx, c.cancelFunc = context.WithCancel(context.Background())

	cfg, err := config.Init()
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	c.cfg = cfg

	c.logger = infrastructure.New(cfg.Logging)

	c.metrics, err = infrastructure.NewMetrics(c.ctx, *cfg, c.logger)
	if err != nil {
		c.logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	overrides, err := cfg.Queue.Overrides()
	if err != nil {
		c.logger.Fatal().Err(err).Msg("failed to parse queue overrides")
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
		c.logger.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}

	c.workerSvc = service.NewWorkerService(c.handlers, cfg.Worker, c.logger, c.metrics)
	c.backoffStrategy = backoff.NewExponentialStrategy(cfg.Backoff)
}

func (c *WorkerCtx) start() {
	c.logger.Info().
		Str("queue", c.cfg.Queue.QueueName).
		Msg("starting job queue worker")

	if c.cfg.Telemetry.Metrics.Enabled {
		c.startMetricsServer()
	}

	go c.poll()
}

func (c *WorkerCtx) startMetricsServer() {
	c.metricsServer = &http.Server{
		Addr:    c.cfg.Telemetry.Metrics.Addr,
		Handler: c.metrics.Handler(),
	}

	go func() {
		c.logger.Info().
			Str("address", c.cfg.Telemetry.Metrics.Addr).
			Msg("serving metrics")

		if err := c.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func (c *WorkerCtx) poll() {
	queueName := c.cfg.Queue.QueueName
	emptyPolls := 0

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		job, err := c.client.DequeueOnce(c.ctx, queueName)
		if err != nil {
			c.logger.Fatal().Err(err).Msg("dequeue failed, shutting down")
		}

		if job == nil {
			c.metrics.RecordDequeue(c.ctx, queueName, false)
			emptyPolls++

			c.sleep(c.idleDelay(emptyPolls))

			continue
		}

		c.metrics.RecordDequeue(c.ctx, queueName, true)
		emptyPolls = 0

		if err := c.workerSvc.ProcessJob(c.ctx, queueName, job); err != nil {
			c.logger.Error().Err(err).
				Str("job_id", job.ID()).
				Msg("failed to process job")
		}
	}
}

func (c *WorkerCtx) idleDelay(emptyPolls int) time.Duration {
	delay := c.backoffStrategy.Backoff(emptyPolls - 1)
	if delay < c.cfg.Worker.PollInterval {
		delay = c.cfg.Worker.PollInterval
	}

	return delay
}

func (c *WorkerCtx) sleep(delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
	case <-timer.C:
	}
}

func (c *WorkerCtx) wait() {
	signal.Notify(c.shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
	<-c.shutdownChannel
}

func (c *WorkerCtx) shutdown() {
	c.logger.Info().Msg("received shutdown signal")
	defer c.cleanup()

	c.cancelFunc()
	c.logger.Info().Msg("job queue worker stopped")
}

func (c *WorkerCtx) cleanup() {
	c.logger.Info().Msg("cleaning up resources...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Worker.ShutdownTimeout)
	defer cancel()

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(shutdownCtx); err != nil {
			c.logger.Error().Err(err).Msg("failed to shutdown metrics server")
		}
	}

	if c.client != nil {
		if err := c.client.Close(); err != nil {
			c.logger.Error().Err(err).Msg("failed to close queue client")
		}
	}

	if err := c.metrics.Shutdown(shutdownCtx); err != nil {
		c.logger.Error().Err(err).Msg("failed to shutdown metrics")
	}

	c.logger.Info().Msg("cleanup completed")
}
