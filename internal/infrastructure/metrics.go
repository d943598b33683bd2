package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/architeacher/amqp-jobqueue/internal/config"
)

const (
	metricsNamespace = "amqp_jobqueue"
)

type (
	Metrics interface {
		RecordEnqueue(ctx context.Context, queueName string, delayed, success bool)
		RecordDequeue(ctx context.Context, queueName string, hit bool)
		RecordJobProcessed(ctx context.Context, queueName string, duration time.Duration, outcome string)
		RecordRecovery(ctx context.Context, action string)
		Handler() http.Handler
		Shutdown(ctx context.Context) error
	}

	OTELMetrics struct {
		meterProvider *sdkmetric.MeterProvider
		meter         metric.Meter
		logger        *Logger

		enqueueTotal       metric.Int64Counter
		enqueueErrorTotal  metric.Int64Counter
		dequeueTotal       metric.Int64Counter
		jobsProcessedTotal metric.Int64Counter
		jobDuration        metric.Float64Histogram
		recoveryTotal      metric.Int64Counter
	}
)

func NewMetrics(ctx context.Context, cfg config.ServiceConfig, logger *Logger) (Metrics, error) {
	if !cfg.Telemetry.Metrics.Enabled {
		logger.Info().Msg("metrics disabled, using NoOp implementation")

		return &NoOpMetrics{}, nil
	}

	return NewOTELMetrics(ctx, cfg, logger)
}

func NewOTELMetrics(ctx context.Context, cfg config.ServiceConfig, logger *Logger) (*OTELMetrics, error) {
	endpoint := fmt.Sprintf("%s:%s", cfg.Telemetry.OtelGRPCHost, cfg.Telemetry.OtelGRPCPort)

	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to OTEL collector: %w", err)
	}

	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.AppConfig.ServiceName),
			semconv.ServiceVersionKey.String(cfg.AppConfig.ServiceVersion),
			semconv.ServiceInstanceIDKey.String(cfg.AppConfig.CommitSHA),
			semconv.DeploymentEnvironmentKey.String(cfg.AppConfig.Env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(
		metricsNamespace,
		metric.WithInstrumentationVersion(cfg.AppConfig.ServiceVersion),
	)

	provider := &OTELMetrics{
		meterProvider: meterProvider,
		meter:         meter,
		logger:        logger,
	}

	if err := provider.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	logger.Info().
		Str("otel_endpoint", endpoint).
		Msg("OTEL metrics provider initialized successfully")

	return provider, nil
}

func (om *OTELMetrics) initializeMetrics() error {
	var err error

	om.enqueueTotal, err = om.meter.Int64Counter(
		"enqueued_messages_total",
		metric.WithDescription("Total number of messages published to the broker"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create enqueued_messages_total counter: %w", err)
	}

	om.enqueueErrorTotal, err = om.meter.Int64Counter(
		"enqueue_errors_total",
		metric.WithDescription("Total number of failed publish attempts"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create enqueue_errors_total counter: %w", err)
	}

	om.dequeueTotal, err = om.meter.Int64Counter(
		"dequeue_polls_total",
		metric.WithDescription("Total number of dequeue polls against the broker"),
		metric.WithUnit("{poll}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create dequeue_polls_total counter: %w", err)
	}

	om.jobsProcessedTotal, err = om.meter.Int64Counter(
		"jobs_processed_total",
		metric.WithDescription("Total number of jobs handled by the worker"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create jobs_processed_total counter: %w", err)
	}

	om.jobDuration, err = om.meter.Float64Histogram(
		"job_duration_seconds",
		metric.WithDescription("Job handler execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create job_duration_seconds histogram: %w", err)
	}

	om.recoveryTotal, err = om.meter.Int64Counter(
		"connection_recoveries_total",
		metric.WithDescription("Total number of swallowed broker errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create connection_recoveries_total counter: %w", err)
	}

	return nil
}

func (om *OTELMetrics) RecordEnqueue(ctx context.Context, queueName string, delayed, success bool) {
	if !success {
		om.enqueueErrorTotal.Add(ctx, 1,
			metric.WithAttributes(
				QueueNameAttr(queueName),
			),
		)

		return
	}

	om.enqueueTotal.Add(ctx, 1,
		metric.WithAttributes(
			QueueNameAttr(queueName),
			DelayedAttr(delayed),
		),
	)
}

func (om *OTELMetrics) RecordDequeue(ctx context.Context, queueName string, hit bool) {
	status := "hit"
	if !hit {
		status = "empty"
	}

	om.dequeueTotal.Add(ctx, 1,
		metric.WithAttributes(
			QueueNameAttr(queueName),
			StatusAttr(status),
		),
	)
}

func (om *OTELMetrics) RecordJobProcessed(ctx context.Context, queueName string, duration time.Duration, outcome string) {
	om.jobsProcessedTotal.Add(ctx, 1,
		metric.WithAttributes(
			QueueNameAttr(queueName),
			OutcomeAttr(outcome),
		),
	)

	om.jobDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			QueueNameAttr(queueName),
			OutcomeAttr(outcome),
		),
	)
}

func (om *OTELMetrics) RecordRecovery(ctx context.Context, action string) {
	om.recoveryTotal.Add(ctx, 1,
		metric.WithAttributes(
			ActionAttr(action),
		),
	)
}

func (om *OTELMetrics) Handler() http.Handler {
	return promhttp.Handler()
}

func (om *OTELMetrics) Shutdown(ctx context.Context) error {
	if err := om.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}

	return nil
}
