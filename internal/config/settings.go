package config

import (
	"time"
)

// Compile time variables are set by -ldflags.
var (
	ServiceVersion string
	CommitSHA      string
)

type (
	ServiceConfig struct {
		AppConfig AppConfig     `json:"app_config"`
		Logging   LoggingConfig `json:"logging"`
		Telemetry Telemetry     `json:"telemetry"`
		Queue     QueueConfig   `json:"queue"`
		Worker    WorkerConfig  `json:"worker"`
		Backoff   BackoffConfig `json:"backoff"`
	}

	AppConfig struct {
		ServiceName    string `envconfig:"APP_SERVICE_NAME" default:"amqp-jobqueue" json:"service_name"`
		ServiceVersion string `envconfig:"APP_SERVICE_VERSION" default:"0.0.0" json:"service_version"`
		CommitSHA      string `envconfig:"APP_COMMIT_SHA" default:"unknown" json:"commit_sha"`
		Env            string `envconfig:"APP_ENVIRONMENT" default:"unknown" json:"env"`
	}

	LoggingConfig struct {
		Level  string `envconfig:"LOGGING_LEVEL" default:"info" json:"level"`
		Format string `envconfig:"LOGGING_FORMAT" default:"json" json:"format"`
	}

	Telemetry struct {
		OtelGRPCHost string `envconfig:"OTEL_HOST" json:"otel_grpc_host"`
		OtelGRPCPort string `envconfig:"OTEL_PORT" default:"4317" json:"otel_grpc_port"`

		Metrics Metrics `json:"metrics"`
	}

	Metrics struct {
		Enabled bool   `envconfig:"METRICS_ENABLED" default:"false" json:"enabled"`
		Addr    string `envconfig:"METRICS_ADDR" default:":9090" json:"addr"`
	}

	QueueConfig struct {
		Host        string `envconfig:"RABBITMQ_HOST" default:"rabbitmq" json:"host"`
		Port        int    `envconfig:"RABBITMQ_PORT" default:"5672" json:"port"`
		Username    string `envconfig:"RABBITMQ_USERNAME" default:"admin" json:"username"`
		Password    string `envconfig:"RABBITMQ_PASSWORD" default:"" json:"password,omitempty"`
		VirtualHost string `envconfig:"RABBITMQ_VIRTUAL_HOST" default:"/" json:"virtual_host"`

		QueueName    string `envconfig:"RABBITMQ_QUEUE_NAME" default:"jobs" json:"queue_name"`
		ExchangeName string `envconfig:"RABBITMQ_EXCHANGE_NAME" default:"" json:"exchange_name"`
		ExchangeKind string `envconfig:"RABBITMQ_EXCHANGE_KIND" default:"direct" json:"exchange_kind"`

		Durable         bool `envconfig:"RABBITMQ_DURABLE" default:"true" json:"durable"`
		AutoDelete      bool `envconfig:"RABBITMQ_AUTO_DELETE" default:"false" json:"auto_delete"`
		DeclareTopology bool `envconfig:"RABBITMQ_DECLARE_TOPOLOGY" default:"true" json:"declare_topology"`
		BindQueue       bool `envconfig:"RABBITMQ_BIND_QUEUE" default:"true" json:"bind_queue"`

		// SleepOnError throttles repeated broker failures; FailFast disables
		// the throttle and escalates them instead.
		SleepOnError time.Duration `envconfig:"RABBITMQ_SLEEP_ON_ERROR" default:"5s" json:"sleep_on_error"`
		FailFast     bool          `envconfig:"RABBITMQ_FAIL_FAST" default:"false" json:"fail_fast"`

		// QueueOverrides holds per-queue option overrides as a JSON object
		// keyed "queue_<name>".
		QueueOverrides string `envconfig:"RABBITMQ_QUEUE_OVERRIDES" default:"" json:"queue_overrides,omitempty"`
	}

	WorkerConfig struct {
		PollInterval    time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"1s" json:"poll_interval"`
		RetryDelay      time.Duration `envconfig:"WORKER_RETRY_DELAY" default:"30s" json:"retry_delay"`
		MaxAttempts     int           `envconfig:"WORKER_MAX_ATTEMPTS" default:"10" json:"max_attempts"`
		ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s" json:"shutdown_timeout"`
	}

	BackoffConfig struct {
		// BaseDelay is the amount of time to back off after the first empty
		// poll.
		BaseDelay time.Duration `envconfig:"BACKOFF_BASE_DELAY" default:"1s" json:"base_delay"`
		// Multiplier is the factor with which to multiply backoffs after a
		// failed retry. Should ideally be greater than 1.
		Multiplier float64 `envconfig:"BACKOFF_MULTIPLIER" default:"1.6" json:"multiplier"`
		// Jitter is the factor with which backoffs are randomized.
		Jitter float64 `envconfig:"BACKOFF_JITTER" default:"0.2" json:"jitter"`
		// MaxDelay is the upper bound of backoff delay.
		MaxDelay time.Duration `envconfig:"BACKOFF_MAX_DELAY" default:"10s" json:"max_delay"`
	}
)
