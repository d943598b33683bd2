package queue

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// SleepDisabled turns the recovery throttle off: connection failures escalate
// as a *ConnectionError instead of being logged, slept on and swallowed.
const SleepDisabled = time.Duration(-1)

const defaultSleepOnError = 5 * time.Second

// Config is used to establish a connection with a RabbitMQ server and to
// describe the default destination topology for the client.
type Config struct {
	Scheme   string
	Username string
	Password string
	Host     string
	Port     int
	Vhost    string

	// Queue is the default destination used when an operation is called
	// without an explicit queue name.
	Queue string

	QueueOptions    QueueOptions
	ExchangeOptions ExchangeOptions

	// SleepOnError throttles repeated failures against an unreachable broker.
	// Zero selects the default of 5s; SleepDisabled (or any negative value)
	// selects fail-fast escalation.
	SleepOnError time.Duration
}

// sleepOnError returns the effective throttle duration and whether throttling
// is enabled at all.
func (c Config) sleepOnError() (time.Duration, bool) {
	switch {
	case c.SleepOnError < 0:
		return 0, false
	case c.SleepOnError == 0:
		return defaultSleepOnError, true
	default:
		return c.SleepOnError, true
	}
}

// QueueOptions maps to AMQP queue.declare plus the driver-level declare and
// bind toggles.
type QueueOptions struct {
	Passive    bool
	Durable    bool
	Exclusive  bool
	AutoDelete bool
	Args       amqp.Table

	// Declare controls whether the client declares the queue during topology
	// resolution; Bind controls whether it is bound to the resolved exchange
	// under the queue's own name as routing key.
	Declare bool
	Bind    bool
}

// ExchangeOptions maps to AMQP exchange.declare plus the driver-level declare
// toggle.
type ExchangeOptions struct {
	// Name defaults to the destination queue name, giving every queue its own
	// exchange unless one is explicitly shared.
	Name       string
	Kind       string
	Passive    bool
	Durable    bool
	AutoDelete bool
	Args       amqp.Table

	Declare bool
}

// DefaultQueueOptions returns the baseline per-queue options: a durable queue
// that is declared and bound on first use.
func DefaultQueueOptions() QueueOptions {
	return QueueOptions{
		Durable: true,
		Declare: true,
		Bind:    true,
	}
}

// DefaultExchangeOptions returns the baseline exchange options: a durable
// direct exchange declared on first use, named after the destination queue.
func DefaultExchangeOptions() ExchangeOptions {
	return ExchangeOptions{
		Kind:    amqp.ExchangeDirect,
		Durable: true,
		Declare: true,
	}
}

// OptionsProvider resolves per-queue option overrides, allowing multiple
// logical queues on one connection to carry different durability or binding
// behavior. Implementations are queried with the raw queue name.
type OptionsProvider interface {
	QueueOptions(queueName string) (QueueOptions, bool)
}

// OptionsMap is an OptionsProvider backed by a plain map keyed with
// OverrideKey values.
type OptionsMap map[string]QueueOptions

func (m OptionsMap) QueueOptions(queueName string) (QueueOptions, bool) {
	opts, ok := m[OverrideKey(queueName)]

	return opts, ok
}

// OverrideKey returns the configuration key that overrides options for the
// given queue.
func OverrideKey(queueName string) string {
	return "queue_" + queueName
}

func getURL(cfg Config) string {
	uri := amqp.URI{
		Scheme:   cfg.Scheme,
		Username: cfg.Username,
		Password: cfg.Password,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Vhost:    cfg.Vhost,
	}

	return uri.String()
}
