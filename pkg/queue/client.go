package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
)

// Client is the public queue surface: enqueue now, enqueue delayed, release
// for retry, dequeue once, and size queries, all against a single broker
// connection. One Client instance is meant to be used from one logical
// execution context at a time.
type Client struct {
	cfg       Config
	conn      *amqp.Connection
	channel   channel
	cache     *topologyCache
	overrides OptionsProvider
	logger    Logger
	breaker   *gobreaker.CircuitBreaker
	onRecover func(action string)

	// correlationID overrides the generated id of upcoming sends until it is
	// changed again; empty means every send gets a fresh one.
	correlationID string

	sleep func(time.Duration)

	mutex  sync.RWMutex
	closed bool
}

// NewClient creates a queue client for the given configuration. Connect must
// be called before any operation.
func NewClient(cfg Config, opts ...ConnectionOption) *Client {
	options := &connectionOptions{}
	for _, opt := range opts {
		opt(options)
	}

	client := &Client{
		cfg:       cfg,
		cache:     newTopologyCache(),
		overrides: options.overrides,
		logger:    options.logger,
		onRecover: options.onRecover,
		sleep:     time.Sleep,
	}

	if options.breaker != nil {
		client.breaker = gobreaker.NewCircuitBreaker(*options.breaker)
	}

	return client
}

// Connect establishes a connection to RabbitMQ and opens the channel all
// operations share. The declared-set is reset: a fresh connection knows
// nothing about broker topology.
func (c *Client) Connect() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.conn != nil && !c.conn.IsClosed() {
		return nil
	}

	conn, err := amqp.Dial(getURL(c.cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	amqpCh, err := conn.Channel()
	if err != nil {
		conn.Close()

		return fmt.Errorf("failed to open channel: %w", err)
	}

	c.conn = conn
	c.channel = &ChannelWrapper{
		amqpChan: amqpCh,
		logger:   c.logger,
		mutex:    &sync.Mutex{},
	}
	c.cache = newTopologyCache()
	c.closed = false

	if c.logger != nil {
		c.logger.Info().Msg("successfully connected to RabbitMQ")
	}

	return nil
}

// Close closes the channel and the connection to RabbitMQ.
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.closed = true

	if c.channel != nil {
		c.channel.Close()
	}

	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}

	return nil
}

// IsConnected returns true if the client can talk to RabbitMQ.
func (c *Client) IsConnected() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.channel == nil || c.closed {
		return false
	}

	return c.conn == nil || !c.conn.IsClosed()
}

// CorrelationID returns the correlation id override applied to upcoming
// sends, or empty when each send generates its own.
func (c *Client) CorrelationID() string {
	return c.correlationID
}

// SetCorrelationID overrides the correlation id of upcoming sends. An empty
// id restores the generated default.
func (c *Client) SetCorrelationID(id string) {
	c.correlationID = id
}

// Enqueue serializes the job into the payload envelope and publishes it to
// the default queue. It returns the message's correlation id, or an empty id
// when the broker was unavailable and the failure was throttled.
func (c *Client) Enqueue(ctx context.Context, job string, data any, opts ...DeliveryOption) (string, error) {
	payload, err := NewPayload(job, data)
	if err != nil {
		return "", err
	}

	return c.EnqueueRaw(ctx, payload, "", opts...)
}

// EnqueueDelayed publishes the job with its visibility deferred by delay.
func (c *Client) EnqueueDelayed(ctx context.Context, delay time.Duration, job string, data any, opts ...DeliveryOption) (string, error) {
	payload, err := NewPayload(job, data)
	if err != nil {
		return "", err
	}

	return c.EnqueueRaw(ctx, payload, "", append(opts, WithDelay(delay))...)
}

// EnqueueAt publishes the job with its visibility deferred until the given
// absolute time. A time in the past enqueues immediately.
func (c *Client) EnqueueAt(ctx context.Context, at time.Time, job string, data any, opts ...DeliveryOption) (string, error) {
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	return c.EnqueueDelayed(ctx, delay, job, data, opts...)
}

// Release puts a consumed job back on its queue for retry after delay,
// stamping the attempt counter into both the envelope and the redelivery
// header consumed by the worker side.
func (c *Client) Release(ctx context.Context, delay time.Duration, payload Payload, queueName string, attempts int, opts ...DeliveryOption) (string, error) {
	payload.Attempts = attempts

	body, err := payload.marshal()
	if err != nil {
		return "", err
	}

	return c.EnqueueRaw(ctx, body, queueName, append(opts, WithDelay(delay), WithAttempts(attempts))...)
}

// EnqueueRaw resolves the destination topology, builds the outbound message
// and publishes it. On success it returns the message's correlation id. On a
// connection failure the recovery policy runs and an empty id with a nil
// error is returned, so producers degrade gracefully under a broker outage;
// with SleepDisabled the failure escalates as a *ConnectionError instead.
// Topology conflicts always propagate.
func (c *Client) EnqueueRaw(_ context.Context, payload []byte, queueName string, opts ...DeliveryOption) (string, error) {
	o := deliveryOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.correlationID == "" {
		o.correlationID = c.correlationID
	}

	target, err := c.resolveTopology(queueName)
	if err != nil {
		return "", c.recover("enqueue", err)
	}

	routingKey := o.routingKey
	if routingKey == "" {
		routingKey = target.queue
	}

	publishing := buildPublishing(payload, o)

	err = c.roundTrip(func() error {
		return c.channel.publish(target.exchange, routingKey, publishing)
	})
	if err != nil {
		return "", c.recover("enqueue", err)
	}

	return publishing.CorrelationId, nil
}

// DequeueOnce performs a single non-blocking receive from the resolved queue.
// It returns a nil job when nothing is pending; blocking wait strategies
// belong to the caller's consumer loop. The returned Job owns the
// acknowledgement of the underlying delivery.
func (c *Client) DequeueOnce(_ context.Context, queueName string) (*Job, error) {
	target, err := c.resolveTopology(queueName)
	if err != nil {
		return nil, c.recover("dequeue", err)
	}

	var (
		d  amqp.Delivery
		ok bool
	)

	err = c.roundTrip(func() error {
		var getErr error
		d, ok, getErr = c.channel.get(target.queue)

		return getErr
	})
	if err != nil {
		return nil, c.recover("dequeue", err)
	}

	if !ok {
		return nil, nil
	}

	job, err := newJob(c, target.queue, newAMQPDeliveryAdapter(d))
	if err != nil {
		// Not a broker failure: the body is not a payload envelope. Drop it
		// rather than poison the queue with endless redeliveries.
		if c.logger != nil {
			c.logger.Error().Err(err).Str("queue", target.queue).Msg("discarding malformed message")
		}
		d.Reject(false)

		return nil, nil
	}

	return job, nil
}

// Size reports the number of messages currently ready on the resolved queue.
// Resolution declares the queue first, matching the declare semantics of the
// other operations.
func (c *Client) Size(_ context.Context, queueName string) (int, error) {
	target, err := c.resolveTopology(queueName)
	if err != nil {
		return 0, c.recover("size", err)
	}

	var state amqp.Queue

	err = c.roundTrip(func() error {
		var inspectErr error
		state, inspectErr = c.channel.inspect(target.queue)

		return inspectErr
	})
	if err != nil {
		return 0, c.recover("size", err)
	}

	return state.Messages, nil
}

// roundTrip funnels a broker call through the circuit breaker when one is
// configured.
func (c *Client) roundTrip(call func() error) error {
	if c.breaker == nil {
		return call()
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, call()
	})

	return err
}

// recover implements the shared error-recovery policy. Topology conflicts
// propagate untouched since they will not self-resolve on retry. Anything
// else is logged with the failing action, then either throttled (sleep, nil
// error, sentinel result for the caller) or escalated as a *ConnectionError
// when throttling is disabled.
func (c *Client) recover(action string, err error) error {
	var conflict *TopologyConflictError
	if errors.As(err, &conflict) {
		return err
	}

	if c.logger != nil {
		c.logger.Error().Err(err).Str("action", action).Msg("queue operation failed")
	}

	if c.onRecover != nil {
		c.onRecover(action)
	}

	delay, throttle := c.cfg.sleepOnError()
	if !throttle {
		return &ConnectionError{Action: action, Err: err}
	}

	c.sleep(delay)

	return nil
}
