package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// delivery is the consumer-side slice of amqp.Delivery the Job handle needs;
// it exists for test doubles.
type delivery interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
	Reject(requeue bool) error
	GetHeaders() amqp.Table
	GetBody() []byte
}

// amqpDeliveryAdapter adapts amqp.Delivery to the delivery interface.
type amqpDeliveryAdapter struct {
	amqp.Delivery
}

func (a *amqpDeliveryAdapter) GetHeaders() amqp.Table {
	return a.Headers
}

func (a *amqpDeliveryAdapter) GetBody() []byte {
	return a.Body
}

func newAMQPDeliveryAdapter(d amqp.Delivery) delivery {
	return &amqpDeliveryAdapter{Delivery: d}
}

// Job is a message received by DequeueOnce, bound to the client and queue it
// came from. It owns the positive or negative acknowledgement of the
// underlying delivery.
type Job struct {
	client   *Client
	queue    string
	delivery delivery

	payload Payload
}

func newJob(client *Client, queue string, d delivery) (*Job, error) {
	payload, err := parsePayload(d.GetBody())
	if err != nil {
		return nil, err
	}

	return &Job{
		client:   client,
		queue:    queue,
		delivery: d,
		payload:  payload,
	}, nil
}

// ID returns the job's unique payload id.
func (j *Job) ID() string {
	return j.payload.ID
}

// Name returns the job type the host framework dispatches on.
func (j *Job) Name() string {
	return j.payload.Job
}

// Payload returns the decoded payload envelope.
func (j *Job) Payload() Payload {
	return j.payload
}

// Body returns the raw message body.
func (j *Job) Body() []byte {
	return j.delivery.GetBody()
}

// Attempts returns how many times this job has been released for retry. The
// redelivery header takes precedence; the envelope counter is the fallback
// for messages produced by hosts that only serialize the body.
func (j *Job) Attempts() int {
	headers := j.delivery.GetHeaders()

	val, ok := headers[retryCountHeader]
	if !ok {
		return j.payload.Attempts
	}

	strVal, ok := val.(string)
	if !ok {
		return j.payload.Attempts
	}

	attempts, err := strconv.Atoi(strVal)
	if err != nil {
		return j.payload.Attempts
	}

	return attempts
}

// Ack positively acknowledges the job.
func (j *Job) Ack() error {
	return j.delivery.Ack(false)
}

// Reject negatively acknowledges the job without requeueing it.
func (j *Job) Reject() error {
	return j.delivery.Reject(false)
}

// Release puts the job back on its queue for retry after delay with an
// incremented attempt counter, then acknowledges the original delivery. When
// the re-publish is throttled away by the recovery policy, the original
// delivery is left unacknowledged so the broker redelivers it later.
func (j *Job) Release(ctx context.Context, delay time.Duration) (string, error) {
	attempts := j.Attempts() + 1

	id, err := j.client.Release(ctx, delay, j.payload, j.queue, attempts)
	if err != nil {
		return "", err
	}

	if id == "" {
		return "", nil
	}

	if err := j.delivery.Ack(false); err != nil {
		return "", fmt.Errorf("failed to ack the released job: %w", err)
	}

	return id, nil
}
