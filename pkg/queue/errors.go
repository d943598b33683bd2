package queue

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrNotConnected describes that an operation was attempted before
	// Connect, or after Close.
	ErrNotConnected = errors.New("not connected to RabbitMQ")
)

// TopologyConflictError reports that an exchange or queue already exists on
// the broker with incompatible arguments. It indicates a configuration
// mismatch that will not self-resolve on retry, so it is never swallowed by
// the recovery policy.
type TopologyConflictError struct {
	Entity string
	Name   string
	Err    error
}

func (e *TopologyConflictError) Error() string {
	return fmt.Sprintf("%s %q already declared with different arguments: %v", e.Entity, e.Name, e.Err)
}

func (e *TopologyConflictError) Unwrap() error {
	return e.Err
}

// ConnectionError is returned by client operations when SleepDisabled selects
// fail-fast recovery. Supervised processes are expected to treat it as fatal
// and restart.
type ConnectionError struct {
	Action string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("queue operation %q failed: %v", e.Action, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// isPreconditionFailed reports whether err is the broker's 406 reply, raised
// when a declare call does not match the entity that already exists.
func isPreconditionFailed(err error) bool {
	var amqpErr *amqp.Error

	return errors.As(err, &amqpErr) && amqpErr.Code == amqp.PreconditionFailed
}
