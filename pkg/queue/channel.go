package queue

import (
	"io"
	"sync"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is used mainly to be able to generate mocks for the Channel behavior.
type channel interface {
	io.Closer

	exchangeDeclare(name, kind string, passive, durable, autoDelete bool, args amqp.Table) error
	queueDeclare(name string, passive, durable, exclusive, autoDelete bool, args amqp.Table) (amqp.Queue, error)
	queueBind(name, key, exchange string, args amqp.Table) error

	publish(exchange, key string, msg amqp.Publishing) error
	get(queue string) (amqp.Delivery, bool, error)
	inspect(queue string) (amqp.Queue, error)
}

// amqpChannel is used mainly to be able to generate mocks for the AMQP behavior.
type amqpChannel interface {
	io.Closer

	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	ExchangeDeclarePassive(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	QueueInspect(name string) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
}

// ChannelWrapper is a wrapper around the amqp091-go channel, serializing
// access from the client's operations.
type ChannelWrapper struct {
	amqpChan amqpChannel

	logger Logger

	mutex  *sync.Mutex
	closed atomic.Bool
}

// Close is a wrapper around amqp091-go.Channel.Close, which closes a channel.
func (ch *ChannelWrapper) Close() error {
	defer ch.mutex.Unlock()
	ch.mutex.Lock()

	if ch.isClosed() {
		return amqp.ErrClosed
	}

	ch.closed.Store(true)

	return ch.amqpChan.Close()
}

func (ch *ChannelWrapper) exchangeDeclare(name, kind string, passive, durable, autoDelete bool, args amqp.Table) error {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	if passive {
		return ch.amqpChan.ExchangeDeclarePassive(name, kind, durable, autoDelete, false, false, args)
	}

	return ch.amqpChan.ExchangeDeclare(name, kind, durable, autoDelete, false, false, args)
}

func (ch *ChannelWrapper) queueDeclare(name string, passive, durable, exclusive, autoDelete bool, args amqp.Table) (amqp.Queue, error) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	if passive {
		return ch.amqpChan.QueueDeclarePassive(name, durable, autoDelete, exclusive, false, args)
	}

	return ch.amqpChan.QueueDeclare(name, durable, autoDelete, exclusive, false, args)
}

func (ch *ChannelWrapper) queueBind(name, key, exchange string, args amqp.Table) error {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	return ch.amqpChan.QueueBind(name, key, exchange, false, args)
}

func (ch *ChannelWrapper) publish(exchange, key string, msg amqp.Publishing) error {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	return ch.amqpChan.Publish(exchange, key, false, false, msg)
}

// get performs a single non-blocking basic.get. Acknowledgement is left to
// the returned delivery's owner.
func (ch *ChannelWrapper) get(queue string) (amqp.Delivery, bool, error) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	return ch.amqpChan.Get(queue, false)
}

func (ch *ChannelWrapper) inspect(queue string) (amqp.Queue, error) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	return ch.amqpChan.QueueInspect(queue)
}

func (ch *ChannelWrapper) isClosed() bool {
	return ch.closed.Load()
}
