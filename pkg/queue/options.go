package queue

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
)

type connectionOptions struct {
	logger    Logger
	overrides OptionsProvider
	breaker   *gobreaker.Settings
	onRecover func(action string)
}

type ConnectionOption func(options *connectionOptions)

// WithLogger returns a ConnectionOption which sets the logger used by the
// recovery policy when a connection is created.
func WithLogger(l Logger) ConnectionOption {
	return func(o *connectionOptions) {
		o.logger = l
	}
}

// WithOptionsProvider returns a ConnectionOption which sets the per-queue
// override source consulted during topology resolution.
func WithOptionsProvider(p OptionsProvider) ConnectionOption {
	return func(o *connectionOptions) {
		o.overrides = p
	}
}

// WithCircuitBreaker returns a ConnectionOption which routes every broker
// round-trip through a circuit breaker with the given settings. An open
// breaker surfaces as a connection error and flows through the recovery
// policy like any other broker failure.
func WithCircuitBreaker(settings gobreaker.Settings) ConnectionOption {
	return func(o *connectionOptions) {
		o.breaker = &settings
	}
}

// WithRecoveryHook returns a ConnectionOption which registers a callback
// invoked with the failing action name every time the recovery policy handles
// a connection error, whether it throttles or escalates. Topology conflicts
// do not trigger it.
func WithRecoveryHook(hook func(action string)) ConnectionOption {
	return func(o *connectionOptions) {
		o.onRecover = hook
	}
}

// deliveryOptions carries the per-send overrides. Every field is a direct
// pass-through: malformed values are rejected by the broker, not here.
type deliveryOptions struct {
	correlationID   string
	routingKey      string
	contentEncoding string
	priority        *uint8
	expiration      *time.Duration
	delay           time.Duration
	attempts        *int
	headers         amqp.Table
	messageID       string
	messageType     string
	replyTo         string
	appID           string
}

type DeliveryOption func(options *deliveryOptions)

// WithCorrelationID sets the correlation id for this send, overriding both
// the client-level override and the generated default.
func WithCorrelationID(id string) DeliveryOption {
	return func(o *deliveryOptions) {
		o.correlationID = id
	}
}

// WithRoutingKey overrides the routing key, which otherwise defaults to the
// resolved destination queue's name.
func WithRoutingKey(key string) DeliveryOption {
	return func(o *deliveryOptions) {
		o.routingKey = key
	}
}

// WithContentEncoding sets the content encoding property of the message.
func WithContentEncoding(encoding string) DeliveryOption {
	return func(o *deliveryOptions) {
		o.contentEncoding = encoding
	}
}

// WithPriority sets the message priority.
func WithPriority(priority uint8) DeliveryOption {
	return func(o *deliveryOptions) {
		o.priority = &priority
	}
}

// WithExpiration sets a per-message TTL.
func WithExpiration(ttl time.Duration) DeliveryOption {
	return func(o *deliveryOptions) {
		o.expiration = &ttl
	}
}

// WithDelay defers the message's visibility to consumers using the broker's
// native delayed delivery, expressed in milliseconds on the wire.
func WithDelay(delay time.Duration) DeliveryOption {
	return func(o *deliveryOptions) {
		o.delay = delay
	}
}

// WithAttempts stamps the redelivery counter header consumed by the worker
// side to know how many times a job has been released for retry.
func WithAttempts(attempts int) DeliveryOption {
	return func(o *deliveryOptions) {
		o.attempts = &attempts
	}
}

// WithHeader adds a single application header to the message.
func WithHeader(key string, value any) DeliveryOption {
	return func(o *deliveryOptions) {
		if o.headers == nil {
			o.headers = amqp.Table{}
		}
		o.headers[key] = value
	}
}

// WithHeaders merges the given application headers into the message.
func WithHeaders(headers amqp.Table) DeliveryOption {
	return func(o *deliveryOptions) {
		if o.headers == nil {
			o.headers = amqp.Table{}
		}
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// WithMessageID sets the message id property.
func WithMessageID(id string) DeliveryOption {
	return func(o *deliveryOptions) {
		o.messageID = id
	}
}

// WithMessageType sets the message type property.
func WithMessageType(messageType string) DeliveryOption {
	return func(o *deliveryOptions) {
		o.messageType = messageType
	}
}

// WithReplyTo sets the reply-to property.
func WithReplyTo(replyTo string) DeliveryOption {
	return func(o *deliveryOptions) {
		o.replyTo = replyTo
	}
}

// WithAppID sets the application id property.
func WithAppID(appID string) DeliveryOption {
	return func(o *deliveryOptions) {
		o.appID = appID
	}
}
