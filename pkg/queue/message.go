package queue

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	contentType = "application/json"

	// retryCountHeader carries the redelivery counter between producer and
	// consumer.
	retryCountHeader = "x-retry-count"

	// delayHeader is the delayed-message plugin's per-message delay in
	// milliseconds; it is honored by exchanges of type x-delayed-message.
	delayHeader = "x-delay"
)

// buildPublishing turns a raw payload plus per-send options into a fully
// populated outbound message. The content type and the persistent delivery
// mode are fixed; this driver never sends transient messages. Everything
// else is set only when the corresponding option is present.
func buildPublishing(payload []byte, o deliveryOptions) amqp.Publishing {
	publishing := amqp.Publishing{
		ContentType:   contentType,
		Body:          payload,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now(),
		CorrelationId: o.correlationID,
	}

	if publishing.CorrelationId == "" {
		publishing.CorrelationId = uuid.NewString()
	}

	if o.contentEncoding != "" {
		publishing.ContentEncoding = o.contentEncoding
	}

	if o.priority != nil {
		publishing.Priority = *o.priority
	}

	if o.expiration != nil {
		publishing.Expiration = strconv.FormatInt(o.expiration.Milliseconds(), 10)
	}

	if o.messageID != "" {
		publishing.MessageId = o.messageID
	}

	if o.messageType != "" {
		publishing.Type = o.messageType
	}

	if o.replyTo != "" {
		publishing.ReplyTo = o.replyTo
	}

	if o.appID != "" {
		publishing.AppId = o.appID
	}

	headers := amqp.Table{}
	for k, v := range o.headers {
		headers[k] = v
	}

	if o.attempts != nil {
		headers[retryCountHeader] = strconv.Itoa(*o.attempts)
	}

	if o.delay > 0 {
		headers[delayHeader] = o.delay.Milliseconds()
	}

	if len(headers) > 0 {
		publishing.Headers = headers
	}

	return publishing
}
