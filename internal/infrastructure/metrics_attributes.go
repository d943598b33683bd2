package infrastructure

import (
	"strconv"

	"go.opentelemetry.io/otel/attribute"
)

const (
	queueNameKey = "queue.name"
	statusKey    = "status"
	outcomeKey   = "outcome"
	actionKey    = "action"
	delayedKey   = "delayed"
)

func QueueNameAttr(queueName string) attribute.KeyValue {
	return attribute.String(queueNameKey, queueName)
}

func StatusAttr(status string) attribute.KeyValue {
	return attribute.String(statusKey, status)
}

func OutcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(outcomeKey, outcome)
}

func ActionAttr(action string) attribute.KeyValue {
	return attribute.String(actionKey, action)
}

func DelayedAttr(delayed bool) attribute.KeyValue {
	return attribute.String(delayedKey, strconv.FormatBool(delayed))
}
