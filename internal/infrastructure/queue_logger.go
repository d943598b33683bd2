package infrastructure

import (
	"github.com/rs/zerolog"

	"github.com/architeacher/amqp-jobqueue/pkg/queue"
)

// QueueLogger bridges the structured logger to the queue client's
// logging interface.
type QueueLogger struct {
	logger *Logger
}

func NewQueueLogger(logger *Logger) *QueueLogger {
	return &QueueLogger{logger: logger}
}

func (l *QueueLogger) Debug() queue.LogEvent {
	return logEvent{event: l.logger.Logger.Debug()}
}

func (l *QueueLogger) Info() queue.LogEvent {
	return logEvent{event: l.logger.Logger.Info()}
}

func (l *QueueLogger) Warn() queue.LogEvent {
	return logEvent{event: l.logger.Logger.Warn()}
}

func (l *QueueLogger) Error() queue.LogEvent {
	return logEvent{event: l.logger.Logger.Error()}
}

type logEvent struct {
	event *zerolog.Event
}

func (e logEvent) Msg(msg string) {
	e.event.Msg(msg)
}

func (e logEvent) Err(err error) queue.LogEvent {
	return logEvent{event: e.event.Err(err)}
}

func (e logEvent) Str(key, value string) queue.LogEvent {
	return logEvent{event: e.event.Str(key, value)}
}

func (e logEvent) Int(key string, value int) queue.LogEvent {
	return logEvent{event: e.event.Int(key, value)}
}
