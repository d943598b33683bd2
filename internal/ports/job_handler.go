package ports

import (
	"context"

	"github.com/architeacher/amqp-jobqueue/pkg/queue"
)

// JobHandler defines the interface for processing dequeued jobs.
type JobHandler interface {
	Handle(ctx context.Context, job *queue.Job) error
}

// JobHandlerFunc adapts a function to the JobHandler interface.
type JobHandlerFunc func(ctx context.Context, job *queue.Job) error

func (f JobHandlerFunc) Handle(ctx context.Context, job *queue.Job) error {
	return f(ctx, job)
}
