package ports

import (
	"context"
	"time"

	"github.com/architeacher/amqp-jobqueue/pkg/queue"
)

// Dispatcher defines the interface for pushing jobs to the broker.
type Dispatcher interface {
	Enqueue(ctx context.Context, job string, data any, opts ...queue.DeliveryOption) (string, error)
	EnqueueDelayed(ctx context.Context, delay time.Duration, job string, data any, opts ...queue.DeliveryOption) (string, error)
	EnqueueAt(ctx context.Context, at time.Time, job string, data any, opts ...queue.DeliveryOption) (string, error)
	Size(ctx context.Context, queueName string) (int, error)
}

// Consumer defines the interface for pulling jobs from the broker.
type Consumer interface {
	DequeueOnce(ctx context.Context, queueName string) (*queue.Job, error)
	Size(ctx context.Context, queueName string) (int, error)
}
