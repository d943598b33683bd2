// Package queue implements a job-queue driver on top of RabbitMQ, hiding
// AMQP semantics (exchanges, routing keys, delivery modes, delayed delivery)
// behind a small push/pop style surface.
//
// # Overview
//
// The Client exposes five operations (EnqueueRaw, EnqueueDelayed plus the
// EnqueueAt and Enqueue conveniences, Release, DequeueOnce and Size) shaped
// after a generic queue-driver contract, so a host framework can treat this
// adapter interchangeably with other transport drivers. Destination topology
// is declared idempotently on first use and cached for the lifetime of the
// connection; outbound messages are always persistent JSON with a correlation
// id, and connection failures are funneled through a single recovery policy.
//
// # Topology
//
// Every queue gets its own direct exchange named after it unless the
// configuration names a shared one. Declarations hit the broker at most once
// per name and connection. Re-declaring an entity that already exists with
// different arguments is surfaced as a *TopologyConflictError, a distinct
// failure mode that indicates misconfiguration and is never retried.
//
// Per-queue overrides let multiple logical queues share one connection with
// different durability or binding behavior: the resolver consults an
// OptionsProvider with keys of the form "queue_<name>".
//
// # Delayed delivery
//
// Delays are realized broker-natively through the delayed-message plugin: the
// per-message delay travels in the x-delay header in milliseconds, honored by
// exchanges declared with the x-delayed-message type. Configure the exchange
// kind and its x-delayed-type argument accordingly when using delays.
//
// # Error recovery
//
// Broker outages are typically transient. On a connection failure the client
// logs the failing action, sleeps the configured SleepOnError (5s by default)
// to throttle repeated failures, and returns a sentinel result (an empty id
// or a nil job) instead of an error. Operators that prefer fail-fast
// behavior for supervised processes set SleepDisabled, turning the same
// failures into *ConnectionError values.
//
// # Basic usage
//
//	cfg := queue.Config{
//		Scheme:          "amqp",
//		Username:        "guest",
//		Password:        "guest",
//		Host:            "localhost",
//		Port:            5672,
//		Vhost:           "/",
//		Queue:           "jobs",
//		QueueOptions:    queue.DefaultQueueOptions(),
//		ExchangeOptions: queue.DefaultExchangeOptions(),
//	}
//
//	client := queue.NewClient(cfg)
//	if err := client.Connect(); err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	id, err := client.Enqueue(ctx, "emails.send", map[string]any{"to": "user@example.com"})
//
//	job, err := client.DequeueOnce(ctx, "")
//	if job != nil {
//		// process, then job.Ack(), job.Reject() or job.Release(ctx, 30*time.Second)
//	}
//
// # Concurrency
//
// A Client holds one connection and one channel and is designed for one
// consumer loop or one request-handling context at a time. DequeueOnce never
// blocks waiting for a message; it polls and returns immediately.
package queue
