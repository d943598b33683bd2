package queue

// topology is the result of resolving a destination: the effective queue and
// exchange names, ready for publishing or receiving.
type topology struct {
	queue    string
	exchange string
}

// resolveTopology ensures the destination exchange and queue exist for the
// given queue name (the configured default when empty), declaring and binding
// them on first use. Declares hit the broker at most once per name and
// connection; later calls reuse the cached result even if the resolved
// options have changed in the meantime.
func (c *Client) resolveTopology(queueName string) (topology, error) {
	if !c.IsConnected() {
		return topology{}, ErrNotConnected
	}

	if queueName == "" {
		queueName = c.cfg.Queue
	}

	exchangeOpts := c.cfg.ExchangeOptions

	exchangeName := exchangeOpts.Name
	if exchangeName == "" {
		exchangeName = queueName
	}

	if exchangeOpts.Declare && !c.cache.isExchangeDeclared(exchangeName) {
		err := c.roundTrip(func() error {
			return c.channel.exchangeDeclare(
				exchangeName,
				exchangeOpts.Kind,
				exchangeOpts.Passive,
				exchangeOpts.Durable,
				exchangeOpts.AutoDelete,
				exchangeOpts.Args,
			)
		})
		if err != nil {
			if isPreconditionFailed(err) {
				return topology{}, &TopologyConflictError{Entity: "exchange", Name: exchangeName, Err: err}
			}

			return topology{}, err
		}

		c.cache.markExchangeDeclared(exchangeName)
	}

	queueOpts := c.queueOptionsFor(queueName)

	if queueOpts.Declare && !c.cache.isQueueDeclared(queueName) {
		err := c.roundTrip(func() error {
			_, declareErr := c.channel.queueDeclare(
				queueName,
				queueOpts.Passive,
				queueOpts.Durable,
				queueOpts.Exclusive,
				queueOpts.AutoDelete,
				queueOpts.Args,
			)

			return declareErr
		})
		if err != nil {
			if isPreconditionFailed(err) {
				return topology{}, &TopologyConflictError{Entity: "queue", Name: queueName, Err: err}
			}

			return topology{}, err
		}

		if queueOpts.Bind {
			// The queue's own name doubles as the routing key.
			err := c.roundTrip(func() error {
				return c.channel.queueBind(queueName, queueName, exchangeName, nil)
			})
			if err != nil {
				return topology{}, err
			}
		}

		c.cache.markQueueDeclared(queueName)
	}

	return topology{queue: queueName, exchange: exchangeName}, nil
}

// queueOptionsFor applies the "queue_<name>" override when one is configured,
// falling back to the client's baseline options.
func (c *Client) queueOptionsFor(queueName string) QueueOptions {
	if c.overrides != nil {
		if opts, ok := c.overrides.QueueOptions(queueName); ok {
			return opts
		}
	}

	return c.cfg.QueueOptions
}
