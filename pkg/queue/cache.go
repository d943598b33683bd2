package queue

// topologyCache tracks which exchange and queue names have already been
// declared on the live connection, so resolution can skip the broker
// round-trip. A name enters a set only after a successful declare call; the
// cache is dropped together with the connection. Never revalidates that
// repeated declares carry the same arguments as the first one.
type topologyCache struct {
	exchanges map[string]struct{}
	queues    map[string]struct{}
}

func newTopologyCache() *topologyCache {
	return &topologyCache{
		exchanges: make(map[string]struct{}),
		queues:    make(map[string]struct{}),
	}
}

func (c *topologyCache) isExchangeDeclared(name string) bool {
	_, ok := c.exchanges[name]

	return ok
}

func (c *topologyCache) markExchangeDeclared(name string) {
	c.exchanges[name] = struct{}{}
}

func (c *topologyCache) isQueueDeclared(name string) bool {
	_, ok := c.queues[name]

	return ok
}

func (c *topologyCache) markQueueDeclared(name string) {
	c.queues[name] = struct{}{}
}
