package config

import (
	"encoding/json"
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/architeacher/amqp-jobqueue/pkg/queue"
)

// Init config from environment variables.
func Init() (*ServiceConfig, error) {
	cfg := &ServiceConfig{}

	err := envconfig.Process("", cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service configuration: %w", err)
	}

	if len(ServiceVersion) != 0 {
		cfg.AppConfig.ServiceVersion = ServiceVersion
	}

	if len(CommitSHA) != 0 {
		cfg.AppConfig.CommitSHA = CommitSHA
	}

	return cfg, nil
}

// ClientConfig maps the environment-driven queue settings onto the driver's
// connection configuration.
func (c QueueConfig) ClientConfig() queue.Config {
	queueOpts := queue.DefaultQueueOptions()
	queueOpts.Durable = c.Durable
	queueOpts.AutoDelete = c.AutoDelete
	queueOpts.Declare = c.DeclareTopology
	queueOpts.Bind = c.BindQueue

	exchangeOpts := queue.DefaultExchangeOptions()
	exchangeOpts.Name = c.ExchangeName
	exchangeOpts.Kind = c.ExchangeKind
	exchangeOpts.Durable = c.Durable
	exchangeOpts.AutoDelete = c.AutoDelete
	exchangeOpts.Declare = c.DeclareTopology

	sleepOnError := c.SleepOnError
	if c.FailFast {
		sleepOnError = queue.SleepDisabled
	}

	return queue.Config{
		Scheme:          "amqp",
		Username:        c.Username,
		Password:        c.Password,
		Host:            c.Host,
		Port:            c.Port,
		Vhost:           c.VirtualHost,
		Queue:           c.QueueName,
		QueueOptions:    queueOpts,
		ExchangeOptions: exchangeOpts,
		SleepOnError:    sleepOnError,
	}
}

// Overrides parses the per-queue override JSON into the provider consulted
// during topology resolution. An empty setting yields no overrides.
func (c QueueConfig) Overrides() (queue.OptionsMap, error) {
	if c.QueueOverrides == "" {
		return nil, nil
	}

	overrides := queue.OptionsMap{}
	if err := json.Unmarshal([]byte(c.QueueOverrides), &overrides); err != nil {
		return nil, fmt.Errorf("unable to parse queue overrides: %w", err)
	}

	return overrides, nil
}
