package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/architeacher/amqp-jobqueue/internal/runtime"
	"github.com/architeacher/amqp-jobqueue/pkg/queue"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jobqueue",
		Short: "Job queue client",
		Long:  "Command-line interface for pushing jobs to and inspecting AMQP backed job queues",
	}

	rootCmd.AddCommand(newEnqueueCommand())
	rootCmd.AddCommand(newSizeCommand())

	return rootCmd
}

func newEnqueueCommand() *cobra.Command {
	var (
		delay         time.Duration
		correlationID string
		routingKey    string
	)

	enqueueCmd := &cobra.Command{
		Use:   "enqueue <job> [data]",
		Short: "Push a job onto the queue",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(c *cobra.Command, args []string) error {
			data := json.RawMessage("{}")
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("data is not valid JSON: %s", args[1])
				}
				data = json.RawMessage(args[1])
			}

			dCtx := runtime.NewDispatcher()
			if err := dCtx.Build(); err != nil {
				return err
			}
			defer dCtx.Close()

			var opts []queue.DeliveryOption
			if correlationID != "" {
				opts = append(opts, queue.WithCorrelationID(correlationID))
			}
			if routingKey != "" {
				opts = append(opts, queue.WithRoutingKey(routingKey))
			}

			var (
				id  string
				err error
			)

			if delay > 0 {
				id, err = dCtx.DispatchService().DispatchDelayed(context.Background(), delay, args[0], data, opts...)
			} else {
				id, err = dCtx.DispatchService().Dispatch(context.Background(), args[0], data, opts...)
			}
			if err != nil {
				return err
			}

			fmt.Println(id)

			return nil
		},
	}

	enqueueCmd.Flags().DurationVarP(&delay, "delay", "d", 0, "Delay before the job becomes consumable")
	enqueueCmd.Flags().StringVarP(&correlationID, "correlation-id", "c", "", "Correlation id to stamp on the message")
	enqueueCmd.Flags().StringVarP(&routingKey, "routing-key", "r", "", "Routing key override")

	return enqueueCmd
}

func newSizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "size [queue]",
		Short: "Print the number of ready messages in a queue",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			queueName := ""
			if len(args) == 1 {
				queueName = args[0]
			}

			dCtx := runtime.NewDispatcher()
			if err := dCtx.Build(); err != nil {
				return err
			}
			defer dCtx.Close()

			size, err := dCtx.DispatchService().PendingJobs(context.Background(), queueName)
			if err != nil {
				return err
			}

			fmt.Println(size)

			return nil
		},
	}
}
