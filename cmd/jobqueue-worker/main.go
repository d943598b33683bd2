package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/architeacher/amqp-jobqueue/internal/ports"
	"github.com/architeacher/amqp-jobqueue/internal/runtime"
	"github.com/architeacher/amqp-jobqueue/pkg/queue"
)

func main() {
	handlers := map[string]ports.JobHandler{
		"echo": ports.JobHandlerFunc(func(_ context.Context, job *queue.Job) error {
			log.Info().
				Str("job_id", job.ID()).
				RawJSON("data", job.Payload().Data).
				Msg("echo")

			return nil
		}),
	}

	runtime.NewWorker(handlers).Run()
}
