package runtime

import (
	"os"
)

type (
	WorkerOption func(*WorkerCtx)

	DispatcherOption func(*DispatcherCtx)
)

func WithWorkerTermination(ch chan os.Signal) WorkerOption {
	return func(ctx *WorkerCtx) {
		ctx.shutdownChannel = ch
	}
}
