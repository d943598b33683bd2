package infrastructure

import (
	"context"
	"net/http"
	"time"
)

type NoOpMetrics struct{}

func (n *NoOpMetrics) RecordEnqueue(_ context.Context, _ string, _, _ bool) {
}

func (n *NoOpMetrics) RecordDequeue(_ context.Context, _ string, _ bool) {
}

func (n *NoOpMetrics) RecordJobProcessed(_ context.Context, _ string, _ time.Duration, _ string) {
}

func (n *NoOpMetrics) RecordRecovery(_ context.Context, _ string) {
}

func (n *NoOpMetrics) Handler() http.Handler {
	return http.NotFoundHandler()
}

func (n *NoOpMetrics) Shutdown(_ context.Context) error {
	return nil
}
