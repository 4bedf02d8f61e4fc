package middleware

import (
	"context"
	"time"

	"github.com/miladsoleymani/topicsink/core"
)

// MetricsCollector is the interface that metrics backends must implement.
// This keeps the middleware decoupled from any specific metrics library.
type MetricsCollector interface {
	// MessageProcessed records that a message was processed by a worker.
	// duration is processing time and err is nil on success.
	MessageProcessed(worker string, duration time.Duration, err error)
}

// Metrics returns middleware that reports processing metrics to the given collector.
func Metrics(collector MetricsCollector) core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, msg core.Message) error {
			start := time.Now()
			err := next(ctx, msg)
			collector.MessageProcessed(core.WorkerFromContext(ctx), time.Since(start), err)
			return err
		}
	}
}
