package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/miladsoleymani/topicsink/core"
)

// Logging returns middleware that logs every message at debug level with its
// processing duration. Failures are reported by the worker itself.
func Logging(logger zerolog.Logger) core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, msg core.Message) error {
			start := time.Now()
			err := next(ctx, msg)

			logger.Debug().
				Str("worker", core.WorkerFromContext(ctx)).
				Str("topic", msg.Topic()).
				Int("bytes", len(msg.Payload())).
				Dur("elapsed", time.Since(start)).
				Bool("ok", err == nil).
				Msg("message processed")
			return err
		}
	}
}
