package middleware

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/miladsoleymani/topicsink/core"
)

// Recovery returns middleware that recovers from panics in handlers,
// logs the stack trace, and returns the panic as an error.
func Recovery(logger zerolog.Logger) core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, msg core.Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)
					logger.Error().
						Str("worker", core.WorkerFromContext(ctx)).
						Str("stack", string(buf[:n])).
						Msgf("panic recovered: %v", r)
					err = fmt.Errorf("topicsink: panic recovered: %v", r)
				}
			}()
			return next(ctx, msg)
		}
	}
}
