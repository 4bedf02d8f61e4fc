// Package topicsink provides the top-level API for embedding the subscription
// recorder. It re-exports core types for convenience, so users can write:
//
//	r := topicsink.New(config.NewFileSource("topicsink.conf"),
//		topicsink.WithBrokerFactory(broker.Resolver{}.ForSpec),
//		topicsink.WithSinkFactory(sink.NewDir("data").Open),
//	)
//	r.Run(ctx, time.NewTicker(time.Minute).C)
package topicsink

import (
	"github.com/miladsoleymani/topicsink/core"
)

// Re-export core types at the package level for ergonomic usage.
type (
	Record      = core.Record
	Spec        = core.Spec
	Fingerprint = core.Fingerprint
	Message     = core.Message
	Handler     = core.Handler
	Middleware  = core.Middleware
	Broker      = core.Broker
	Sink        = core.Sink
	Source      = core.Source
	Reconciler  = core.Reconciler
	Result      = core.Result
	Option      = core.Option

	MissingConfigPolicy = core.MissingConfigPolicy
)

const (
	KeepActive = core.KeepActive
	StopAll    = core.StopAll
)

// Re-exported options.
var (
	WithBrokerFactory       = core.WithBrokerFactory
	WithSinkFactory         = core.WithSinkFactory
	WithLogger              = core.WithLogger
	WithMetrics             = core.WithMetrics
	WithMiddleware          = core.WithMiddleware
	WithMissingConfigPolicy = core.WithMissingConfigPolicy
	WithConnectTimeout      = core.WithConnectTimeout
	WithDisconnectTimeout   = core.WithDisconnectTimeout
)

// New creates a Reconciler reading its desired subscriptions from src.
func New(src Source, opts ...Option) *Reconciler {
	return core.NewReconciler(src, opts...)
}
