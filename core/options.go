package core

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// MissingConfigPolicy decides what a tick does when the Source reports
// ErrConfigUnavailable.
type MissingConfigPolicy int

const (
	// KeepActive leaves the running workers untouched until a readable
	// configuration reappears.
	KeepActive MissingConfigPolicy = iota
	// StopAll treats a missing configuration as an empty desired set.
	StopAll
)

// ParseMissingConfigPolicy accepts "keep" or "stop".
func ParseMissingConfigPolicy(s string) (MissingConfigPolicy, error) {
	switch s {
	case "keep":
		return KeepActive, nil
	case "stop":
		return StopAll, nil
	default:
		return KeepActive, fmt.Errorf("unknown missing-config policy %q (want keep or stop)", s)
	}
}

func (p MissingConfigPolicy) String() string {
	if p == StopAll {
		return "stop"
	}
	return "keep"
}

// BrokerFactory builds an unconnected broker client for a spec.
type BrokerFactory func(spec Spec) (Broker, error)

// SinkFactory opens the output sink for a spec.
type SinkFactory func(spec Spec) (Sink, error)

// Option configures a Reconciler.
type Option func(*options)

type options struct {
	newBroker         BrokerFactory
	newSink           SinkFactory
	logger            zerolog.Logger
	metrics           Metrics
	middlewares       []Middleware
	missing           MissingConfigPolicy
	connectTimeout    time.Duration
	disconnectTimeout time.Duration
}

func defaults() options {
	return options{
		logger:            zerolog.Nop(),
		metrics:           NopMetrics{},
		missing:           KeepActive,
		connectTimeout:    10 * time.Second,
		disconnectTimeout: 2 * time.Second,
	}
}

// WithBrokerFactory sets how broker clients are built for new workers.
func WithBrokerFactory(f BrokerFactory) Option {
	return func(o *options) { o.newBroker = f }
}

// WithSinkFactory sets how output sinks are opened for new workers.
func WithSinkFactory(f SinkFactory) Option {
	return func(o *options) { o.newSink = f }
}

// WithLogger sets the logger for the reconciler and its workers.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the reconciliation metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithMiddleware appends message middleware applied by every new worker.
func WithMiddleware(mws ...Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...) }
}

// WithMissingConfigPolicy sets the behavior for an unavailable configuration.
func WithMissingConfigPolicy(p MissingConfigPolicy) Option {
	return func(o *options) { o.missing = p }
}

// WithConnectTimeout bounds each worker start.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectTimeout = d }
}

// WithDisconnectTimeout bounds each worker stop.
func WithDisconnectTimeout(d time.Duration) Option {
	return func(o *options) { o.disconnectTimeout = d }
}
