package nats

import "time"

// Option configures the NATS broker.
type Option func(*options)

type options struct {
	connectTimeout time.Duration
	pendingMsgs    int
	pendingBytes   int
}

func defaults() options {
	return options{
		connectTimeout: 10 * time.Second,
		pendingMsgs:    65536,
		pendingBytes:   64 * 1024 * 1024,
	}
}

// WithConnectTimeout bounds the initial dial.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectTimeout = d }
}

// WithPendingLimits sets the per-subscription buffer before messages are dropped.
func WithPendingLimits(msgs, bytes int) Option {
	return func(o *options) {
		o.pendingMsgs = msgs
		o.pendingBytes = bytes
	}
}
