package mqtt

import "time"

// Option configures the MQTT broker.
type Option func(*options)

type options struct {
	qos            byte
	connectTimeout time.Duration
	keepAlive      time.Duration
	quiesce        time.Duration
	autoReconnect  bool
}

func defaults() options {
	return options{
		qos:            0,
		connectTimeout: 10 * time.Second,
		keepAlive:      60 * time.Second,
		quiesce:        250 * time.Millisecond,
		autoReconnect:  true,
	}
}

// WithQoS sets the quality of service used for subscriptions and publishes.
func WithQoS(qos byte) Option {
	return func(o *options) { o.qos = qos }
}

// WithConnectTimeout bounds the TCP and CONNECT handshake.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectTimeout = d }
}

// WithKeepAlive sets the MQTT keep-alive interval.
func WithKeepAlive(d time.Duration) Option {
	return func(o *options) { o.keepAlive = d }
}

// WithQuiesce sets how long Close waits for in-flight work before disconnecting.
func WithQuiesce(d time.Duration) Option {
	return func(o *options) { o.quiesce = d }
}

// WithAutoReconnect controls whether the client reconnects after a lost connection.
func WithAutoReconnect(v bool) Option {
	return func(o *options) { o.autoReconnect = v }
}
