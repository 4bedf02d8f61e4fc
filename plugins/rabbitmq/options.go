package rabbitmq

import "time"

// Option configures the RabbitMQ broker.
type Option func(*options)

type options struct {
	// Exchange the subscription queue is bound to.
	exchange string

	// Consumer settings
	prefetchCount int

	dialTimeout time.Duration
}

func defaults() options {
	return options{
		exchange:      "amq.topic",
		prefetchCount: 10,
		dialTimeout:   10 * time.Second,
	}
}

// WithExchange sets the topic exchange to bind to.
func WithExchange(name string) Option {
	return func(o *options) { o.exchange = name }
}

// WithPrefetchCount sets how many messages the server pushes ahead of processing.
func WithPrefetchCount(n int) Option {
	return func(o *options) { o.prefetchCount = n }
}

// WithDialTimeout bounds the TCP dial and AMQP handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}
