package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// Option configures the Kafka broker.
type Option func(*options)

type options struct {
	// Writer
	balancer  kafka.Balancer
	batchSize int

	// Reader
	minBytes    int
	maxBytes    int
	maxWait     time.Duration
	startOffset int64

	// General
	dialTimeout time.Duration
}

func defaults() options {
	return options{
		balancer:    &kafka.LeastBytes{},
		batchSize:   1,
		minBytes:    1,
		maxBytes:    10e6, // 10 MB
		maxWait:     500 * time.Millisecond,
		startOffset: kafka.LastOffset,
		dialTimeout: 10 * time.Second,
	}
}

// WithBalancer sets the partition balancer for the writer.
func WithBalancer(b kafka.Balancer) Option {
	return func(o *options) { o.balancer = b }
}

// WithBatchSize sets the maximum batch size for writes.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithMaxBytes sets the maximum bytes per fetch.
func WithMaxBytes(n int) Option {
	return func(o *options) { o.maxBytes = n }
}

// WithMaxWait sets the maximum wait time for fetches.
func WithMaxWait(d time.Duration) Option {
	return func(o *options) { o.maxWait = d }
}

// WithStartOffset sets where new partition readers begin (kafka.FirstOffset
// or kafka.LastOffset).
func WithStartOffset(offset int64) Option {
	return func(o *options) { o.startOffset = offset }
}

// WithDialTimeout bounds connection attempts.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}
