package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"

	"github.com/miladsoleymani/topicsink/broker"
	"github.com/miladsoleymani/topicsink/core"
)

func init() {
	broker.Register("kafka", func(cfg broker.Config) (core.Broker, error) {
		opts := optsFromConfig(cfg)
		if cfg.ConnectTimeout > 0 {
			opts = append(opts, WithDialTimeout(cfg.ConnectTimeout))
		}
		b, err := New([]string{cfg.Address}, cfg.ClientID, opts...)
		if err != nil {
			return nil, err
		}
		return b, nil
	})
}

// Broker implements core.Broker for Apache Kafka using segmentio/kafka-go.
//
// Design decisions:
//   - No consumer group: one partition reader per partition of the topic,
//     starting at the configured offset, nothing committed.
//   - Each reader runs its own goroutine, so ordering holds per partition.
//   - The writer is created lazily on the first Publish.
//   - Close cancels the readers, waits for their goroutines and closes them.
type Broker struct {
	brokers []string
	dialer  *kafka.Dialer
	opts    options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	writer  *kafka.Writer
	readers []*kafka.Reader
	mu      sync.Mutex
	closed  bool
}

// New creates a Kafka Broker.
func New(brokers []string, clientID string, fns ...Option) (*Broker, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("%w: at least one kafka broker address is required", core.ErrInvalidConfig)
	}

	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		brokers: brokers,
		dialer: &kafka.Dialer{
			ClientID:  clientID,
			Timeout:   opts.dialTimeout,
			DualStack: true,
		},
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Connect verifies that a broker is reachable.
func (b *Broker) Connect(ctx context.Context) error {
	conn, err := b.dialer.DialContext(ctx, "tcp", b.brokers[0])
	if err != nil {
		return fmt.Errorf("topicsink/kafka: dial %q: %w: %w", b.brokers[0], core.ErrConnectionRefused, err)
	}
	return conn.Close()
}

// Subscribe starts one reader per partition of topic. Kafka topics have no
// wildcard syntax; filters containing one are rejected.
func (b *Broker) Subscribe(ctx context.Context, topic string, handler core.Handler) error {
	if strings.ContainsAny(topic, "*#+>") {
		return fmt.Errorf("%w: kafka topic %q cannot contain wildcards", core.ErrInvalidConfig, topic)
	}

	conn, err := b.dialer.DialContext(ctx, "tcp", b.brokers[0])
	if err != nil {
		return fmt.Errorf("topicsink/kafka: dial %q: %w: %w", b.brokers[0], core.ErrConnectionRefused, err)
	}
	partitions, err := conn.ReadPartitions(topic)
	_ = conn.Close()
	if err != nil {
		return fmt.Errorf("topicsink/kafka: read partitions of %q: %w", topic, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return core.ErrBrokerClosed
	}

	for _, p := range partitions {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:   b.brokers,
			Topic:     topic,
			Partition: p.ID,
			Dialer:    b.dialer,
			MinBytes:  b.opts.minBytes,
			MaxBytes:  b.opts.maxBytes,
			MaxWait:   b.opts.maxWait,
		})
		if err := r.SetOffset(b.opts.startOffset); err != nil {
			_ = r.Close()
			return fmt.Errorf("topicsink/kafka: set offset on %s/%d: %w", topic, p.ID, err)
		}
		b.readers = append(b.readers, r)

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.consumeLoop(r, handler)
		}()
	}
	return nil
}

// consumeLoop reads messages and dispatches them to the handler until Close.
func (b *Broker) consumeLoop(r *kafka.Reader, handler core.Handler) {
	for {
		raw, err := r.ReadMessage(b.ctx)
		if err != nil {
			// Either Close cancelled the context or the reader is unusable;
			// kafka-go retries transient errors internally.
			return
		}
		_ = handler(b.ctx, &message{raw: raw})
	}
}

// Publish sends payload to topic.
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return core.ErrBrokerClosed
	}
	if b.writer == nil {
		b.writer = &kafka.Writer{
			Addr:         kafka.TCP(b.brokers...),
			Balancer:     b.opts.balancer,
			BatchSize:    b.opts.batchSize,
			RequiredAcks: kafka.RequireAll,
			Transport:    &kafka.Transport{ClientID: b.dialer.ClientID, DialTimeout: b.opts.dialTimeout},
		}
	}
	w := b.writer
	b.mu.Unlock()

	if err := w.WriteMessages(ctx, kafka.Message{Topic: topic, Value: payload}); err != nil {
		return fmt.Errorf("topicsink/kafka: publish to %q: %w", topic, err)
	}
	return nil
}

// Close stops the readers and flushes the writer.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.cancel()
	readers := b.readers
	writer := b.writer
	b.mu.Unlock()

	b.wg.Wait()

	var err error
	if writer != nil {
		if werr := writer.Close(); werr != nil {
			err = multierr.Append(err, fmt.Errorf("topicsink/kafka: close writer: %w", werr))
		}
	}
	for _, r := range readers {
		if rerr := r.Close(); rerr != nil {
			err = multierr.Append(err, fmt.Errorf("topicsink/kafka: close reader: %w", rerr))
		}
	}
	return err
}

// optsFromConfig extracts options from the broker.Config.Extra map.
func optsFromConfig(cfg broker.Config) []Option {
	if cfg.Extra == nil {
		return nil
	}
	var opts []Option
	if v, ok := cfg.Extra["kafka_from_beginning"].(bool); ok && v {
		opts = append(opts, WithStartOffset(kafka.FirstOffset))
	}
	if v, ok := cfg.Extra["kafka_max_bytes"].(int); ok {
		opts = append(opts, WithMaxBytes(v))
	}
	return opts
}
