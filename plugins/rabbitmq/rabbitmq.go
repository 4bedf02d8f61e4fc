package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"

	"github.com/miladsoleymani/topicsink/broker"
	"github.com/miladsoleymani/topicsink/core"
)

func init() {
	broker.Register("amqp", func(cfg broker.Config) (core.Broker, error) {
		opts := optsFromConfig(cfg)
		if cfg.ConnectTimeout > 0 {
			opts = append(opts, WithDialTimeout(cfg.ConnectTimeout))
		}
		return New("amqp://"+cfg.Address+"/", cfg.ClientID, opts...), nil
	})
}

// Broker implements core.Broker for RabbitMQ using amqp091-go.
//
// Design decisions:
//   - Single connection, one channel per Broker instance.
//   - Each Subscribe declares a server-named, exclusive, auto-delete queue
//     bound to a topic exchange: nothing outlives the connection.
//   - Auto-ack; delivery guarantees are the server's.
//   - Close tears down channel and connection and waits for the consume loops.
type Broker struct {
	uri  string
	name string
	opts options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

// New creates a RabbitMQ Broker. uri is a standard AMQP URI (amqp://host:port/vhost).
func New(uri, name string, fns ...Option) *Broker {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{uri: uri, name: name, opts: opts, ctx: ctx, cancel: cancel}
}

// Connect dials the server and opens the channel.
func (b *Broker) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := amqp.DialConfig(b.uri, amqp.Config{
		Dial:       amqp.DefaultDial(b.opts.dialTimeout),
		Properties: amqp.Table{"connection_name": b.name},
	})
	if err != nil {
		return fmt.Errorf("topicsink/rabbitmq: dial %q: %w: %w", b.uri, core.ErrConnectionRefused, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("topicsink/rabbitmq: open channel: %w", err)
	}
	if err := ch.Qos(b.opts.prefetchCount, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("topicsink/rabbitmq: set qos: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		ch.Close()
		conn.Close()
		return core.ErrBrokerClosed
	}
	b.conn, b.ch = conn, ch
	return nil
}

// Subscribe binds a private queue to the exchange with topic as binding key
// and consumes it until Close.
func (b *Broker) Subscribe(_ context.Context, topic string, handler core.Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return core.ErrBrokerClosed
	}
	ch := b.ch
	b.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("topicsink/rabbitmq: subscribe before connect")
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("topicsink/rabbitmq: declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, topic, b.opts.exchange, false, nil); err != nil {
		return fmt.Errorf("topicsink/rabbitmq: bind %q to %q: %w", topic, b.opts.exchange, err)
	}

	deliveries, err := ch.Consume(
		q.Name,
		b.name, // consumer tag
		true,   // autoAck
		true,   // exclusive
		false,  // noLocal
		false,  // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("topicsink/rabbitmq: consume %q: %w", q.Name, err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consumeLoop(deliveries, handler)
	}()
	return nil
}

// consumeLoop processes deliveries until Close or channel close.
func (b *Broker) consumeLoop(deliveries <-chan amqp.Delivery, handler core.Handler) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return // channel closed
			}
			_ = handler(b.ctx, &message{delivery: d})
		}
	}
}

// Publish sends payload to the exchange with topic as routing key.
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return core.ErrBrokerClosed
	}
	ch := b.ch
	b.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("topicsink/rabbitmq: publish before connect")
	}

	if err := ch.PublishWithContext(ctx, b.opts.exchange, topic, false, false, amqp.Publishing{
		Body: payload,
	}); err != nil {
		return fmt.Errorf("topicsink/rabbitmq: publish to %q: %w", topic, err)
	}
	return nil
}

// Close tears down the channel and connection.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.cancel()
	ch, conn := b.ch, b.conn
	b.mu.Unlock()

	var err error
	if ch != nil {
		if cerr := ch.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("topicsink/rabbitmq: close channel: %w", cerr))
		}
	}
	if conn != nil {
		if cerr := conn.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("topicsink/rabbitmq: close connection: %w", cerr))
		}
	}
	b.wg.Wait()
	return err
}

// optsFromConfig extracts options from broker.Config.Extra.
func optsFromConfig(cfg broker.Config) []Option {
	if cfg.Extra == nil {
		return nil
	}
	var opts []Option
	if ex, ok := cfg.Extra["amqp_exchange"].(string); ok && ex != "" {
		opts = append(opts, WithExchange(ex))
	}
	if pf, ok := cfg.Extra["amqp_prefetch_count"].(int); ok {
		opts = append(opts, WithPrefetchCount(pf))
	}
	return opts
}
