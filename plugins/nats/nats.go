package nats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/multierr"

	"github.com/miladsoleymani/topicsink/broker"
	"github.com/miladsoleymani/topicsink/core"
)

func init() {
	broker.Register("nats", func(cfg broker.Config) (core.Broker, error) {
		var opts []Option
		if cfg.ConnectTimeout > 0 {
			opts = append(opts, WithConnectTimeout(cfg.ConnectTimeout))
		}
		return New("nats://"+cfg.Address, cfg.ClientID, opts...), nil
	})
}

// Broker implements core.Broker for core NATS.
//
// Design decisions:
//   - One NATS connection per Broker instance.
//   - Plain subscriptions, no JetStream: delivery is whatever the server
//     provides to a connected subscriber, nothing is persisted for us.
//   - Subscribe flushes so that a returned nil means the server has the
//     subscription.
//   - Close unsubscribes everything and closes the connection.
type Broker struct {
	url  string
	name string
	opts options

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	conn   *nats.Conn
	closed bool
	subs   []*nats.Subscription
}

// New creates a NATS Broker. url is a standard NATS URL (nats://host:port).
func New(url, name string, fns ...Option) *Broker {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{url: url, name: name, opts: opts, ctx: ctx, cancel: cancel}
}

// Connect dials the server.
func (b *Broker) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := b.opts.connectTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left > 0 && left < timeout {
			timeout = left
		}
	}

	nc, err := nats.Connect(b.url, nats.Name(b.name), nats.Timeout(timeout))
	if err != nil {
		return fmt.Errorf("topicsink/nats: connect to %q: %w: %w", b.url, core.ErrConnectionRefused, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		nc.Close()
		return core.ErrBrokerClosed
	}
	b.conn = nc
	return nil
}

// Subscribe registers handler for the subject (wildcards "*" and ">").
func (b *Broker) Subscribe(ctx context.Context, topic string, handler core.Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return core.ErrBrokerClosed
	}
	nc := b.conn
	b.mu.Unlock()
	if nc == nil {
		return fmt.Errorf("topicsink/nats: subscribe before connect")
	}

	sub, err := nc.Subscribe(topic, func(m *nats.Msg) {
		_ = handler(b.ctx, &message{msg: m})
	})
	if err != nil {
		return fmt.Errorf("topicsink/nats: subscribe to %q: %w: %w", topic, core.ErrInvalidConfig, err)
	}
	if err := sub.SetPendingLimits(b.opts.pendingMsgs, b.opts.pendingBytes); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("topicsink/nats: pending limits: %w", err)
	}
	if err := nc.FlushWithContext(ctx); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("topicsink/nats: flush subscription %q: %w", topic, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return nil
}

// Publish sends payload to the subject.
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return core.ErrBrokerClosed
	}
	nc := b.conn
	b.mu.Unlock()
	if nc == nil {
		return fmt.Errorf("topicsink/nats: publish before connect")
	}

	if err := nc.Publish(topic, payload); err != nil {
		return fmt.Errorf("topicsink/nats: publish to %q: %w", topic, err)
	}
	if err := nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("topicsink/nats: flush publish %q: %w", topic, err)
	}
	return nil
}

// Close unsubscribes and closes the connection.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.cancel()

	var err error
	for _, s := range b.subs {
		err = multierr.Append(err, s.Unsubscribe())
	}
	if b.conn != nil {
		b.conn.Close()
	}
	return err
}
