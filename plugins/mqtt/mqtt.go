package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/miladsoleymani/topicsink/broker"
	"github.com/miladsoleymani/topicsink/core"
)

func init() {
	factory := func(cfg broker.Config) (core.Broker, error) {
		var opts []Option
		if cfg.ConnectTimeout > 0 {
			opts = append(opts, WithConnectTimeout(cfg.ConnectTimeout))
		}
		opts = append(opts, optsFromConfig(cfg)...)
		return New(cfg.Address, cfg.ClientID, opts...), nil
	}
	broker.Register("mqtt", factory)
	broker.Register("tcp", factory)
}

// Broker implements core.Broker for MQTT using the Eclipse Paho client.
//
// Design decisions:
//   - One client connection per Broker instance, clean session, no credentials.
//   - Subscriptions are remembered and re-issued from the OnConnect handler,
//     since a clean session drops them on every reconnect.
//   - Messages are delivered in order on Paho's router goroutine.
//   - Close disconnects after a short quiesce period.
type Broker struct {
	address string
	client  paho.Client
	opts    options

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	subs   map[string]core.Handler
}

// New creates an MQTT Broker for address (host:port). It does not connect.
func New(address, clientID string, fns ...Option) *Broker {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		address: address,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[string]core.Handler),
	}

	co := paho.NewClientOptions().
		AddBroker("tcp://" + address).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(opts.autoReconnect).
		SetConnectRetry(false).
		SetConnectTimeout(opts.connectTimeout).
		SetKeepAlive(opts.keepAlive).
		SetOrderMatters(true).
		SetOnConnectHandler(b.onConnect)
	b.client = paho.NewClient(co)
	return b
}

// Connect dials the broker and waits for CONNACK or ctx.
func (b *Broker) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return core.ErrBrokerClosed
	}
	b.mu.Unlock()

	if err := wait(ctx, b.client.Connect()); err != nil {
		return fmt.Errorf("topicsink/mqtt: connect to %q: %w: %w", b.address, core.ErrConnectionRefused, err)
	}
	return nil
}

// Subscribe validates the topic filter and subscribes to it.
func (b *Broker) Subscribe(ctx context.Context, topic string, handler core.Handler) error {
	if err := core.ValidateFilter(topic); err != nil {
		return err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return core.ErrBrokerClosed
	}
	b.subs[topic] = handler
	b.mu.Unlock()

	if err := wait(ctx, b.client.Subscribe(topic, b.opts.qos, b.callback(handler))); err != nil {
		return fmt.Errorf("topicsink/mqtt: subscribe to %q: %w", topic, err)
	}
	return nil
}

// Publish sends payload to topic.
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return core.ErrBrokerClosed
	}
	b.mu.Unlock()

	if err := wait(ctx, b.client.Publish(topic, b.opts.qos, false, payload)); err != nil {
		return fmt.Errorf("topicsink/mqtt: publish to %q: %w", topic, err)
	}
	return nil
}

// Close disconnects the client. It is safe to call before Connect and more
// than once.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.cancel()

	// Disconnect is a no-op for a client that never connected.
	b.client.Disconnect(uint(b.opts.quiesce / time.Millisecond))
	return nil
}

func (b *Broker) callback(handler core.Handler) paho.MessageHandler {
	return func(_ paho.Client, m paho.Message) {
		// Errors are reported by the handler; QoS 0 has nothing to ack.
		_ = handler(b.ctx, &message{msg: m})
	}
}

// onConnect re-issues subscriptions after an automatic reconnect.
func (b *Broker) onConnect(c paho.Client) {
	b.mu.Lock()
	subs := make(map[string]core.Handler, len(b.subs))
	for t, h := range b.subs {
		subs[t] = h
	}
	b.mu.Unlock()

	for topic, h := range subs {
		c.Subscribe(topic, b.opts.qos, b.callback(h))
	}
}

// wait blocks until the token completes or ctx is done.
func wait(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// optsFromConfig extracts options from broker.Config.Extra.
func optsFromConfig(cfg broker.Config) []Option {
	if cfg.Extra == nil {
		return nil
	}
	var opts []Option
	if v, ok := cfg.Extra["mqtt_qos"].(int); ok && v >= 0 && v <= 2 {
		opts = append(opts, WithQoS(byte(v)))
	}
	if v, ok := cfg.Extra["mqtt_keep_alive"].(time.Duration); ok {
		opts = append(opts, WithKeepAlive(v))
	}
	if v, ok := cfg.Extra["mqtt_quiesce"].(time.Duration); ok {
		opts = append(opts, WithQuiesce(v))
	}
	if v, ok := cfg.Extra["mqtt_auto_reconnect"].(bool); ok {
		opts = append(opts, WithAutoReconnect(v))
	}
	return opts
}
