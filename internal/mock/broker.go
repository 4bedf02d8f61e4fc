package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/miladsoleymani/topicsink/core"
)

// ErrNoSubscription is returned by Deliver when no subscription filter
// matches the topic.
var ErrNoSubscription = errors.New("mock: no subscription matches topic")

// Broker is a test double for core.Broker.
type Broker struct {
	mu           sync.Mutex
	published    []PublishedMessage
	handlers     map[string]core.Handler
	matcher      core.TopicMatcher
	ConnectErr   error
	SubscribeErr error
	PublishErr   error
	CloseErr     error
	// CloseBlock, when set, makes Close wait until it is closed.
	CloseBlock chan struct{}
	connected  bool
	closed     bool
	closeCalls int
}

// PublishedMessage records a message sent through Publish.
type PublishedMessage struct {
	Topic   string
	Payload []byte
}

func NewBroker() *Broker {
	return &Broker{
		handlers: make(map[string]core.Handler),
		matcher:  core.MQTTMatcher{},
	}
}

func (b *Broker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ConnectErr != nil {
		return b.ConnectErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.connected = true
	return nil
}

func (b *Broker) Subscribe(_ context.Context, topic string, handler core.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return core.ErrBrokerClosed
	}
	if b.SubscribeErr != nil {
		return b.SubscribeErr
	}
	b.handlers[topic] = handler
	return nil
}

func (b *Broker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.PublishErr != nil {
		return b.PublishErr
	}
	b.published = append(b.published, PublishedMessage{Topic: topic, Payload: payload})
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	block := b.CloseBlock
	b.closeCalls++
	b.closed = true
	b.connected = false
	b.mu.Unlock()

	if block != nil {
		<-block
	}
	return b.CloseErr
}

// Deliver simulates an incoming message on topic. Every subscription whose
// filter matches receives it.
func (b *Broker) Deliver(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	var hs []core.Handler
	for filter, h := range b.handlers {
		if b.matcher.Match(filter, topic) {
			hs = append(hs, h)
		}
	}
	b.mu.Unlock()

	if len(hs) == 0 {
		return ErrNoSubscription
	}
	var firstErr error
	for _, h := range hs {
		if err := h(ctx, &Message{T: topic, P: payload}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Published returns all messages sent via Publish.
func (b *Broker) Published() []PublishedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PublishedMessage, len(b.published))
	copy(out, b.published)
	return out
}

// Subscriptions returns the filters registered via Subscribe.
func (b *Broker) Subscriptions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.handlers))
	for f := range b.handlers {
		out = append(out, f)
	}
	return out
}

// IsConnected reports whether Connect succeeded and Close was not called.
func (b *Broker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// IsClosed reports whether Close was called.
func (b *Broker) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// CloseCalls returns how many times Close was called.
func (b *Broker) CloseCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeCalls
}
