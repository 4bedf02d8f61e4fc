package core

import "context"

// Broker defines the contract for message broker implementations.
// Each broker plugin must implement this interface.
//
// Connect establishes the connection. Subscribe registers handler for a topic
// filter and returns once the broker accepted the subscription; deliveries then
// run in the background until Close.
type Broker interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// Sink receives the raw payloads of one worker.
type Sink interface {
	Append(payload []byte) error
	Close() error
}

// Source yields the raw configuration records on every reconciliation tick.
// An error wrapping ErrConfigUnavailable means the resource is missing or
// unreadable.
type Source interface {
	Records(ctx context.Context) ([]Record, error)
}
