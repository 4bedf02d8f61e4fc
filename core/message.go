package core

import "context"

// Message is the broker-agnostic message abstraction.
// Implementations are provided by broker plugins.
type Message interface {
	Topic() string
	Payload() []byte
}

// Handler receives every message delivered on a subscription.
// A returned error is reported by the worker; it never stops delivery.
type Handler func(ctx context.Context, msg Message) error

// Middleware wraps a Handler to add cross-cutting behavior.
type Middleware func(Handler) Handler

type workerKey struct{}

// ContextWithWorker returns a copy of ctx carrying the worker name.
func ContextWithWorker(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, workerKey{}, name)
}

// WorkerFromContext returns the worker name stored by ContextWithWorker.
func WorkerFromContext(ctx context.Context) string {
	name, _ := ctx.Value(workerKey{}).(string)
	return name
}

// applyMiddleware wraps a handler with middleware in reverse order.
// Given middleware [A, B, C], the call order is A -> B -> C -> handler.
func applyMiddleware(h Handler, mws []Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
