package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the lifecycle stage of a Worker.
type State int32

const (
	StateNew State = iota
	StateConnecting
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Worker owns one broker connection subscribed to one topic filter and
// appends every payload it receives to its sink.
type Worker struct {
	spec   Spec
	broker Broker
	sink   Sink
	logger zerolog.Logger

	handler Handler

	mu    sync.RWMutex
	state State
}

// NewWorker creates a worker in StateNew. Middleware wraps the sink append in
// registration order.
func NewWorker(spec Spec, b Broker, s Sink, logger zerolog.Logger, mws ...Middleware) *Worker {
	w := &Worker{
		spec:   spec,
		broker: b,
		sink:   s,
		logger: logger.With().
			Str("worker", spec.Name()).
			Str("fingerprint", spec.Fingerprint().Short()).
			Logger(),
	}
	w.handler = applyMiddleware(w.write, mws)
	return w
}

func (w *Worker) Spec() Spec { return w.spec }

func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Start connects to the broker and subscribes to the topic filter. On failure
// the worker is left stopped with its broker and sink released.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateNew {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	if w.broker == nil {
		w.state = StateStopped
		w.mu.Unlock()
		if w.sink != nil {
			if err := w.sink.Close(); err != nil {
				w.logger.Debug().Err(err).Msg("close sink after failed start")
			}
		}
		return ErrNoBroker
	}
	w.state = StateConnecting
	w.mu.Unlock()

	if err := w.broker.Connect(ctx); err != nil {
		w.abort()
		return fmt.Errorf("connect %s: %w", w.spec, err)
	}
	if err := w.broker.Subscribe(ctx, w.spec.Topic(), w.deliver); err != nil {
		w.abort()
		return fmt.Errorf("subscribe %s: %w", w.spec, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateStopped {
		// Stop raced with Start; Stop already released the broker.
		return ErrBrokerClosed
	}
	w.state = StateRunning
	return nil
}

// Stop closes the broker connection and the sink. It waits for the broker at
// most until ctx is done. Calling Stop more than once is a no-op.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.state == StateStopped {
		w.mu.Unlock()
		return nil
	}
	w.state = StateStopped
	w.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- w.broker.Close()
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("close broker for %s: %w", w.spec, ctx.Err())
	}

	if serr := w.sink.Close(); serr != nil && err == nil {
		err = serr
	}
	return err
}

func (w *Worker) abort() {
	w.mu.Lock()
	w.state = StateStopped
	w.mu.Unlock()

	if err := w.broker.Close(); err != nil {
		w.logger.Debug().Err(err).Msg("close broker after failed start")
	}
	if err := w.sink.Close(); err != nil {
		w.logger.Debug().Err(err).Msg("close sink after failed start")
	}
}

// deliver is the edge between the broker and the middleware chain. Errors are
// logged here once and the message is dropped.
func (w *Worker) deliver(ctx context.Context, msg Message) error {
	if w.State() == StateStopped {
		return nil
	}

	start := time.Now()
	err := w.handler(ContextWithWorker(ctx, w.spec.Name()), msg)
	if err != nil {
		w.logger.Error().
			Err(err).
			Str("topic", msg.Topic()).
			Dur("elapsed", time.Since(start)).
			Msg("message dropped")
	}
	return err
}

func (w *Worker) write(_ context.Context, msg Message) error {
	return w.sink.Append(msg.Payload())
}
