package core_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/topicsink/core"
	"github.com/miladsoleymani/topicsink/internal/mock"
)

func mustSpec(t *testing.T, name, topic, host, port string) core.Spec {
	t.Helper()
	spec, err := core.NewSpec(core.Record{Name: name, Topic: topic, Host: host, Port: port})
	require.NoError(t, err)
	return spec
}

func TestWorker_StartDeliverStop(t *testing.T) {
	mb := mock.NewBroker()
	ms := mock.NewSink()
	w := core.NewWorker(mustSpec(t, "sensor1", "temp/#", "broker1", "1883"), mb, ms, zerolog.Nop())
	assert.Equal(t, core.StateNew, w.State())

	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	assert.Equal(t, core.StateRunning, w.State())
	assert.True(t, mb.IsConnected())
	assert.Equal(t, []string{"temp/#"}, mb.Subscriptions())

	require.NoError(t, mb.Deliver(ctx, "temp/kitchen", []byte("21.5")))
	require.NoError(t, mb.Deliver(ctx, "temp/garage", []byte("18.0")))
	assert.Equal(t, []string{"21.5", "18.0"}, ms.Lines())

	require.NoError(t, w.Stop(ctx))
	assert.Equal(t, core.StateStopped, w.State())
	assert.True(t, mb.IsClosed())
	assert.True(t, ms.IsClosed())

	// Messages after stop are not written.
	require.NoError(t, mb.Deliver(ctx, "temp/kitchen", []byte("late")))
	assert.Len(t, ms.Lines(), 2)

	// Second stop is a no-op.
	require.NoError(t, w.Stop(ctx))
	assert.Equal(t, 1, mb.CloseCalls())
}

func TestWorker_ConnectRefused(t *testing.T) {
	mb := mock.NewBroker()
	mb.ConnectErr = core.ErrConnectionRefused
	ms := mock.NewSink()
	w := core.NewWorker(mustSpec(t, "sensor1", "temp/#", "broker1", "1883"), mb, ms, zerolog.Nop())

	err := w.Start(context.Background())
	require.ErrorIs(t, err, core.ErrConnectionRefused)
	assert.Equal(t, core.StateStopped, w.State())
	assert.True(t, mb.IsClosed())
	assert.True(t, ms.IsClosed())
}

func TestWorker_SubscribeFails(t *testing.T) {
	mb := mock.NewBroker()
	mb.SubscribeErr = core.ErrInvalidConfig
	w := core.NewWorker(mustSpec(t, "sensor1", "temp/#", "broker1", "1883"), mb, mock.NewSink(), zerolog.Nop())

	err := w.Start(context.Background())
	require.ErrorIs(t, err, core.ErrInvalidConfig)
	assert.Equal(t, core.StateStopped, w.State())
}

func TestWorker_NilBrokerClosesSink(t *testing.T) {
	ms := mock.NewSink()
	w := core.NewWorker(mustSpec(t, "sensor1", "temp/#", "broker1", "1883"), nil, ms, zerolog.Nop())

	require.ErrorIs(t, w.Start(context.Background()), core.ErrNoBroker)
	assert.Equal(t, core.StateStopped, w.State())
	assert.True(t, ms.IsClosed())
}

func TestWorker_StartTwice(t *testing.T) {
	w := core.NewWorker(mustSpec(t, "sensor1", "temp/#", "broker1", "1883"), mock.NewBroker(), mock.NewSink(), zerolog.Nop())
	require.NoError(t, w.Start(context.Background()))
	require.ErrorIs(t, w.Start(context.Background()), core.ErrAlreadyStarted)
}

func TestWorker_WriteFailureDropsAndContinues(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	mb := mock.NewBroker()
	ms := mock.NewSink()
	w := core.NewWorker(mustSpec(t, "sensor1", "temp/#", "broker1", "1883"), mb, ms, logger)
	ctx := context.Background()
	require.NoError(t, w.Start(ctx))

	ms.SetAppendErr(errors.New("disk full"))
	err := mb.Deliver(ctx, "temp/kitchen", []byte("lost"))
	require.ErrorIs(t, err, core.ErrWriteFailure)
	assert.Contains(t, buf.String(), "message dropped")
	assert.Contains(t, buf.String(), "disk full")
	assert.Equal(t, core.StateRunning, w.State())

	ms.SetAppendErr(nil)
	require.NoError(t, mb.Deliver(ctx, "temp/kitchen", []byte("kept")))
	assert.Equal(t, []string{"kept"}, ms.Lines())
}

func TestWorker_StopBounded(t *testing.T) {
	mb := mock.NewBroker()
	mb.CloseBlock = make(chan struct{})
	defer close(mb.CloseBlock)

	w := core.NewWorker(mustSpec(t, "sensor1", "temp/#", "broker1", "1883"), mb, mock.NewSink(), zerolog.Nop())
	require.NoError(t, w.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := w.Stop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, core.StateStopped, w.State())
}

func TestWorker_MiddlewareOrder(t *testing.T) {
	var order []string
	mw := func(name string) core.Middleware {
		return func(next core.Handler) core.Handler {
			return func(ctx context.Context, msg core.Message) error {
				order = append(order, name+":before")
				assert.Equal(t, "sensor1", core.WorkerFromContext(ctx))
				err := next(ctx, msg)
				order = append(order, name+":after")
				return err
			}
		}
	}

	mb := mock.NewBroker()
	w := core.NewWorker(mustSpec(t, "sensor1", "temp/#", "broker1", "1883"), mb, mock.NewSink(), zerolog.Nop(), mw("A"), mw("B"))
	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	require.NoError(t, mb.Deliver(ctx, "temp/x", []byte("v")))

	assert.Equal(t, []string{"A:before", "B:before", "B:after", "A:after"}, order)
}
