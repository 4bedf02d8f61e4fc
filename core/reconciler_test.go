package core_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/topicsink/config"
	"github.com/miladsoleymani/topicsink/core"
	"github.com/miladsoleymani/topicsink/internal/mock"
)

var (
	sensor1     = core.Record{Name: "sensor1", Topic: "temp/#", Host: "broker1", Port: "1883"}
	sensor1Kit  = core.Record{Name: "sensor1", Topic: "temp/kitchen", Host: "broker1", Port: "1883"}
	sensor2     = core.Record{Name: "sensor2", Topic: "hum/#", Host: "broker1", Port: "1883"}
	sensor3     = core.Record{Name: "sensor3", Topic: "door/+", Host: "broker2", Port: "1883"}
	badPort     = core.Record{Name: "broken", Topic: "x/#", Host: "broker1", Port: "18x3"}
	sameNameAlt = core.Record{Name: "sensor1", Topic: "other/#", Host: "broker2", Port: "1883"}
)

func fp(t *testing.T, r core.Record) core.Fingerprint {
	t.Helper()
	spec, err := core.NewSpec(r)
	require.NoError(t, err)
	return spec.Fingerprint()
}

func fps(t *testing.T, rs ...core.Record) []core.Fingerprint {
	t.Helper()
	out := make([]core.Fingerprint, 0, len(rs))
	for _, r := range rs {
		out = append(out, fp(t, r))
	}
	return sorted(out)
}

func sorted(in []core.Fingerprint) []core.Fingerprint {
	out := append([]core.Fingerprint(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

type counterMetrics struct {
	core.NopMetrics
	started, stopped, failed, skipped, active int
}

func (m *counterMetrics) WorkerStarted(string) { m.started++ }
func (m *counterMetrics) WorkerStopped(string) { m.stopped++ }
func (m *counterMetrics) WorkerFailed(string)  { m.failed++ }
func (m *counterMetrics) RecordSkipped(string) { m.skipped++ }
func (m *counterMetrics) ActiveWorkers(n int)  { m.active = n }

func newReconciler(src core.Source, fleet *mock.Fleet, opts ...core.Option) *core.Reconciler {
	opts = append([]core.Option{
		core.WithBrokerFactory(fleet.NewBroker),
		core.WithSinkFactory(fleet.NewSink),
		core.WithLogger(zerolog.Nop()),
	}, opts...)
	return core.NewReconciler(src, opts...)
}

func TestReconciler_StartsDesired(t *testing.T) {
	fleet := mock.NewFleet()
	r := newReconciler(config.NewStatic(sensor1, sensor2), fleet)

	res := r.Reconcile(context.Background())
	assert.Equal(t, fps(t, sensor1, sensor2), sorted(res.Started))
	assert.Empty(t, res.Stopped)
	assert.Equal(t, fps(t, sensor1, sensor2), sorted(r.Active()))

	w, ok := r.Worker(fp(t, sensor1))
	require.True(t, ok)
	assert.Equal(t, core.StateRunning, w.State())
}

func TestReconciler_Idempotent(t *testing.T) {
	fleet := mock.NewFleet()
	r := newReconciler(config.NewStatic(sensor1, sensor2), fleet)

	first := r.Reconcile(context.Background())
	require.Len(t, first.Started, 2)

	second := r.Reconcile(context.Background())
	assert.False(t, second.Changed())
	assert.Empty(t, second.Failed)
	assert.Equal(t, 2, fleet.Total())
}

func TestReconciler_Converges(t *testing.T) {
	fleet := mock.NewFleet()
	src := config.NewStatic(sensor1, sensor2)
	r := newReconciler(src, fleet)
	r.Reconcile(context.Background())

	src.Update(sensor2, sensor3)
	res := r.Reconcile(context.Background())

	assert.Equal(t, fps(t, sensor1), sorted(res.Stopped))
	assert.Equal(t, fps(t, sensor3), sorted(res.Started))
	assert.Equal(t, fps(t, sensor2, sensor3), sorted(r.Active()))

	old, _ := fleet.Latest(fp(t, sensor1))
	assert.True(t, old.IsClosed())
}

func TestReconciler_FieldChangeReplaces(t *testing.T) {
	fleet := mock.NewFleet()
	src := config.NewStatic(sensor1)
	r := newReconciler(src, fleet)
	r.Reconcile(context.Background())

	oldBroker, _ := fleet.Latest(fp(t, sensor1))
	require.Equal(t, []string{"temp/#"}, oldBroker.Subscriptions())

	src.Update(sensor1Kit)
	res := r.Reconcile(context.Background())

	assert.Equal(t, []core.Fingerprint{fp(t, sensor1)}, res.Stopped)
	assert.Equal(t, []core.Fingerprint{fp(t, sensor1Kit)}, res.Started)
	assert.Equal(t, []core.Fingerprint{fp(t, sensor1Kit)}, r.Active())

	// The old worker was never reconfigured in place.
	assert.True(t, oldBroker.IsClosed())
	assert.Equal(t, []string{"temp/#"}, oldBroker.Subscriptions())

	newBroker, _ := fleet.Latest(fp(t, sensor1Kit))
	assert.Equal(t, []string{"temp/kitchen"}, newBroker.Subscriptions())
}

func TestReconciler_InvalidRecordSkipped(t *testing.T) {
	fleet := mock.NewFleet()
	metrics := &counterMetrics{}
	r := newReconciler(config.NewStatic(sensor1, badPort, sensor2), fleet, core.WithMetrics(metrics))

	res := r.Reconcile(context.Background())
	assert.Equal(t, fps(t, sensor1, sensor2), sorted(res.Started))
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, badPort, res.Skipped[0].Record)
	assert.ErrorIs(t, res.Skipped[0].Err, core.ErrInvalidConfig)
	assert.Equal(t, 1, metrics.skipped)
	assert.Equal(t, 2, metrics.active)

	// Retried and skipped again on the next tick; nothing else changes.
	res = r.Reconcile(context.Background())
	assert.False(t, res.Changed())
	assert.Len(t, res.Skipped, 1)
}

func TestReconciler_StartFailureRetriedNextTick(t *testing.T) {
	fleet := mock.NewFleet()
	fleet.SetConnectErr("broker2", core.ErrConnectionRefused)
	metrics := &counterMetrics{}
	r := newReconciler(config.NewStatic(sensor1, sensor3), fleet, core.WithMetrics(metrics))

	res := r.Reconcile(context.Background())
	assert.Equal(t, fps(t, sensor1), sorted(res.Started))
	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[0].Err, core.ErrConnectionRefused)
	assert.Equal(t, fp(t, sensor3), res.Failed[0].Fingerprint)
	assert.Equal(t, fps(t, sensor1), sorted(r.Active()))
	assert.Equal(t, 1, metrics.failed)

	fleet.SetConnectErr("broker2", nil)
	res = r.Reconcile(context.Background())
	assert.Equal(t, fps(t, sensor3), sorted(res.Started))
	assert.Empty(t, res.Stopped)
	assert.Equal(t, fps(t, sensor1, sensor3), sorted(r.Active()))
	assert.Equal(t, 2, fleet.Built(fp(t, sensor3)))
}

func TestReconciler_MissingConfigKeepsActive(t *testing.T) {
	fleet := mock.NewFleet()
	src := config.NewStatic(sensor1, sensor2)
	r := newReconciler(src, fleet)
	r.Reconcile(context.Background())

	src.SetUnavailable(true)
	res := r.Reconcile(context.Background())
	require.ErrorIs(t, res.ConfigErr, core.ErrConfigUnavailable)
	assert.False(t, res.Changed())
	assert.Equal(t, fps(t, sensor1, sensor2), sorted(r.Active()))

	src.SetUnavailable(false)
	src.Update(sensor2)
	res = r.Reconcile(context.Background())
	assert.Equal(t, fps(t, sensor1), sorted(res.Stopped))
}

func TestReconciler_MissingConfigStopAll(t *testing.T) {
	fleet := mock.NewFleet()
	src := config.NewStatic(sensor1, sensor2)
	r := newReconciler(src, fleet, core.WithMissingConfigPolicy(core.StopAll))
	r.Reconcile(context.Background())

	src.SetUnavailable(true)
	res := r.Reconcile(context.Background())
	require.ErrorIs(t, res.ConfigErr, core.ErrConfigUnavailable)
	assert.Equal(t, fps(t, sensor1, sensor2), sorted(res.Stopped))
	assert.Empty(t, r.Active())
}

func TestReconciler_NameConflict(t *testing.T) {
	fleet := mock.NewFleet()
	r := newReconciler(config.NewStatic(sensor1, sameNameAlt, sensor1), fleet)

	res := r.Reconcile(context.Background())
	assert.Equal(t, []core.Fingerprint{fp(t, sensor1)}, res.Started)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, sameNameAlt, res.Skipped[0].Record)
	assert.ErrorIs(t, res.Skipped[0].Err, core.ErrNameConflict)
}

func TestReconciler_RemoveAndAddSameTick(t *testing.T) {
	fleet := mock.NewFleet()
	src := config.NewStatic(sensor1, sensor2, sensor3)
	r := newReconciler(src, fleet)
	r.Reconcile(context.Background())

	// sensor1's name moves to a different subscription in the same tick.
	src.Update(sameNameAlt, sensor2)
	res := r.Reconcile(context.Background())

	assert.Equal(t, fps(t, sensor1, sensor3), sorted(res.Stopped))
	assert.Equal(t, fps(t, sameNameAlt), sorted(res.Started))
	assert.Empty(t, res.Skipped)
	assert.Equal(t, fps(t, sameNameAlt, sensor2), sorted(r.Active()))
}

func TestReconciler_StopErrorStillRemoves(t *testing.T) {
	fleet := mock.NewFleet()
	src := config.NewStatic(sensor1)
	r := newReconciler(src, fleet, core.WithDisconnectTimeout(20*time.Millisecond))
	r.Reconcile(context.Background())

	b, _ := fleet.Latest(fp(t, sensor1))
	b.CloseBlock = make(chan struct{})
	defer close(b.CloseBlock)

	src.Update()
	res := r.Reconcile(context.Background())
	assert.Equal(t, fps(t, sensor1), sorted(res.Stopped))
	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[0].Err, context.DeadlineExceeded)
	assert.Empty(t, r.Active())
}

func TestReconciler_NoFactories(t *testing.T) {
	r := core.NewReconciler(config.NewStatic(sensor1))
	res := r.Reconcile(context.Background())
	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[0].Err, core.ErrNoBroker)
	assert.Empty(t, r.Active())
}

func TestReconciler_DeliversToSink(t *testing.T) {
	fleet := mock.NewFleet()
	r := newReconciler(config.NewStatic(sensor1), fleet)
	r.Reconcile(context.Background())

	b, s := fleet.Latest(fp(t, sensor1))
	require.NoError(t, b.Deliver(context.Background(), "temp/kitchen", []byte("21.5")))
	assert.Equal(t, []string{"21.5"}, s.Lines())
}

func TestReconciler_RunWithInjectedTicks(t *testing.T) {
	fleet := mock.NewFleet()
	src := config.NewStatic(sensor1)
	r := newReconciler(src, fleet)

	ticks := make(chan time.Time)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, ticks) }()

	// Run reconciles before the first tick; the send returns once that pass is done.
	src.Update(sensor1Kit)
	ticks <- time.Now()
	// A second send guarantees the previous tick has been processed.
	ticks <- time.Now()
	assert.Equal(t, []core.Fingerprint{fp(t, sensor1Kit)}, r.Active())

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, r.Active())

	b, s := fleet.Latest(fp(t, sensor1Kit))
	assert.True(t, b.IsClosed())
	assert.True(t, s.IsClosed())
}

func TestReconciler_RunReturnsWhenTicksClosed(t *testing.T) {
	fleet := mock.NewFleet()
	src := &countingSource{Static: config.NewStatic(sensor1)}
	r := newReconciler(src, fleet)

	ticks := make(chan time.Time)
	close(ticks)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx, ticks))

	assert.NoError(t, ctx.Err(), "Run must return before the context deadline")
	assert.Equal(t, 1, src.calls())
	assert.Empty(t, r.Active())

	b, s := fleet.Latest(fp(t, sensor1))
	assert.True(t, b.IsClosed())
	assert.True(t, s.IsClosed())
}

// countingSource counts how often the reconciler reads it.
type countingSource struct {
	*config.Static
	mu sync.Mutex
	n  int
}

func (s *countingSource) Records(ctx context.Context) ([]core.Record, error) {
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
	return s.Static.Records(ctx)
}

func (s *countingSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
