package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// Failure describes a record or worker that could not be brought to the
// desired state during a tick.
type Failure struct {
	Record      Record
	Fingerprint Fingerprint
	Err         error
}

// Result is the outcome of one reconciliation tick.
type Result struct {
	Started []Fingerprint
	Stopped []Fingerprint
	// Skipped records never reached a start attempt (invalid or conflicting).
	Skipped []Failure
	// Failed holds start failures and stop errors.
	Failed []Failure
	// ConfigErr is set when the Source could not be read.
	ConfigErr error
}

// Changed reports whether the tick started or stopped any worker.
func (r Result) Changed() bool {
	return len(r.Started) > 0 || len(r.Stopped) > 0
}

// Reconciler converges the set of running workers to the records yielded by
// a Source. It owns the active map; workers never touch it.
type Reconciler struct {
	src    Source
	opts   options
	logger zerolog.Logger

	mu     sync.Mutex
	active map[Fingerprint]*Worker
}

// NewReconciler creates a Reconciler with no active workers.
func NewReconciler(src Source, fns ...Option) *Reconciler {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Reconciler{
		src:    src,
		opts:   opts,
		logger: opts.logger.With().Str("component", "reconciler").Logger(),
		active: make(map[Fingerprint]*Worker),
	}
}

// Active returns the fingerprints of the running workers.
func (r *Reconciler) Active() []Fingerprint {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Fingerprint, 0, len(r.active))
	for fp := range r.active {
		out = append(out, fp)
	}
	return out
}

// Worker returns the active worker for a fingerprint.
func (r *Reconciler) Worker(fp Fingerprint) (*Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.active[fp]
	return w, ok
}

// Run reconciles immediately and then once per tick until ctx is done or
// ticks is closed. On return every active worker has been stopped.
func (r *Reconciler) Run(ctx context.Context, ticks <-chan time.Time) error {
	r.Reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			r.Shutdown(context.Background())
			return nil
		case _, ok := <-ticks:
			if !ok {
				r.Shutdown(context.Background())
				return nil
			}
			r.Reconcile(ctx)
		}
	}
}

// Shutdown stops every active worker and empties the active map.
func (r *Reconciler) Shutdown(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stale := make([]Fingerprint, 0, len(r.active))
	for fp := range r.active {
		stale = append(stale, fp)
	}
	var res Result
	r.stopLocked(ctx, stale, &res)
	r.opts.metrics.ActiveWorkers(len(r.active))
}

// Reconcile performs one tick: read the desired records, stop workers whose
// fingerprint is no longer desired, start workers for new fingerprints.
// Nothing in a tick is fatal; every failure is reported in the Result.
func (r *Reconciler) Reconcile(ctx context.Context) Result {
	start := time.Now()
	defer func() { r.opts.metrics.ReconcileDuration(time.Since(start)) }()

	var res Result

	records, err := r.src.Records(ctx)
	if err != nil {
		res.ConfigErr = err
		if r.opts.missing == KeepActive {
			r.logger.Warn().Err(err).Msg("configuration unavailable, keeping active workers")
			return res
		}
		r.logger.Warn().Err(err).Msg("configuration unavailable, stopping all workers")
		records = nil
	}

	desired, order := r.desired(records, &res)

	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []Fingerprint
	for fp := range r.active {
		if _, ok := desired[fp]; !ok {
			stale = append(stale, fp)
		}
	}
	r.stopLocked(ctx, stale, &res)

	for _, fp := range order {
		if _, ok := r.active[fp]; ok {
			continue
		}
		spec := desired[fp]
		w, err := r.startWorker(ctx, spec)
		if err != nil {
			res.Failed = append(res.Failed, Failure{Record: spec.Record(), Fingerprint: fp, Err: err})
			r.opts.metrics.WorkerFailed(Reason(err))
			r.logger.Warn().
				Err(err).
				Str("worker", spec.Name()).
				Str("fingerprint", fp.Short()).
				Msg("worker start failed, retrying next tick")
			continue
		}
		r.active[fp] = w
		res.Started = append(res.Started, fp)
		r.opts.metrics.WorkerStarted(spec.Name())
		r.logger.Info().
			Str("worker", spec.Name()).
			Str("topic", spec.Topic()).
			Str("fingerprint", fp.Short()).
			Msg("worker started")
	}

	r.opts.metrics.ActiveWorkers(len(r.active))
	return res
}

// desired builds the desired set for this tick. Invalid records and records
// whose name is claimed by an earlier record are skipped.
func (r *Reconciler) desired(records []Record, res *Result) (map[Fingerprint]Spec, []Fingerprint) {
	desired := make(map[Fingerprint]Spec, len(records))
	order := make([]Fingerprint, 0, len(records))
	names := make(map[string]Fingerprint, len(records))

	for _, rec := range records {
		spec, err := NewSpec(rec)
		if err == nil {
			if owner, ok := names[spec.Name()]; ok {
				if owner == spec.Fingerprint() {
					// Duplicate line, same identity.
					continue
				}
				err = fmt.Errorf("%w: %q is used by an earlier record", ErrNameConflict, spec.Name())
			}
		}
		if err != nil {
			res.Skipped = append(res.Skipped, Failure{Record: rec, Err: err})
			r.opts.metrics.RecordSkipped(Reason(err))
			r.logger.Warn().Err(err).Str("record", rec.String()).Msg("record skipped")
			continue
		}
		names[spec.Name()] = spec.Fingerprint()
		desired[spec.Fingerprint()] = spec
		order = append(order, spec.Fingerprint())
	}
	return desired, order
}

// stopLocked stops the given workers concurrently and removes them from the
// active map. A worker that fails to stop cleanly is removed all the same.
func (r *Reconciler) stopLocked(ctx context.Context, stale []Fingerprint, res *Result) {
	if len(stale) == 0 {
		return
	}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(len(stale))
	for _, fp := range stale {
		w := r.active[fp]
		p.Go(func() {
			sctx, cancel := context.WithTimeout(ctx, r.opts.disconnectTimeout)
			defer cancel()
			err := w.Stop(sctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed = append(res.Failed, Failure{Record: w.Spec().Record(), Fingerprint: fp, Err: err})
				r.logger.Warn().Err(err).Str("worker", w.Spec().Name()).Msg("worker did not stop cleanly")
			}
		})
	}
	p.Wait()

	for _, fp := range stale {
		w := r.active[fp]
		delete(r.active, fp)
		res.Stopped = append(res.Stopped, fp)
		r.opts.metrics.WorkerStopped(w.Spec().Name())
		r.logger.Info().
			Str("worker", w.Spec().Name()).
			Str("fingerprint", fp.Short()).
			Msg("worker stopped")
	}
}

func (r *Reconciler) startWorker(ctx context.Context, spec Spec) (*Worker, error) {
	if r.opts.newBroker == nil {
		return nil, ErrNoBroker
	}
	if r.opts.newSink == nil {
		return nil, ErrNoSink
	}

	b, err := r.opts.newBroker(spec)
	if err != nil {
		return nil, err
	}
	s, err := r.opts.newSink(spec)
	if err != nil {
		if cerr := b.Close(); cerr != nil {
			r.logger.Debug().Err(cerr).Msg("close broker after sink failure")
		}
		return nil, err
	}

	w := NewWorker(spec, b, s, r.opts.logger, r.opts.middlewares...)

	sctx, cancel := context.WithTimeout(ctx, r.opts.connectTimeout)
	defer cancel()
	if err := w.Start(sctx); err != nil {
		return nil, err
	}
	return w, nil
}
