// Package metrics provides a Prometheus-backed collector for reconciliation
// and message processing events.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miladsoleymani/topicsink/core"
	"github.com/miladsoleymani/topicsink/core/middleware"
)

// Prometheus implements core.Metrics and middleware.MetricsCollector.
type Prometheus struct {
	workersStarted  *prometheus.CounterVec
	workersStopped  *prometheus.CounterVec
	workerFailures  *prometheus.CounterVec
	recordsSkipped  *prometheus.CounterVec
	activeWorkers   prometheus.Gauge
	reconcileTime   prometheus.Histogram
	messages        *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec
}

var (
	_ core.Metrics                = (*Prometheus)(nil)
	_ middleware.MetricsCollector = (*Prometheus)(nil)
)

// NewPrometheus creates the collector and registers it with reg
// (prometheus.DefaultRegisterer if nil). namespace defaults to "topicsink".
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "topicsink"
	}

	p := &Prometheus{
		workersStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "workers_started_total",
			Help:      "Workers started, by worker name.",
		}, []string{"worker"}),
		workersStopped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "workers_stopped_total",
			Help:      "Workers stopped, by worker name.",
		}, []string{"worker"}),
		workerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "worker_start_failures_total",
			Help:      "Failed worker starts, by reason.",
		}, []string{"reason"}),
		recordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "records_skipped_total",
			Help:      "Configuration records skipped, by reason.",
		}, []string{"reason"}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "active_workers",
			Help:      "Workers currently running.",
		}),
		reconcileTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one reconciliation tick.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "messages_total",
			Help:      "Messages received, by worker and outcome.",
		}, []string{"worker", "outcome"}),
		messageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "append_duration_seconds",
			Help:      "Time spent appending one message to its sink.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"worker"}),
	}

	reg.MustRegister(
		p.workersStarted,
		p.workersStopped,
		p.workerFailures,
		p.recordsSkipped,
		p.activeWorkers,
		p.reconcileTime,
		p.messages,
		p.messageDuration,
	)
	return p
}

func (p *Prometheus) WorkerStarted(name string) {
	p.workersStarted.WithLabelValues(name).Inc()
}

func (p *Prometheus) WorkerStopped(name string) {
	p.workersStopped.WithLabelValues(name).Inc()
}

func (p *Prometheus) WorkerFailed(reason string) {
	p.workerFailures.WithLabelValues(reason).Inc()
}

func (p *Prometheus) RecordSkipped(reason string) {
	p.recordsSkipped.WithLabelValues(reason).Inc()
}

func (p *Prometheus) ActiveWorkers(n int) {
	p.activeWorkers.Set(float64(n))
}

func (p *Prometheus) ReconcileDuration(d time.Duration) {
	p.reconcileTime.Observe(d.Seconds())
}

func (p *Prometheus) MessageProcessed(worker string, d time.Duration, err error) {
	outcome := "written"
	if err != nil {
		outcome = core.Reason(err)
	}
	p.messages.WithLabelValues(worker, outcome).Inc()
	p.messageDuration.WithLabelValues(worker).Observe(d.Seconds())
}
