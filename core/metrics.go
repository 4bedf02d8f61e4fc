package core

import "time"

// Metrics receives reconciliation events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	WorkerStarted(name string)
	WorkerStopped(name string)
	WorkerFailed(reason string)
	RecordSkipped(reason string)
	ActiveWorkers(n int)
	ReconcileDuration(d time.Duration)
}

// NopMetrics discards every event.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) WorkerStarted(string)            {}
func (NopMetrics) WorkerStopped(string)            {}
func (NopMetrics) WorkerFailed(string)             {}
func (NopMetrics) RecordSkipped(string)            {}
func (NopMetrics) ActiveWorkers(int)               {}
func (NopMetrics) ReconcileDuration(time.Duration) {}
