// Package telemetry provides request-scoped metrics sinks.
//
// A Sink is passed explicitly into each resolution call rather than held in
// package state, so concurrent requests never share counters unless the
// caller chooses a shared implementation such as Prometheus.
package telemetry

import (
	"context"
)

// Counter and gauge names emitted by the resolution engine.
const (
	CounterParcelsProcessed = "parcels_processed"
	CounterRulesApplied     = "rules_applied"
	CounterErrors           = "errors_count"
	CounterWarnings         = "warnings_count"
	CounterAPNMissing       = "apn_missing"
	CounterSnapshotLoads    = "snapshot_loads"

	GaugeRuntimeMs = "total_runtime_ms"
)

// Sink receives metrics for one resolution.
type Sink interface {
	// Increment adds one to the named counter.
	Increment(counter string)

	// Observe records the current value of the named gauge.
	Observe(gauge string, value float64)

	// StartSpan begins a timed span. The returned context carries the span
	// for nested calls; the span must be ended by the caller.
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is a timed region of work.
type Span interface {
	End()
}

// Nop discards everything.
type Nop struct{}

func (Nop) Increment(string)        {}
func (Nop) Observe(string, float64) {}
func (Nop) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

type nopSpan struct{}

func (nopSpan) End() {}
