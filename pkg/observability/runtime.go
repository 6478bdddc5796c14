package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricDispatchTotal    = "axon.dispatch.total"
	metricDispatchDuration = "axon.dispatch.duration.seconds"
	metricAtomErrorsTotal  = "axon.atom.errors.total"
	metricInflightAtoms    = "axon.inflight.atoms"
	metricWorkUnitsTotal   = "axon.workunits.recorded.total"
	metricSignalsTotal     = "axon.signals.emitted.total"

	attrLane   = "lane"
	attrNode   = "node"
	attrKind   = "kind"
	attrSignal = "signal"
)

// Runtime holds OTel instruments for workflow dispatch metrics.
type Runtime struct {
	dispatchTotal    metric.Int64Counter
	dispatchDuration metric.Float64Histogram
	atomErrors       metric.Int64Counter
	inflightAtoms    metric.Int64UpDownCounter
	workUnits        metric.Float64Counter
	signalsEmitted   metric.Int64Counter
}

// NewRuntime creates dispatch metric instruments from the given meter.
func NewRuntime(mt metric.Meter) (*Runtime, error) {
	dispatches, err := mt.Int64Counter(metricDispatchTotal,
		metric.WithDescription("Total atom dispatches by lane"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDispatchTotal, err)
	}

	dispatchDur, err := mt.Float64Histogram(metricDispatchDuration,
		metric.WithDescription("Per-dispatch execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDispatchDuration, err)
	}

	atomErrors, err := mt.Int64Counter(metricAtomErrorsTotal,
		metric.WithDescription("Atom execution failures by node"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricAtomErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflightAtoms,
		metric.WithDescription("Atoms currently executing"),
		metric.WithUnit("{atom}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflightAtoms, err)
	}

	workUnits, err := mt.Float64Counter(metricWorkUnitsTotal,
		metric.WithDescription("Work units recorded against the meter"),
		metric.WithUnit("{workunit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricWorkUnitsTotal, err)
	}

	signals, err := mt.Int64Counter(metricSignalsTotal,
		metric.WithDescription("Signals appended to the sink by name"),
		metric.WithUnit("{signal}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSignalsTotal, err)
	}

	return &Runtime{
		dispatchTotal:    dispatches,
		dispatchDuration: dispatchDur,
		atomErrors:       atomErrors,
		inflightAtoms:    inflight,
		workUnits:        workUnits,
		signalsEmitted:   signals,
	}, nil
}

// RecordDispatch records one completed atom dispatch.
// Safe to call on a nil receiver (no-op).
func (rt *Runtime) RecordDispatch(ctx context.Context, lane string, took time.Duration) {
	if rt == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrLane, lane))
	rt.dispatchTotal.Add(ctx, 1, attrs)
	rt.dispatchDuration.Record(ctx, took.Seconds(), attrs)
}

// RecordAtomError records one atom failure.
// Safe to call on a nil receiver (no-op).
func (rt *Runtime) RecordAtomError(ctx context.Context, node string) {
	if rt == nil {
		return
	}

	rt.atomErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(attrNode, node)))
}

// TrackInflightAtom increments the in-flight gauge and returns a
// function to decrement it. Safe to call on a nil receiver.
func (rt *Runtime) TrackInflightAtom(ctx context.Context, lane string) func() {
	if rt == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(attribute.String(attrLane, lane))
	rt.inflightAtoms.Add(ctx, 1, attrs)

	return func() {
		rt.inflightAtoms.Add(ctx, -1, attrs)
	}
}

// RecordWorkUnits records admitted work unit cost by contract kind.
// Safe to call on a nil receiver (no-op).
func (rt *Runtime) RecordWorkUnits(ctx context.Context, cost float64, kind string) {
	if rt == nil {
		return
	}

	rt.workUnits.Add(ctx, cost, metric.WithAttributes(attribute.String(attrKind, kind)))
}

// RecordSignal records one sink append. Signal names in a workflow form
// a small fixed set, so the attribute stays low-cardinality.
// Safe to call on a nil receiver (no-op).
func (rt *Runtime) RecordSignal(ctx context.Context, name string) {
	if rt == nil {
		return
	}

	rt.signalsEmitted.Add(ctx, 1, metric.WithAttributes(attribute.String(attrSignal, name)))
}
