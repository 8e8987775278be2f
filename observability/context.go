package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RunObservation tracks one enumeration of a sequence: its span and the
// run metrics.
type RunObservation struct {
	Engine    string
	Mode      string
	RunID     string
	StartTime time.Time
	// Metrics may be nil, in which case metric recording is skipped.
	Metrics *Metrics
	// Tracing disables span creation when false.
	Tracing bool

	span trace.Span
}

// NewRunObservation creates the observation for a run that starts now.
func NewRunObservation(engine, mode, runID string, metrics *Metrics, tracing bool) *RunObservation {
	return &RunObservation{
		Engine:    engine,
		Mode:      mode,
		RunID:     runID,
		StartTime: time.Now(),
		Metrics:   metrics,
		Tracing:   tracing,
	}
}

// Start opens the run span (when tracing) and records the run start. The
// returned context carries the span.
func (o *RunObservation) Start(ctx context.Context) context.Context {
	if o.Tracing {
		ctx, o.span = StartSpan(ctx, SpanPrefix+o.Engine, trace.WithAttributes(
			attribute.String(AttrEngine, o.Engine),
			attribute.String(AttrMode, o.Mode),
			attribute.String(AttrRunID, o.RunID),
		))
	}
	if o.Metrics != nil {
		o.Metrics.RecordRunStart(ctx, o.Engine, o.Mode)
	}
	return ctx
}

// Dispatch records one unit of dispatched work.
func (o *RunObservation) Dispatch(ctx context.Context) {
	if o.Metrics != nil {
		o.Metrics.RecordDispatch(ctx, o.Engine, o.Mode)
	}
}

// Fault records one fault of the given kind.
func (o *RunObservation) Fault(ctx context.Context, kind string) {
	if o.Metrics != nil {
		o.Metrics.RecordFault(ctx, o.Engine, kind)
	}
}

// End closes the span and records the finished run.
func (o *RunObservation) End(ctx context.Context, status string, faults int, err error) {
	duration := time.Since(o.StartTime)

	if o.span != nil {
		if err != nil {
			o.span.RecordError(err)
			o.span.SetStatus(codes.Error, status)
			o.span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
		}
		o.span.SetAttributes(
			attribute.String(AttrStatus, status),
			attribute.Int(AttrFaults, faults),
			attribute.Int64(AttrDurationMs, duration.Milliseconds()),
		)
		o.span.End()
	}

	if o.Metrics != nil {
		o.Metrics.RecordRunEnd(ctx, o.Engine, o.Mode, status, duration)
	}
}

// Duration returns the elapsed time since the run started.
func (o *RunObservation) Duration() time.Duration {
	return time.Since(o.StartTime)
}
