// Package observability provides OpenTelemetry tracing and metrics for
// sequence runs.
//
// Tracing:
//
//	cfg := observability.DefaultTracerConfig("seqdemo")
//	tp, err := observability.InitTracer(ctx, &cfg)
//	defer tp.Shutdown(ctx)
//
// Metrics:
//
//	cfg := observability.DefaultMeterConfig("seqdemo")
//	mp, err := observability.InitMeter(ctx, &cfg)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("seqkit"))
//
// Each run opens one RunObservation, which owns the "seq.<engine>" span and
// records seq.run.*, seq.dispatch.total and seq.fault.total.
package observability
