// Package errors provides the fault types reported by sequence runs.
//
// Faults carry a machine-readable code (step, source, cancellation, panic)
// and an optional cause. Concurrent runs collect every fault observed while
// work was in flight with an Aggregator, which flattens nested composites,
// drops duplicate instances and finalizes to nil, the sole fault, or a
// *multierror.Error preserving insertion order.
//
//	var agg errors.Aggregator
//	agg.Add(err1)
//	agg.Add(err2)
//	return agg.Finalize()
//
// Consumer-initiated cancellation is reported as a distinct kind, see
// Canceled and IsCanceled.
package errors
