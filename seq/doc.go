// Package seq provides lazily evaluated, pull-based sequences whose
// combinators run under one of five scheduling modes.
//
// A *Seq[T] is an immutable descriptor. Nothing runs until a consumer pulls
// from it with Collect, ForEach, Drain or Iter, and every enumeration starts
// a fresh run with its own cancellation, fault aggregation and tasks.
//
//	words := seq.FromSlice([]string{"a", "bb", "a", "ccc"})
//	lens := seq.Map(seq.Distinct(words), func(_ context.Context, w string) (int, error) {
//		return len(w), nil
//	}).Parallel()
//	got, err := seq.Collect(ctx, lens)
//
// Modes:
//   - Sequential: one step at a time on the consumer goroutine.
//   - ConcurrentOrdered / ConcurrentUnordered: one goroutine per step call.
//   - ParallelOrdered / ParallelUnordered: step calls go through a bounded
//     workpool.Pool.
//
// Ordered modes yield in source order; unordered modes yield in completion
// order. Sequential runs stop at the first fault and report it as-is.
// Concurrent and parallel runs let dispatched work finish, stop dispatching,
// and report every fault together (see errors.Aggregator). A canceled caller
// context is reported as errors.Canceled, never merged with other faults.
//
// Adjacent Map, Filter, Where, Tap, MapFilter and fused set steps compose
// into a single execution layer. Changing the mode of such a fused chain, or
// of a Concat, re-runs that same engine under the new mode; on any other
// sequence the mode is only inherited by later combinators.
package seq
