package seq

import (
	"context"

	"github.com/kbukum/seqkit/workpool"
)

// Iterator provides pull-based sequential access to a stream of values.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	// ctx bounds this call only; the run itself follows the context given
	// to Seq.Iter.
	Next(ctx context.Context) (T, bool, error)
	// Close stops the run and releases everything it holds. Outstanding
	// work is signaled and waited for.
	Close() error
}

// runConfig is what a run inherits from the descriptor that opened it.
type runConfig struct {
	mode Mode
	pool *workpool.Pool
}

// Seq is a lazy, immutable sequence descriptor. No work happens until values
// are pulled; each enumeration starts an independent run.
type Seq[T any] struct {
	mode Mode
	pool *workpool.Pool
	open func(ctx context.Context, cfg runConfig) Iterator[T]

	// xf is set when the sequence is a fused transform, parts when it is a
	// concatenation. Both let later combinators extend the engine in place.
	xf    *transform[T]
	parts []*Seq[T]
	empty bool
}

// Runnable is a fully-configured consumer ready to execute.
type Runnable struct {
	run func(ctx context.Context) error
}

// Run executes the sequence until completion or context cancellation.
func (r *Runnable) Run(ctx context.Context) error {
	return r.run(ctx)
}

// Iter starts a run. ctx is linked into the run: canceling it stops all
// outstanding work. The caller must Close the iterator.
func (s *Seq[T]) Iter(ctx context.Context) Iterator[T] {
	return s.open(ctx, runConfig{mode: s.mode, pool: s.pool})
}

// Mode returns the scheduling mode of s.
func (s *Seq[T]) Mode() Mode {
	return s.mode
}

// WithMode returns a copy of s running under m.
func (s *Seq[T]) WithMode(m Mode) *Seq[T] {
	c := *s
	c.mode = m
	return &c
}

func (s *Seq[T]) Sequential() *Seq[T] { return s.WithMode(Sequential) }
func (s *Seq[T]) Ordered() *Seq[T]    { return s.WithMode(s.mode.MakeOrdered()) }
func (s *Seq[T]) Unordered() *Seq[T]  { return s.WithMode(s.mode.MakeUnordered()) }
func (s *Seq[T]) Concurrent() *Seq[T] { return s.WithMode(s.mode.MakeConcurrent()) }
func (s *Seq[T]) Parallel() *Seq[T]   { return s.WithMode(s.mode.MakeParallel()) }

// WithPool returns a copy of s whose parallel work is dispatched to p
// instead of workpool.Default().
func (s *Seq[T]) WithPool(p *workpool.Pool) *Seq[T] {
	c := *s
	c.pool = p
	return &c
}

// under returns s configured to run as cfg describes.
func (s *Seq[T]) under(cfg runConfig) *Seq[T] {
	if s.mode == cfg.mode && s.pool == cfg.pool {
		return s
	}
	c := *s
	c.mode, c.pool = cfg.mode, cfg.pool
	return &c
}

// derive builds a sequence that inherits the mode and pool of s.
func derive[T, U any](s *Seq[T], open func(ctx context.Context, cfg runConfig) Iterator[U]) *Seq[U] {
	return &Seq[U]{mode: s.mode, pool: s.pool, open: open}
}

// --- Constructors ---

func source[T any](open func(ctx context.Context) Iterator[T]) *Seq[T] {
	return &Seq[T]{
		mode: currentEnv().mode,
		open: func(ctx context.Context, _ runConfig) Iterator[T] { return open(ctx) },
	}
}

// FromSlice creates a sequence over a slice of values.
func FromSlice[T any](items []T) *Seq[T] {
	return source(func(_ context.Context) Iterator[T] {
		return &sliceIter[T]{items: items}
	})
}

// Of creates a sequence over its arguments.
func Of[T any](items ...T) *Seq[T] {
	return FromSlice(items)
}

// From creates a sequence from an existing Iterator. The result can only be
// enumerated once.
func From[T any](iter Iterator[T]) *Seq[T] {
	return source(func(_ context.Context) Iterator[T] {
		return iter
	})
}

// FromFunc creates a sequence from a factory that produces an Iterator per
// enumeration.
func FromFunc[T any](fn func(ctx context.Context) Iterator[T]) *Seq[T] {
	return source(fn)
}

// Range yields count consecutive integers starting at start.
func Range(start, count int) *Seq[int] {
	return source(func(_ context.Context) Iterator[int] {
		return &rangeIter{next: start, end: start + max(count, 0)}
	})
}

// Async yields the single value produced by fn. fn runs when the value is
// first pulled, once per enumeration.
func Async[T any](fn func(ctx context.Context) (T, error)) *Seq[T] {
	return source(func(_ context.Context) Iterator[T] {
		return &asyncIter[T]{fn: fn}
	})
}

// Empty returns a sequence with no elements. Concatenating it is a no-op.
func Empty[T any]() *Seq[T] {
	return &Seq[T]{
		mode:  Sequential,
		open:  openEmpty[T],
		empty: true,
	}
}

func openEmpty[T any](context.Context, runConfig) Iterator[T] {
	return emptyIter[T]{}
}

// --- Terminals ---

// Drain creates a Runnable that pulls all values and sends each to sink.
func Drain[T any](s *Seq[T], sink func(context.Context, T) error) *Runnable {
	return &Runnable{
		run: func(ctx context.Context) error {
			iter := s.Iter(ctx)
			defer iter.Close()
			for {
				val, ok, err := iter.Next(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				if err := sink(ctx, val); err != nil {
					return err
				}
			}
		},
	}
}

// Collect runs the sequence and returns all values as a slice. On failure
// the values pulled so far are returned with the error.
func Collect[T any](ctx context.Context, s *Seq[T]) ([]T, error) {
	iter := s.Iter(ctx)
	defer iter.Close()
	var result []T
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil {
			return result, err
		}
		if !ok {
			return result, nil
		}
		result = append(result, val)
	}
}

// ForEach pulls all values and calls fn for each. Convenience wrapper around Drain.
func ForEach[T any](ctx context.Context, s *Seq[T], fn func(context.Context, T) error) error {
	return Drain(s, fn).Run(ctx)
}

// Reduce folds every value into an accumulator.
func Reduce[T, R any](ctx context.Context, s *Seq[T], init R, fn func(R, T) R) (R, error) {
	acc := init
	err := ForEach(ctx, s, func(_ context.Context, v T) error {
		acc = fn(acc, v)
		return nil
	})
	return acc, err
}

// --- Internal iterators ---

type sliceIter[T any] struct {
	items []T
	index int
}

func (it *sliceIter[T]) Next(_ context.Context) (T, bool, error) {
	if it.index >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	val := it.items[it.index]
	it.index++
	return val, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

type rangeIter struct {
	next, end int
}

func (it *rangeIter) Next(_ context.Context) (int, bool, error) {
	if it.next >= it.end {
		return 0, false, nil
	}
	v := it.next
	it.next++
	return v, true, nil
}

func (it *rangeIter) Close() error { return nil }

type asyncIter[T any] struct {
	fn   func(context.Context) (T, error)
	done bool
}

func (it *asyncIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.done {
		return zero, false, nil
	}
	it.done = true
	v, err := it.fn(ctx)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (it *asyncIter[T]) Close() error { return nil }

type emptyIter[T any] struct{}

func (emptyIter[T]) Next(context.Context) (T, bool, error) {
	var zero T
	return zero, false, nil
}

func (emptyIter[T]) Close() error { return nil }

// anyIter erases the element type so fused steps can be composed across
// type changes.
type anyIter[T any] struct {
	source Iterator[T]
}

func (it anyIter[T]) Next(ctx context.Context) (any, bool, error) {
	v, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	return v, true, nil
}

func (it anyIter[T]) Close() error { return it.source.Close() }
