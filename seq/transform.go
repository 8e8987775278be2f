package seq

import (
	"context"

	"github.com/kbukum/seqkit/errors"
	"github.com/kbukum/seqkit/internal/queue"
	"github.com/kbukum/seqkit/workpool"
)

// step is the fused per-item logic of a transform: keep reports whether the
// item survives every filter in the chain.
type step[T any] func(ctx context.Context, item any) (v T, keep bool, err error)

// transform is a fused chain of map/filter steps over one source. bind runs
// once per run so stateful steps get fresh state per enumeration.
type transform[T any] struct {
	source func(ctx context.Context) Iterator[any]
	bind   func(r *run) step[T]
}

// fuse appends next to s. When s is already a transform the new logic
// composes into its step, so the chain keeps a single execution layer.
func fuse[T, U any](s *Seq[T], next func(r *run) func(ctx context.Context, v T) (U, bool, error)) *Seq[U] {
	var xf *transform[U]
	if prev := s.xf; prev != nil {
		xf = &transform[U]{
			source: prev.source,
			bind: func(r *run) step[U] {
				first, then := prev.bind(r), next(r)
				return func(ctx context.Context, item any) (U, bool, error) {
					v, keep, err := first(ctx, item)
					if err != nil || !keep {
						var zero U
						return zero, false, err
					}
					return then(ctx, v)
				}
			},
		}
	} else {
		xf = &transform[U]{
			source: func(ctx context.Context) Iterator[any] {
				return anyIter[T]{source: s.Iter(ctx)}
			},
			bind: func(r *run) step[U] {
				then := next(r)
				return func(ctx context.Context, item any) (U, bool, error) {
					return then(ctx, item.(T))
				}
			},
		}
	}
	return &Seq[U]{
		mode: s.mode,
		pool: s.pool,
		xf:   xf,
		open: func(ctx context.Context, cfg runConfig) Iterator[U] {
			return runTransform(ctx, xf, cfg)
		},
	}
}

func stateless[T, U any](fn func(ctx context.Context, v T) (U, bool, error)) func(*run) func(context.Context, T) (U, bool, error) {
	return func(*run) func(context.Context, T) (U, bool, error) { return fn }
}

// Map transforms each value using fn.
func Map[T, U any](s *Seq[T], fn func(context.Context, T) (U, error)) *Seq[U] {
	return fuse(s, stateless(func(ctx context.Context, v T) (U, bool, error) {
		u, err := fn(ctx, v)
		return u, err == nil, err
	}))
}

// Filter keeps only values that satisfy the predicate.
func Filter[T any](s *Seq[T], fn func(T) bool) *Seq[T] {
	return fuse(s, stateless(func(_ context.Context, v T) (T, bool, error) {
		return v, fn(v), nil
	}))
}

// Where is Filter with a context-aware predicate that may fail.
func Where[T any](s *Seq[T], fn func(context.Context, T) (bool, error)) *Seq[T] {
	return fuse(s, stateless(func(ctx context.Context, v T) (T, bool, error) {
		keep, err := fn(ctx, v)
		return v, keep && err == nil, err
	}))
}

// Tap calls fn as a side-effect for each value, then passes the value through unchanged.
func Tap[T any](s *Seq[T], fn func(context.Context, T) error) *Seq[T] {
	return fuse(s, stateless(func(ctx context.Context, v T) (T, bool, error) {
		if err := fn(ctx, v); err != nil {
			return v, false, err
		}
		return v, true, nil
	}))
}

// MapFilter maps and filters in one step: values for which fn reports
// keep=false are dropped.
func MapFilter[T, U any](s *Seq[T], fn func(context.Context, T) (U, bool, error)) *Seq[U] {
	return fuse(s, stateless(fn))
}

func runTransform[T any](ctx context.Context, xf *transform[T], cfg runConfig) Iterator[T] {
	r := newRun(ctx, engineTransform, cfg)
	src := xf.source(r.ctx)
	st := guard(xf.bind(r))
	switch {
	case cfg.mode.IsSequential():
		return &transformIter[T]{runIter: runIter{r: r}, src: src, step: st}
	case cfg.mode.IsUnordered():
		return unorderedTransform(r, src, st)
	default:
		return orderedTransform(r, src, st)
	}
}

// guard turns a panic in caller logic into a fault.
func guard[T any](st step[T]) step[T] {
	return func(ctx context.Context, item any) (v T, keep bool, err error) {
		defer func() {
			if p := recover(); p != nil {
				var zero T
				v, keep, err = zero, false, errors.NewPanicError(p)
			}
		}()
		return st(ctx, item)
	}
}

// transformIter runs the fused step on the consumer goroutine.
type transformIter[T any] struct {
	runIter
	src  Iterator[any]
	step step[T]
}

func (it *transformIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.done {
		return zero, false, it.err
	}
	defer it.link(ctx)()

	for {
		item, ok, err := it.src.Next(it.r.ctx)
		if err != nil {
			return zero, false, it.failSequential(ctx, err)
		}
		if !ok {
			return zero, false, it.exhausted()
		}
		v, keep, err := it.step(it.r.ctx, item)
		if err != nil {
			return zero, false, it.failSequential(ctx, err)
		}
		if keep {
			return v, true, nil
		}
	}
}

func (it *transformIter[T]) Close() error {
	it.r.cancel()
	err := it.src.Close()
	it.close()
	return err
}

// produce iterates src on a tracked task until it is exhausted, fails, or
// the run is canceled, handing each item to each.
func produce[S any](r *run, src Iterator[S], each func(item S) error) {
	r.goTask(func(ctx context.Context) {
		defer src.Close()
		for ctx.Err() == nil {
			item, ok, err := src.Next(ctx)
			if err != nil {
				r.fault(err)
				return
			}
			if !ok {
				return
			}
			if err := each(item); err != nil {
				r.fault(err)
				return
			}
		}
	})
}

// unorderedTransform dispatches every step call and yields results in
// completion order through one shared queue.
func unorderedTransform[T any](r *run, src Iterator[any], st step[T]) Iterator[T] {
	q := queue.New[T]()
	produce(r, src, func(item any) error {
		return r.dispatch(func(ctx context.Context) {
			v, keep, err := st(ctx, item)
			if err != nil {
				r.fault(err)
				return
			}
			if keep {
				_ = q.Write(v)
			}
		})
	})
	r.completeWhenIdle(q.CompleteWithError)
	return &queueIter[T]{runIter: runIter{r: r}, q: q}
}

// queueIter yields whatever a run's producers wrote, in arrival order.
type queueIter[T any] struct {
	runIter
	q *queue.Queue[T]
}

func (it *queueIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.done {
		return zero, false, it.err
	}
	for {
		if err := it.halt(ctx); err != nil {
			return zero, false, err
		}
		if v, ok := it.q.TryRead(); ok {
			return v, true, nil
		}
		readable, err := it.q.WaitReadable(ctx)
		if err != nil {
			return zero, false, it.interrupted(ctx)
		}
		if !readable {
			return zero, false, it.finish(it.q.Err())
		}
	}
}

func (it *queueIter[T]) Close() error {
	it.close()
	return nil
}

type outcome[T any] struct {
	val  T
	keep bool
}

// orderedTransform dispatches every step call like the unordered engine but
// queues the pending results in source order; the consumer awaits them one
// at a time.
func orderedTransform[T any](r *run, src Iterator[any], st step[T]) Iterator[T] {
	q := queue.New[*workpool.Future[outcome[T]]]()
	produce(r, src, func(item any) error {
		f, err := submit(r, func(ctx context.Context) (outcome[T], error) {
			v, keep, err := st(ctx, item)
			return outcome[T]{val: v, keep: keep}, err
		})
		if err != nil {
			return err
		}
		return q.Write(f)
	})
	r.completeWhenIdle(q.CompleteWithError)
	return &orderedIter[T]{runIter: runIter{r: r}, q: q}
}

type orderedIter[T any] struct {
	runIter
	q *queue.Queue[*workpool.Future[outcome[T]]]
}

func (it *orderedIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.done {
		return zero, false, it.err
	}
	for {
		if err := it.halt(ctx); err != nil {
			return zero, false, err
		}
		f, ok, err := it.q.Read(ctx)
		if ctx.Err() != nil {
			return zero, false, it.interrupted(ctx)
		}
		if err != nil || !ok {
			return zero, false, it.finish(err)
		}
		out, err := f.Await(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return zero, false, it.interrupted(ctx)
			}
			return zero, false, it.failed(ctx, err)
		}
		if out.keep {
			return out.val, true, nil
		}
	}
}

func (it *orderedIter[T]) Close() error {
	it.close()
	return nil
}
