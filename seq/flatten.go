package seq

import (
	"context"

	"github.com/kbukum/seqkit/errors"
	"github.com/kbukum/seqkit/internal/queue"
	"github.com/kbukum/seqkit/workpool"
)

// Concat joins sequences: under Sequential all of the first sequence's
// values come before the second's, etc. The result runs in the mode of the
// first non-empty sequence; changing its mode re-runs the same concatenation
// under the new mode. Empty sequences are dropped and nested concatenations
// in the same mode are spliced in, so chains of Concat/Append stay flat.
func Concat[T any](seqs ...*Seq[T]) *Seq[T] {
	var head *Seq[T]
	for _, s := range seqs {
		if !s.empty {
			head = s
			break
		}
	}
	if head == nil {
		return Empty[T]()
	}
	return concatIn(head.mode, head.pool, seqs)
}

func concatIn[T any](mode Mode, pool *workpool.Pool, seqs []*Seq[T]) *Seq[T] {
	var parts []*Seq[T]
	for _, s := range seqs {
		switch {
		case s.empty:
		case s.parts != nil && s.mode == mode && s.pool == pool:
			parts = append(parts, s.parts...)
		default:
			parts = append(parts, s)
		}
	}
	switch len(parts) {
	case 0:
		return Empty[T]()
	case 1:
		if parts[0].mode == mode && parts[0].pool == pool {
			return parts[0]
		}
	}
	return &Seq[T]{
		mode:  mode,
		pool:  pool,
		parts: parts,
		open: func(ctx context.Context, cfg runConfig) Iterator[T] {
			return runFlatten(ctx, func(context.Context) Iterator[*Seq[T]] {
				return &sliceIter[*Seq[T]]{items: parts}
			}, cfg)
		},
	}
}

// Append concatenates the value produced by fn after s.
func Append[T any](s *Seq[T], fn func(context.Context) (T, error)) *Seq[T] {
	return concatIn(s.mode, s.pool, []*Seq[T]{s, Async(fn)})
}

// Prepend concatenates the value produced by fn before s.
func Prepend[T any](s *Seq[T], fn func(context.Context) (T, error)) *Seq[T] {
	return concatIn(s.mode, s.pool, []*Seq[T]{Async(fn), s})
}

// Merge concatenates seqs without preserving order: values are yielded as
// soon as any sequence produces them.
func Merge[T any](seqs ...*Seq[T]) *Seq[T] {
	return Concat(seqs...).Unordered()
}

// FlatMap expands each value into a sequence and flattens the results.
func FlatMap[T, U any](s *Seq[T], fn func(context.Context, T) (*Seq[U], error)) *Seq[U] {
	return Flatten(Map(s, fn))
}

// Flatten yields every value of every inner sequence, running in the mode of
// s.
func Flatten[T any](s *Seq[*Seq[T]]) *Seq[T] {
	return derive(s, func(ctx context.Context, cfg runConfig) Iterator[T] {
		return runFlatten(ctx, s.Iter, cfg)
	})
}

func runFlatten[T any](ctx context.Context, outer func(context.Context) Iterator[*Seq[T]], cfg runConfig) Iterator[T] {
	r := newRun(ctx, engineFlatten, cfg)
	src := outer(r.ctx)
	switch {
	case cfg.mode.IsSequential():
		return &flattenIter[T]{runIter: runIter{r: r}, outer: src}
	case cfg.mode.IsUnordered():
		q := queue.New[T]()
		produce(r, src, func(inner *Seq[T]) error {
			return r.drain(func(ctx context.Context) {
				_ = pump(ctx, r, inner, q.Write)
			})
		})
		r.completeWhenIdle(q.CompleteWithError)
		return &queueIter[T]{runIter: runIter{r: r}, q: q}
	default:
		return orderedFlatten(r, src)
	}
}

// pump drains s into emit, recording any fault on r.
func pump[T any](ctx context.Context, r *run, s *Seq[T], emit func(T) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.NewPanicError(p)
		}
		r.fault(err)
	}()
	it := s.Iter(ctx)
	defer it.Close()
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := emit(v); err != nil {
			return err
		}
	}
}

// flattenIter drains each inner sequence on the consumer goroutine before
// advancing the outer one.
type flattenIter[T any] struct {
	runIter
	outer Iterator[*Seq[T]]
	inner Iterator[T]
}

func (it *flattenIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.done {
		return zero, false, it.err
	}
	defer it.link(ctx)()

	for {
		if it.inner != nil {
			v, ok, err := it.inner.Next(it.r.ctx)
			if err != nil {
				return zero, false, it.failSequential(ctx, err)
			}
			if ok {
				return v, true, nil
			}
			_ = it.inner.Close()
			it.inner = nil
		}
		s, ok, err := it.outer.Next(it.r.ctx)
		if err != nil {
			return zero, false, it.failSequential(ctx, err)
		}
		if !ok {
			return zero, false, it.exhausted()
		}
		it.inner = s.Iter(it.r.ctx)
	}
}

func (it *flattenIter[T]) Close() error {
	it.r.cancel()
	if it.inner != nil {
		_ = it.inner.Close()
	}
	err := it.outer.Close()
	it.close()
	return err
}

// orderedFlatten fills one inner queue per outer item concurrently; the
// consumer drains the inner queues in outer order.
func orderedFlatten[T any](r *run, src Iterator[*Seq[T]]) Iterator[T] {
	outer := queue.New[*queue.Queue[T]]()
	produce(r, src, func(s *Seq[T]) error {
		inner := queue.New[T]()
		if err := outer.Write(inner); err != nil {
			return err
		}
		err := r.drain(func(ctx context.Context) {
			inner.CompleteWithError(pump(ctx, r, s, inner.Write))
		})
		if err != nil {
			inner.CompleteWithError(err)
		}
		return err
	})
	r.completeWhenIdle(outer.CompleteWithError)
	return &orderedFlattenIter[T]{runIter: runIter{r: r}, outer: outer}
}

type orderedFlattenIter[T any] struct {
	runIter
	outer *queue.Queue[*queue.Queue[T]]
	cur   *queue.Queue[T]
}

func (it *orderedFlattenIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.done {
		return zero, false, it.err
	}
	for {
		if err := it.halt(ctx); err != nil {
			return zero, false, err
		}
		if it.cur == nil {
			inner, ok, err := it.outer.Read(ctx)
			if ctx.Err() != nil {
				return zero, false, it.interrupted(ctx)
			}
			if err != nil || !ok {
				return zero, false, it.finish(err)
			}
			it.cur = inner
		}
		if v, ok := it.cur.TryRead(); ok {
			return v, true, nil
		}
		readable, err := it.cur.WaitReadable(ctx)
		if err != nil {
			return zero, false, it.interrupted(ctx)
		}
		if !readable {
			if err := it.cur.Err(); err != nil {
				return zero, false, it.failed(ctx, err)
			}
			it.cur = nil
		}
	}
}

func (it *orderedFlattenIter[T]) Close() error {
	it.close()
	return nil
}
