package seq

import "context"

// Take yields at most the first n values of s. Reaching n closes the
// upstream run, which stops its outstanding work.
func Take[T any](s *Seq[T], n int) *Seq[T] {
	return derive(s, func(ctx context.Context, _ runConfig) Iterator[T] {
		return &takeIter[T]{source: s.Iter(ctx), left: n}
	})
}

type takeIter[T any] struct {
	source Iterator[T]
	left   int
	closed bool
}

func (it *takeIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.left <= 0 {
		return zero, false, it.stop()
	}
	v, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	it.left--
	return v, true, nil
}

func (it *takeIter[T]) stop() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.source.Close()
}

func (it *takeIter[T]) Close() error { return it.stop() }
