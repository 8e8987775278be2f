package seq

import (
	"cmp"
	"context"
	"slices"
)

// OrderBy yields the values of s sorted by cmp. The sort is stable and
// materializes s on the first pull.
func OrderBy[T any](s *Seq[T], cmp func(a, b T) int) *Seq[T] {
	return derive(s, func(ctx context.Context, _ runConfig) Iterator[T] {
		return &sortIter[T]{source: s.Iter(ctx), cmp: cmp}
	})
}

// OrderByKey sorts by an ordered key, ascending.
func OrderByKey[T any, K cmp.Ordered](s *Seq[T], key func(T) K) *Seq[T] {
	return OrderBy(s, func(a, b T) int {
		return cmp.Compare(key(a), key(b))
	})
}

// OrderByKeyDescending sorts by an ordered key, descending.
func OrderByKeyDescending[T any, K cmp.Ordered](s *Seq[T], key func(T) K) *Seq[T] {
	return OrderBy(s, func(a, b T) int {
		return cmp.Compare(key(b), key(a))
	})
}

type sortIter[T any] struct {
	source Iterator[T]
	cmp    func(a, b T) int
	items  []T
	loaded bool
}

func (it *sortIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if !it.loaded {
		for {
			v, ok, err := it.source.Next(ctx)
			if err != nil {
				return zero, false, err
			}
			if !ok {
				break
			}
			it.items = append(it.items, v)
		}
		it.loaded = true
		slices.SortStableFunc(it.items, it.cmp)
	}
	if len(it.items) == 0 {
		return zero, false, nil
	}
	v := it.items[0]
	it.items = it.items[1:]
	return v, true, nil
}

func (it *sortIter[T]) Close() error { return it.source.Close() }
