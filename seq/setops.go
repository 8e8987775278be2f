package seq

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

func identity[T any](v T) T { return v }

// Distinct drops repeated values, keeping the first occurrence.
func Distinct[T comparable](s *Seq[T]) *Seq[T] {
	return DistinctBy(s, identity[T])
}

// DistinctBy drops values whose key was already seen in this enumeration.
//
// The membership test is placed when a run opens, from the mode the run
// executes in. Under Sequential and the unordered modes it fuses into the
// transform engine over s and uses a concurrent set. Ordered concurrent and
// parallel modes test membership on the consumer side so that the first
// occurrence in source order is the one kept.
func DistinctBy[T any, K comparable](s *Seq[T], key func(T) K) *Seq[T] {
	return derive(s, func(ctx context.Context, cfg runConfig) Iterator[T] {
		upstream := s.under(cfg)
		if cfg.mode.IsOrdered() && !cfg.mode.IsSequential() {
			return &distinctIter[T, K]{source: upstream.Iter(ctx), key: key, seen: make(map[K]struct{})}
		}
		return fuse(upstream, func(*run) func(context.Context, T) (T, bool, error) {
			seen := xsync.NewMapOf[K, struct{}]()
			return func(_ context.Context, v T) (T, bool, error) {
				_, loaded := seen.LoadOrStore(key(v), struct{}{})
				return v, !loaded, nil
			}
		}).open(ctx, cfg)
	})
}

type distinctIter[T any, K comparable] struct {
	source Iterator[T]
	key    func(T) K
	seen   map[K]struct{}
}

func (it *distinctIter[T, K]) Next(ctx context.Context) (T, bool, error) {
	for {
		v, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return v, false, err
		}
		k := it.key(v)
		if _, dup := it.seen[k]; !dup {
			it.seen[k] = struct{}{}
			return v, true, nil
		}
	}
}

func (it *distinctIter[T, K]) Close() error { return it.source.Close() }

// Union yields the distinct values of a followed by those of b.
func Union[T comparable](a, b *Seq[T]) *Seq[T] {
	return UnionBy(a, b, identity[T])
}

// UnionBy is Union comparing values by key.
func UnionBy[T any, K comparable](a, b *Seq[T], key func(T) K) *Seq[T] {
	return DistinctBy(Concat(a, b), key)
}

// Except yields the distinct values of a that do not occur in b.
func Except[T comparable](a, b *Seq[T]) *Seq[T] {
	return ExceptBy(a, b, identity[T])
}

// ExceptBy is Except comparing values by key.
func ExceptBy[T any, K comparable](a, b *Seq[T], key func(T) K) *Seq[T] {
	return DistinctBy(probe(a, b, key, false), key)
}

// Intersect yields the distinct values of a that also occur in b.
func Intersect[T comparable](a, b *Seq[T]) *Seq[T] {
	return IntersectBy(a, b, identity[T])
}

// IntersectBy is Intersect comparing values by key.
func IntersectBy[T any, K comparable](a, b *Seq[T], key func(T) K) *Seq[T] {
	return DistinctBy(probe(a, b, key, true), key)
}

// probe keeps the values of a whose key is (found) or is not (!found) in
// b. Each run starts materializing b's key set immediately; every step
// waits until the set is complete before testing membership.
func probe[T any, K comparable](a, b *Seq[T], key func(T) K, found bool) *Seq[T] {
	return fuse(a, func(r *run) func(context.Context, T) (T, bool, error) {
		set := make(map[K]struct{})
		g, gctx := errgroup.WithContext(r.ctx)
		g.Go(func() error {
			it := b.Iter(gctx)
			defer it.Close()
			for {
				v, ok, err := it.Next(gctx)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				set[key(v)] = struct{}{}
			}
		})
		r.goTask(func(context.Context) { r.fault(g.Wait()) })

		return func(_ context.Context, v T) (T, bool, error) {
			if err := g.Wait(); err != nil {
				return v, false, err
			}
			_, in := set[key(v)]
			return v, in == found, nil
		}
	})
}
