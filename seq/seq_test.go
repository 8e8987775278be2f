package seq

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/kbukum/seqkit/workpool"
)

var allModes = []Mode{Sequential, ConcurrentOrdered, ConcurrentUnordered, ParallelOrdered, ParallelUnordered}

func intSliceEqual(a, b []int) bool {
	return slices.Equal(a, b)
}

func sorted[T interface{ ~int | ~string }](v []T) []T {
	out := slices.Clone(v)
	slices.Sort(out)
	return out
}

// inMode returns s under m with a pool large enough for the timing tests.
func inMode[T any](s *Seq[T], m Mode) *Seq[T] {
	return s.WithMode(m).WithPool(workpool.New(4))
}

func TestFromSlice_Collect(t *testing.T) {
	got, err := Collect(context.Background(), FromSlice([]int{1, 2, 3}))
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 2, 3}
	if !intSliceEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSources(t *testing.T) {
	ctx := context.Background()

	if got, _ := Collect(ctx, Of("a", "b")); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Of: got %v, want [a b]", got)
	}
	if got, _ := Collect(ctx, Range(3, 4)); !intSliceEqual(got, []int{3, 4, 5, 6}) {
		t.Errorf("Range: got %v, want [3 4 5 6]", got)
	}
	if got, _ := Collect(ctx, Range(3, -1)); len(got) != 0 {
		t.Errorf("Range with negative count: got %v, want []", got)
	}
	if got, _ := Collect(ctx, Empty[int]()); len(got) != 0 {
		t.Errorf("Empty: got %v, want []", got)
	}

	iter := &sliceIter[string]{items: []string{"x"}}
	if got, _ := Collect(ctx, From[string](iter)); !slices.Equal(got, []string{"x"}) {
		t.Errorf("From: got %v, want [x]", got)
	}

	opened := 0
	fromFunc := FromFunc(func(context.Context) Iterator[int] {
		opened++
		return &sliceIter[int]{items: []int{7}}
	})
	_, _ = Collect(ctx, fromFunc)
	_, _ = Collect(ctx, fromFunc)
	if opened != 2 {
		t.Errorf("FromFunc: got %d opens, want one per enumeration", opened)
	}
}

func TestAsync(t *testing.T) {
	calls := 0
	s := Async(func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if calls != 0 {
		t.Fatal("Async must not run before the value is pulled")
	}
	got, err := Collect(context.Background(), s)
	if err != nil || !intSliceEqual(got, []int{42}) {
		t.Errorf("got %v, %v, want [42]", got, err)
	}

	boom := errors.New("boom")
	_, err = Collect(context.Background(), Async(func(context.Context) (int, error) { return 0, boom }))
	if err != boom {
		t.Errorf("got %v, want %v", err, boom)
	}
}

func TestModeHelpers(t *testing.T) {
	s := FromSlice([]int{1})
	if s.Mode() != Sequential {
		t.Fatalf("got %v, want sequential default", s.Mode())
	}
	if got := s.Parallel().Mode(); got != ParallelOrdered {
		t.Errorf("Parallel: got %v", got)
	}
	if got := s.Unordered().Mode(); got != ConcurrentUnordered {
		t.Errorf("Unordered: got %v", got)
	}
	if got := s.Parallel().Unordered().Concurrent().Mode(); got != ConcurrentUnordered {
		t.Errorf("chained: got %v", got)
	}
	if got := s.Unordered().Ordered().Sequential().Mode(); got != Sequential {
		t.Errorf("Sequential: got %v", got)
	}
	if s.Mode() != Sequential {
		t.Error("mode helpers must not mutate the receiver")
	}
	p := workpool.New(1)
	if s.WithPool(p).pool != p || s.pool != nil {
		t.Error("WithPool must set the pool on a copy")
	}
}

func TestDrainAndForEach(t *testing.T) {
	ctx := context.Background()
	var seen []int
	err := Drain(FromSlice([]int{1, 2, 3}), func(_ context.Context, v int) error {
		seen = append(seen, v)
		return nil
	}).Run(ctx)
	if err != nil || !intSliceEqual(seen, []int{1, 2, 3}) {
		t.Errorf("Drain: got %v, %v", seen, err)
	}

	stop := errors.New("stop")
	count := 0
	err = ForEach(ctx, FromSlice([]int{1, 2, 3}), func(_ context.Context, v int) error {
		count++
		if v == 2 {
			return stop
		}
		return nil
	})
	if err != stop || count != 2 {
		t.Errorf("ForEach: got %v after %d calls, want stop after 2", err, count)
	}
}

func TestReduce(t *testing.T) {
	sum, err := Reduce(context.Background(), Range(1, 4), 0, func(acc, v int) int { return acc + v })
	if err != nil || sum != 10 {
		t.Errorf("got %d, %v, want 10", sum, err)
	}
}

func TestCollect_PartialOnError(t *testing.T) {
	boom := errors.New("boom")
	s := Map(FromSlice([]int{1, 2, 3}), func(_ context.Context, v int) (int, error) {
		if v == 3 {
			return 0, boom
		}
		return v, nil
	})
	got, err := Collect(context.Background(), s)
	if err != boom {
		t.Fatalf("got %v, want %v", err, boom)
	}
	if !intSliceEqual(got, []int{1, 2}) {
		t.Errorf("got %v, want [1 2] before error", got)
	}
}
