package seq

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/kbukum/seqkit/workpool"
)

func TestDistinct(t *testing.T) {
	input := []int{3, 1, 3, 2, 1, 3, 4}
	for _, m := range allModes {
		t.Run(m.String(), func(t *testing.T) {
			once, err := Collect(context.Background(), Distinct(inMode(FromSlice(input), m)))
			if err != nil {
				t.Fatal(err)
			}
			twice, err := Collect(context.Background(), Distinct(Distinct(inMode(FromSlice(input), m))))
			if err != nil {
				t.Fatal(err)
			}
			if m.IsOrdered() {
				if want := []int{3, 1, 2, 4}; !intSliceEqual(once, want) {
					t.Errorf("got %v, want first occurrences %v", once, want)
				}
			}
			if !intSliceEqual(sorted(once), []int{1, 2, 3, 4}) {
				t.Errorf("got %v, want each value once", once)
			}
			if !intSliceEqual(sorted(once), sorted(twice)) {
				t.Errorf("distinct is not idempotent: %v vs %v", once, twice)
			}
		})
	}
}

func TestDistinct_RecoloredKeepsFirstOccurrence(t *testing.T) {
	slowFirst := func(_ context.Context, n int) (int, error) {
		if n == 1 {
			time.Sleep(5 * time.Millisecond)
		}
		return n, nil
	}
	base := Distinct(Map(FromSlice([]int{1, 2, 1}), slowFirst))
	tests := []struct {
		name string
		s    *Seq[int]
	}{
		{"concurrent", base.Concurrent()},
		{"parallel", base.Parallel().WithPool(workpool.New(4))},
		{"ordered after unordered", base.Unordered().Concurrent().Ordered()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !tc.s.Mode().IsOrdered() || tc.s.Mode().IsSequential() {
				t.Fatalf("got mode %v, want an ordered concurrent mode", tc.s.Mode())
			}
			for i := 0; i < 20; i++ {
				got, err := Collect(context.Background(), tc.s)
				if err != nil {
					t.Fatal(err)
				}
				if want := []int{1, 2}; !intSliceEqual(got, want) {
					t.Fatalf("run %d: got %v, want %v", i, got, want)
				}
			}
		})
	}
}

func TestDistinctBy(t *testing.T) {
	words := FromSlice([]string{"apple", "avocado", "banana", "blueberry", "cherry"})
	got, err := Collect(context.Background(), DistinctBy(words, func(w string) byte { return w[0] }))
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"apple", "banana", "cherry"}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestUnionPartition(t *testing.T) {
	a := []int{1, 2, 3, 4, 5, 2}
	b := []int{4, 5, 6, 7, 4}
	ctx := context.Background()
	for _, m := range allModes {
		t.Run(m.String(), func(t *testing.T) {
			A, B := inMode(FromSlice(a), m), inMode(FromSlice(b), m)
			union, err := Collect(ctx, Union(A, B))
			if err != nil {
				t.Fatal(err)
			}
			aNotB, err := Collect(ctx, Except(A, B))
			if err != nil {
				t.Fatal(err)
			}
			bNotA, err := Collect(ctx, Except(B, A))
			if err != nil {
				t.Fatal(err)
			}
			both, err := Collect(ctx, Intersect(A, B))
			if err != nil {
				t.Fatal(err)
			}

			if !intSliceEqual(sorted(aNotB), []int{1, 2, 3}) {
				t.Errorf("except(A,B): got %v", aNotB)
			}
			if !intSliceEqual(sorted(bNotA), []int{6, 7}) {
				t.Errorf("except(B,A): got %v", bNotA)
			}
			if !intSliceEqual(sorted(both), []int{4, 5}) {
				t.Errorf("intersect: got %v", both)
			}
			for _, v := range union {
				n := 0
				for _, part := range [][]int{aNotB, bNotA, both} {
					if slices.Contains(part, v) {
						n++
					}
				}
				if n != 1 {
					t.Errorf("%d lies in %d partitions, want exactly 1", v, n)
				}
			}
			if len(union) != len(aNotB)+len(bNotA)+len(both) {
				t.Errorf("union %v does not match its partitions", union)
			}
		})
	}
}

func TestUnion_Order(t *testing.T) {
	got, err := Collect(context.Background(), Union(FromSlice([]int{3, 1, 3}), FromSlice([]int{2, 1})))
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{3, 1, 2}; !intSliceEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExcept_WaitsForCompleteProbeSet(t *testing.T) {
	// The probe side delivers its only value late; a step that read the set
	// early would let 1 through.
	lateB := Map(FromSlice([]int{1}), func(ctx context.Context, n int) (int, error) {
		return after(50*time.Millisecond, n)(ctx)
	})
	for _, m := range allModes {
		t.Run(m.String(), func(t *testing.T) {
			got, err := Collect(context.Background(), Except(inMode(FromSlice([]int{1, 2}), m), lateB))
			if err != nil {
				t.Fatal(err)
			}
			if !intSliceEqual(got, []int{2}) {
				t.Errorf("got %v, want [2]", got)
			}
		})
	}
}

func TestProbe_FaultIsReported(t *testing.T) {
	boom := errors.New("probe side failed")
	broken := FromFunc(func(context.Context) Iterator[int] { return &failingIter{err: boom} })
	tests := []struct {
		name string
		left []int
	}{
		{"with values", []int{1, 2, 3}},
		{"empty left side", nil},
	}
	for _, tc := range tests {
		for _, m := range allModes {
			t.Run(tc.name+"/"+m.String(), func(t *testing.T) {
				_, err := Collect(context.Background(), Intersect(inMode(FromSlice(tc.left), m), broken))
				if err != boom {
					t.Errorf("got %v, want %v", err, boom)
				}
			})
		}
	}
}
