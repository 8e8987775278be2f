package seq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	seqerrors "github.com/kbukum/seqkit/errors"
	"github.com/kbukum/seqkit/logger"
	"github.com/kbukum/seqkit/workpool"
)

// withRunLog installs an environment whose logger records debug output.
func withRunLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf lockedBuffer
	restore := swapEnv(&environment{
		mode: Sequential,
		log:  logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "seq-test", &buf),
	})
	t.Cleanup(restore)
	return &buf.buf
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func swapEnv(e *environment) (restore func()) {
	prev := currentEnv()
	envMu.Lock()
	current = e
	envMu.Unlock()
	return func() {
		envMu.Lock()
		current = prev
		envMu.Unlock()
	}
}

func double(_ context.Context, n int) (int, error) { return n * 2, nil }

func TestMap(t *testing.T) {
	for _, m := range allModes {
		t.Run(m.String(), func(t *testing.T) {
			got, err := Collect(context.Background(), Map(inMode(FromSlice([]int{1, 2, 3}), m), double))
			if err != nil {
				t.Fatal(err)
			}
			if m.IsUnordered() {
				got = sorted(got)
			}
			want := []int{2, 4, 6}
			if !intSliceEqual(got, want) {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestMap_TypeConversion(t *testing.T) {
	s := Map(FromSlice([]int{1, 2}), func(_ context.Context, n int) (string, error) {
		return fmt.Sprintf("#%d", n), nil
	})
	got, err := Collect(context.Background(), s)
	if err != nil || strings.Join(got, ",") != "#1,#2" {
		t.Errorf("got %v, %v, want [#1 #2]", got, err)
	}
}

func TestFusedChain(t *testing.T) {
	for _, m := range allModes {
		t.Run(m.String(), func(t *testing.T) {
			var tapped atomic.Int32
			s := inMode(Range(1, 10), m)
			s2 := Filter(Map(s, double), func(n int) bool { return n%4 == 0 })
			s3 := Tap(s2, func(context.Context, int) error { tapped.Add(1); return nil })
			s4 := Where(s3, func(_ context.Context, n int) (bool, error) { return n > 4, nil })
			s5 := MapFilter(s4, func(_ context.Context, n int) (string, bool, error) {
				return fmt.Sprint(n), n != 16, nil
			})
			got, err := Collect(context.Background(), s5)
			if err != nil {
				t.Fatal(err)
			}
			if m.IsUnordered() {
				got = sorted(got)
			}
			want := []string{"12", "20", "8"}
			if !m.IsUnordered() {
				want = []string{"8", "12", "20"}
			}
			if strings.Join(got, ",") != strings.Join(want, ",") {
				t.Errorf("got %v, want %v", got, want)
			}
			if tapped.Load() != 5 {
				t.Errorf("tap ran %d times, want 5", tapped.Load())
			}
		})
	}
}

func TestFusion_SingleRun(t *testing.T) {
	buf := withRunLog(t)

	s := Map(Filter(Map(FromSlice([]int{1, 2, 3, 4}), double), func(n int) bool { return n > 2 }), double)
	s = Tap(Where(s, func(context.Context, int) (bool, error) { return true, nil }), func(context.Context, int) error { return nil })
	if s.xf == nil {
		t.Fatal("expected a fused transform")
	}
	got, err := Collect(context.Background(), s.Concurrent())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{8, 12, 16}) {
		t.Errorf("got %v, want [8 12 16]", got)
	}
	if n := strings.Count(buf.String(), `"run started"`); n != 1 {
		t.Errorf("got %d runs for a fused chain, want 1:\n%s", n, buf.String())
	}
}

func TestRecolorFusedChain(t *testing.T) {
	var inFlight, peak atomic.Int32
	slow := Map(FromSlice([]int{1, 2, 3, 4}), func(ctx context.Context, n int) (int, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		return n, nil
	})

	if _, err := Collect(context.Background(), slow); err != nil {
		t.Fatal(err)
	}
	if peak.Load() != 1 {
		t.Errorf("sequential peak %d, want 1", peak.Load())
	}

	peak.Store(0)
	got, err := Collect(context.Background(), slow.Concurrent())
	if err != nil {
		t.Fatal(err)
	}
	if peak.Load() < 2 {
		t.Errorf("concurrent peak %d, want overlap", peak.Load())
	}
	if !intSliceEqual(got, []int{1, 2, 3, 4}) {
		t.Errorf("got %v, want source order", got)
	}
}

func TestOrderedModesKeepSourceOrder(t *testing.T) {
	delays := map[int]time.Duration{1: 150 * time.Millisecond, 2: 100 * time.Millisecond, 3: 50 * time.Millisecond, 4: 0}
	step := func(ctx context.Context, n int) (int, error) {
		time.Sleep(delays[n])
		return n, nil
	}
	for _, m := range []Mode{ConcurrentOrdered, ParallelOrdered} {
		t.Run(m.String(), func(t *testing.T) {
			start := time.Now()
			got, err := Collect(context.Background(), Map(inMode(FromSlice([]int{1, 2, 3, 4}), m), step))
			if err != nil {
				t.Fatal(err)
			}
			if !intSliceEqual(got, []int{1, 2, 3, 4}) {
				t.Errorf("got %v, want [1 2 3 4]", got)
			}
			if elapsed := time.Since(start); elapsed > 280*time.Millisecond {
				t.Errorf("took %v, want overlapped steps", elapsed)
			}
		})
	}
	for _, m := range []Mode{ConcurrentUnordered, ParallelUnordered} {
		t.Run(m.String(), func(t *testing.T) {
			got, err := Collect(context.Background(), Map(inMode(FromSlice([]int{1, 2, 3, 4}), m), step))
			if err != nil {
				t.Fatal(err)
			}
			if got[0] != 4 || got[len(got)-1] != 1 {
				t.Errorf("got %v, want completion order", got)
			}
		})
	}
}

func TestParallelBoundedByPool(t *testing.T) {
	var inFlight, peak atomic.Int32
	step := func(_ context.Context, n int) (int, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return n, nil
	}
	pool := workpool.New(2)
	got, err := Collect(context.Background(), Map(Range(0, 12).WithMode(ParallelUnordered).WithPool(pool), step))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 12 {
		t.Errorf("got %d values, want 12", len(got))
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency %d exceeds pool size 2", peak.Load())
	}
	deadline := time.Now().Add(time.Second)
	for pool.InUse() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if pool.InUse() != 0 {
		t.Errorf("pool still has %d slots in use", pool.InUse())
	}
}

func TestStepFault(t *testing.T) {
	boom := errors.New("boom")
	step := func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	}
	for _, m := range allModes {
		t.Run(m.String(), func(t *testing.T) {
			_, err := Collect(context.Background(), Map(inMode(FromSlice([]int{1, 2, 3}), m), step))
			if err != boom {
				t.Errorf("got %v, want the step's own error", err)
			}
		})
	}
}

type failingIter struct {
	n   int
	err error
}

func (it *failingIter) Next(context.Context) (int, bool, error) {
	it.n++
	if it.n == 3 {
		return 0, false, it.err
	}
	return it.n, true, nil
}

func (it *failingIter) Close() error { return nil }

func TestSourceFault(t *testing.T) {
	broken := errors.New("source broken")
	for _, m := range allModes {
		t.Run(m.String(), func(t *testing.T) {
			src := FromFunc(func(context.Context) Iterator[int] { return &failingIter{err: broken} })
			_, err := Collect(context.Background(), Map(inMode(src, m), double))
			if err != broken {
				t.Errorf("got %v, want %v", err, broken)
			}
		})
	}
}

type slowIter struct {
	n, limit int
	delay    time.Duration
}

func (it *slowIter) Next(context.Context) (int, bool, error) {
	if it.n >= it.limit {
		return 0, false, nil
	}
	time.Sleep(it.delay)
	it.n++
	return it.n, true, nil
}

func (it *slowIter) Close() error { return nil }

func TestFaultStopsDispatch(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	src := FromFunc(func(context.Context) Iterator[int] { return &slowIter{limit: 100, delay: 2 * time.Millisecond} })
	s := Map(src.WithMode(ConcurrentUnordered), func(_ context.Context, n int) (int, error) {
		calls.Add(1)
		return 0, boom
	})
	_, err := Collect(context.Background(), s)
	if err != boom {
		t.Fatalf("got %v, want %v", err, boom)
	}
	if c := calls.Load(); c >= 100 {
		t.Errorf("got %d step calls, want dispatch to stop after the fault", c)
	}
}

func TestStepPanic(t *testing.T) {
	for _, m := range allModes {
		t.Run(m.String(), func(t *testing.T) {
			s := Map(inMode(FromSlice([]int{1}), m), func(context.Context, int) (int, error) {
				panic("kaboom")
			})
			_, err := Collect(context.Background(), s)
			var panicErr *seqerrors.PanicError
			if !errors.As(err, &panicErr) || panicErr.Value != "kaboom" {
				t.Errorf("got %v, want a panic fault", err)
			}
		})
	}
}

func waitOrCancel(ctx context.Context, n int) (int, error) {
	select {
	case <-time.After(time.Second):
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func TestCancellationAbortsRun(t *testing.T) {
	for _, m := range allModes {
		t.Run(m.String(), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			time.AfterFunc(20*time.Millisecond, cancel)

			start := time.Now()
			_, err := Collect(ctx, Map(inMode(FromSlice([]int{1, 2, 3}), m), waitOrCancel))
			elapsed := time.Since(start)

			if !seqerrors.IsCanceled(err) {
				t.Errorf("got %v, want a cancellation", err)
			}
			appErr, ok := seqerrors.AsAppError(err)
			if !ok || appErr.Code != seqerrors.ErrCodeCanceled {
				t.Errorf("got %T, want a CANCELED fault", err)
			}
			if elapsed > 500*time.Millisecond {
				t.Errorf("took %v, want the run to abort before the step completes", elapsed)
			}
		})
	}
}

func TestNextContextBoundsOneCall(t *testing.T) {
	for _, m := range []Mode{ConcurrentOrdered, ConcurrentUnordered} {
		t.Run(m.String(), func(t *testing.T) {
			it := Map(FromSlice([]int{1}).WithMode(m), waitOrCancel).Iter(context.Background())
			defer it.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			start := time.Now()
			_, _, err := it.Next(ctx)
			if !seqerrors.IsCanceled(err) || time.Since(start) > 500*time.Millisecond {
				t.Errorf("got %v after %v, want prompt cancellation", err, time.Since(start))
			}
			if _, ok, err2 := it.Next(context.Background()); ok || err2 != err {
				t.Errorf("iterator must stay terminal, got ok=%v err=%v", ok, err2)
			}
		})
	}
}

func TestEarlyCloseWaitsForWork(t *testing.T) {
	for _, m := range []Mode{ConcurrentUnordered, ParallelOrdered} {
		t.Run(m.String(), func(t *testing.T) {
			var running atomic.Int32
			s := Map(inMode(Range(0, 4), m), func(ctx context.Context, n int) (int, error) {
				if n == 0 {
					return n, nil
				}
				running.Add(1)
				defer running.Add(-1)
				<-ctx.Done()
				return 0, ctx.Err()
			})
			got, err := Collect(context.Background(), Take(s, 1))
			if err != nil || len(got) != 1 {
				t.Fatalf("got %v, %v, want one value", got, err)
			}
			if r := running.Load(); r != 0 {
				t.Errorf("%d steps still running after Close", r)
			}
		})
	}
}

func TestStatefulStepFreshPerRun(t *testing.T) {
	s := Distinct(FromSlice([]int{1, 1, 2}))
	for i := 0; i < 2; i++ {
		got, err := Collect(context.Background(), s)
		if err != nil || !intSliceEqual(got, []int{1, 2}) {
			t.Errorf("run %d: got %v, %v, want [1 2]", i, got, err)
		}
	}
}

func TestNoDispatchAfterCancel(t *testing.T) {
	for _, m := range []Mode{ConcurrentOrdered, ConcurrentUnordered, ParallelOrdered, ParallelUnordered} {
		t.Run(m.String(), func(t *testing.T) {
			r := newRun(context.Background(), engineTransform, runConfig{mode: m, pool: workpool.New(1)})
			r.fault(errors.New("boom"))

			var calls atomic.Int32
			if err := r.dispatch(func(context.Context) { calls.Add(1) }); err == nil {
				t.Error("dispatch: got nil error, want the run's cancellation")
			}
			if err := r.drain(func(context.Context) { calls.Add(1) }); err == nil {
				t.Error("drain: got nil error, want the run's cancellation")
			}
			if _, err := submit(r, func(context.Context) (int, error) {
				calls.Add(1)
				return 0, nil
			}); err == nil {
				t.Error("submit: got nil error, want the run's cancellation")
			}
			r.tasks.Wait()
			if c := calls.Load(); c != 0 {
				t.Errorf("got %d calls after the fault, want 0", c)
			}
			if n := r.agg.Len(); n != 1 {
				t.Errorf("got %d faults recorded, want 1", n)
			}
			r.end(r.result())
		})
	}
}
