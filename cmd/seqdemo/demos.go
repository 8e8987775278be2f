package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	seqerrors "github.com/kbukum/seqkit/errors"
	"github.com/kbukum/seqkit/logger"
	"github.com/kbukum/seqkit/seq"
)

type demo struct {
	name string
	run  func(ctx context.Context, log *logger.Logger) error
}

var demos = []demo{
	{"transform", transformDemo},
	{"concat", concatDemo},
	{"join", joinDemo},
	{"setops", setOpsDemo},
	{"faults", faultsDemo},
}

func selectDemos(names []string) []demo {
	if len(names) == 0 {
		return demos
	}
	var out []demo
	for _, d := range demos {
		if slices.Contains(names, d.name) {
			out = append(out, d)
		}
	}
	return out
}

var modes = []seq.Mode{
	seq.Sequential,
	seq.ConcurrentOrdered,
	seq.ConcurrentUnordered,
	seq.ParallelOrdered,
	seq.ParallelUnordered,
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transformDemo runs one fused chain with jittered step latency in every mode.
func transformDemo(ctx context.Context, log *logger.Logger) error {
	chain := seq.Map(seq.Range(1, 8), func(ctx context.Context, n int) (int, error) {
		return n * n, sleep(ctx, time.Duration(9-n)*10*time.Millisecond)
	})
	chain = seq.Filter(chain, func(n int) bool { return n%2 == 1 })

	for _, m := range modes {
		start := time.Now()
		got, err := seq.Collect(ctx, chain.WithMode(m))
		if err != nil {
			return err
		}
		log.Info("squares of odd numbers", logger.MergeWithDuration(logger.Fields(
			logger.FieldMode, m.String(),
			"values", fmt.Sprint(got),
		), time.Since(start)))
	}
	return nil
}

// concatDemo concatenates three delayed values: ordered modes overlap the
// waits, Sequential adds them up.
func concatDemo(ctx context.Context, log *logger.Logger) error {
	delayed := func(ms int) *seq.Seq[int] {
		return seq.Async(func(ctx context.Context) (int, error) {
			return ms, sleep(ctx, time.Duration(ms)*time.Millisecond)
		})
	}
	all := seq.Concat(delayed(300), delayed(100), delayed(200))

	for _, m := range modes {
		start := time.Now()
		got, err := seq.Collect(ctx, all.WithMode(m))
		if err != nil {
			return err
		}
		log.Info("concatenated delays", logger.MergeWithDuration(logger.Fields(
			logger.FieldMode, m.String(),
			"values", fmt.Sprint(got),
		), time.Since(start)))
	}
	return nil
}

type customer struct {
	id   int
	name string
}

type order struct {
	customer int
	item     string
}

func joinDemo(ctx context.Context, log *logger.Logger) error {
	customers := seq.Of(customer{1, "ada"}, customer{2, "grace"}, customer{3, "linus"})
	orders := seq.Of(order{1, "keyboard"}, order{3, "laptop"}, order{1, "monitor"}, order{4, "orphan"})

	for _, m := range []seq.Mode{seq.Sequential, seq.ConcurrentOrdered, seq.ParallelUnordered} {
		joined := seq.Join(customers.WithMode(m), orders,
			func(c customer) int { return c.id },
			func(o order) int { return o.customer },
			func(c customer, o order) string { return c.name + ":" + o.item },
		)
		got, err := seq.Collect(ctx, joined)
		if err != nil {
			return err
		}
		log.Info("customers joined with orders", logger.Fields(logger.FieldMode, m.String(), "pairs", fmt.Sprint(got)))
	}
	return nil
}

func setOpsDemo(ctx context.Context, log *logger.Logger) error {
	a := seq.Of(1, 2, 3, 4, 5, 2)
	b := seq.Of(4, 5, 6, 7, 4).Concurrent()

	results := []struct {
		name string
		seq  *seq.Seq[int]
	}{
		{"distinct(a)", seq.Distinct(a)},
		{"union(a,b)", seq.Union(a, b)},
		{"except(a,b)", seq.Except(a, b)},
		{"intersect(a,b)", seq.Intersect(a.Parallel(), b)},
		{"sorted union desc", seq.OrderByKeyDescending(seq.Union(a, b), func(n int) int { return n })},
	}
	for _, r := range results {
		got, err := seq.Collect(ctx, r.seq)
		if err != nil {
			return err
		}
		log.Info(r.name, logger.Fields("values", fmt.Sprint(got)))
	}
	return nil
}

// faultsDemo shows how faults from concurrent work are reported: several
// failing steps aggregate into one error, and a deadline cancels the run.
func faultsDemo(ctx context.Context, log *logger.Logger) error {
	failing := seq.Map(seq.Range(1, 4).WithMode(seq.ConcurrentUnordered), func(ctx context.Context, n int) (int, error) {
		if n%2 == 0 {
			return 0, fmt.Errorf("item %d rejected", n)
		}
		return n, nil
	})
	_, err := seq.Collect(ctx, failing)
	log.Info("aggregated faults", logger.Fields(
		logger.FieldFaults, len(seqerrors.Faults(err)),
		logger.FieldError, fmt.Sprint(err),
	))

	timeout, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	slow := seq.Map(seq.Range(0, 3).Parallel(), func(ctx context.Context, n int) (int, error) {
		return n, sleep(ctx, time.Second)
	})
	start := time.Now()
	_, err = seq.Collect(timeout, slow)
	if !seqerrors.IsCanceled(err) {
		return errors.Join(errors.New("expected the deadline to cancel the run"), err)
	}
	log.Info("deadline canceled the run", logger.MergeWithDuration(logger.Fields(logger.FieldError, err.Error()), time.Since(start)))

	batches, err := seq.Collect(ctx, seq.Batch(seq.Take(seq.Range(0, 100), 7), 3, 0))
	if err != nil {
		return err
	}
	log.Info("batched prefix", logger.Fields("batches", fmt.Sprint(batches)))
	return nil
}
