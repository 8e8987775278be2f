package seq

import (
	"context"
	"sync"

	"github.com/kbukum/seqkit/internal/queue"
	"github.com/kbukum/seqkit/workpool"
)

// Join yields result(l, r) for every pair of left and right values with
// equal keys, like a SQL inner join: duplicate keys on either side yield
// the cross product.
//
// The join takes the mode and pool of left; changing the mode of the result
// re-runs the join under the new mode. Sequential and
// ordered modes materialize the right side into a hash table and then scan
// the left side, so output follows left order and, per left value, right
// order; ordered concurrent and parallel modes read both sides at once while
// the table is built. Unordered modes stream both sides symmetrically and
// emit each match as soon as its second half arrives.
func Join[L, R any, K comparable, O any](left *Seq[L], right *Seq[R], leftKey func(L) K, rightKey func(R) K, result func(L, R) O) *Seq[O] {
	j := &join[L, R, K, O]{left: left, right: right, leftKey: leftKey, rightKey: rightKey, result: result}
	return derive(left, func(ctx context.Context, cfg runConfig) Iterator[O] {
		r := newRun(ctx, engineJoin, cfg)
		switch {
		case cfg.mode.IsSequential():
			return &hashJoinIter[L, R, K, O]{runIter: runIter{r: r}, join: j}
		case cfg.mode.IsUnordered():
			return j.symmetric(r)
		default:
			return j.ordered(r)
		}
	})
}

type join[L, R any, K comparable, O any] struct {
	left     *Seq[L]
	right    *Seq[R]
	leftKey  func(L) K
	rightKey func(R) K
	result   func(L, R) O
}

func (j *join[L, R, K, O]) buildTable(ctx context.Context) (map[K][]R, error) {
	table := make(map[K][]R)
	it := j.right.Iter(ctx)
	defer it.Close()
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return table, nil
		}
		k := j.rightKey(v)
		table[k] = append(table[k], v)
	}
}

func (j *join[L, R, K, O]) matches(pending []O, l L, table map[K][]R) []O {
	for _, rv := range table[j.leftKey(l)] {
		pending = append(pending, j.result(l, rv))
	}
	return pending
}

// hashJoinIter materializes the right side on first pull, then scans the
// left side on the consumer goroutine.
type hashJoinIter[L, R any, K comparable, O any] struct {
	runIter
	join    *join[L, R, K, O]
	table   map[K][]R
	left    Iterator[L]
	pending []O
}

func (it *hashJoinIter[L, R, K, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	if it.done {
		return zero, false, it.err
	}
	defer it.link(ctx)()

	if it.table == nil {
		table, err := it.join.buildTable(it.r.ctx)
		if err != nil {
			return zero, false, it.failSequential(ctx, err)
		}
		it.table = table
		it.left = it.join.left.Iter(it.r.ctx)
	}
	for len(it.pending) == 0 {
		l, ok, err := it.left.Next(it.r.ctx)
		if err != nil {
			return zero, false, it.failSequential(ctx, err)
		}
		if !ok {
			return zero, false, it.exhausted()
		}
		it.pending = it.join.matches(it.pending, l, it.table)
	}
	v := it.pending[0]
	it.pending = it.pending[1:]
	return v, true, nil
}

func (it *hashJoinIter[L, R, K, O]) Close() error {
	it.r.cancel()
	var err error
	if it.left != nil {
		err = it.left.Close()
	}
	it.close()
	return err
}

// ordered builds the right table and buffers the left side concurrently;
// the consumer scans the buffered left values once the table is complete.
func (j *join[L, R, K, O]) ordered(r *run) Iterator[O] {
	table := spawn(r, j.buildTable)
	left := queue.New[L]()
	r.goTask(func(ctx context.Context) {
		_ = pump(ctx, r, j.left, left.Write)
	})
	r.completeWhenIdle(left.CompleteWithError)
	return &orderedJoinIter[L, R, K, O]{runIter: runIter{r: r}, join: j, tableF: table, leftQ: left}
}

type orderedJoinIter[L, R any, K comparable, O any] struct {
	runIter
	join    *join[L, R, K, O]
	tableF  *workpool.Future[map[K][]R]
	table   map[K][]R
	leftQ   *queue.Queue[L]
	pending []O
}

func (it *orderedJoinIter[L, R, K, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	if it.done {
		return zero, false, it.err
	}
	for {
		if err := it.halt(ctx); err != nil {
			return zero, false, err
		}
		if len(it.pending) > 0 {
			v := it.pending[0]
			it.pending = it.pending[1:]
			return v, true, nil
		}
		if it.table == nil {
			table, err := it.tableF.Await(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return zero, false, it.interrupted(ctx)
				}
				return zero, false, it.failed(ctx, err)
			}
			it.table = table
		}
		l, ok, err := it.leftQ.Read(ctx)
		if ctx.Err() != nil {
			return zero, false, it.interrupted(ctx)
		}
		if err != nil || !ok {
			return zero, false, it.finish(err)
		}
		it.pending = it.join.matches(it.pending, l, it.table)
	}
}

func (it *orderedJoinIter[L, R, K, O]) Close() error {
	it.close()
	return nil
}

// symmetric streams both sides at once. Each arriving value is inserted
// into its side's table and checked against the other side's table under
// one per-run lock, so whichever half of a pair arrives second finds the
// first and every pair is emitted exactly once.
func (j *join[L, R, K, O]) symmetric(r *run) Iterator[O] {
	q := queue.New[O]()
	var (
		mu     sync.Mutex
		lefts  = make(map[K][]L)
		rights = make(map[K][]R)
	)
	onLeft := func(l L) error {
		k := j.leftKey(l)
		mu.Lock()
		defer mu.Unlock()
		lefts[k] = append(lefts[k], l)
		for _, rv := range rights[k] {
			_ = q.Write(j.result(l, rv))
		}
		return nil
	}
	onRight := func(rv R) error {
		k := j.rightKey(rv)
		mu.Lock()
		defer mu.Unlock()
		rights[k] = append(rights[k], rv)
		for _, l := range lefts[k] {
			_ = q.Write(j.result(l, rv))
		}
		return nil
	}

	// Side loops carry no per-item work, so they never take pool slots.
	r.goTask(func(ctx context.Context) { _ = pump(ctx, r, j.left, onLeft) })
	r.goTask(func(ctx context.Context) { _ = pump(ctx, r, j.right, onRight) })
	r.completeWhenIdle(q.CompleteWithError)
	return &queueIter[O]{runIter: runIter{r: r}, q: q}
}
