package seq

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kbukum/seqkit/errors"
	"github.com/kbukum/seqkit/logger"
	"github.com/kbukum/seqkit/observability"
	"github.com/kbukum/seqkit/workpool"
)

// Engine names, used for run spans, metrics and log fields.
const (
	engineTransform = "transform"
	engineFlatten   = "flatten"
	engineJoin      = "join"
)

// run is the state of one enumeration. Its context is derived from the
// caller's: faults and teardown cancel the derived context only.
type run struct {
	id     string
	engine string
	mode   Mode
	pool   *workpool.Pool

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	agg     errors.Aggregator
	faulted atomic.Bool
	tasks   sync.WaitGroup

	// done is closed by the completer once every task has finished; err
	// holds the run result from then on. Runs without a completer never
	// close it.
	completing bool
	done       chan struct{}
	err        error

	obs      *observability.RunObservation
	log      *logger.Logger
	stopOnce sync.Once
	endOnce  sync.Once
}

func newRun(parent context.Context, engine string, cfg runConfig) *run {
	env := currentEnv()
	id := uuid.NewString()
	obs := observability.NewRunObservation(engine, cfg.mode.String(), id, env.metrics, env.tracing)
	ctx, cancel := context.WithCancel(obs.Start(parent))

	pool := cfg.pool
	if pool == nil && cfg.mode.IsParallel() {
		pool = workpool.Default()
	}

	r := &run{
		id:     id,
		engine: engine,
		mode:   cfg.mode,
		pool:   pool,
		parent: parent,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		obs:    obs,
		log:    env.log,
	}
	if r.log.DebugEnabled() {
		r.log.Debug("run started", r.fields())
	}
	return r
}

func (r *run) fields() map[string]interface{} {
	f := logger.Fields(
		logger.FieldRunID, r.id,
		logger.FieldEngine, r.engine,
		logger.FieldMode, r.mode.String(),
	)
	if r.pool != nil {
		f[logger.FieldPool] = r.pool.Name()
	}
	return f
}

// fault records err and cancels the run. Context errors that only echo a
// cancellation the run already went through are dropped.
func (r *run) fault(err error) {
	if err == nil {
		return
	}
	if r.ctx.Err() != nil && isContextErr(err) {
		return
	}
	if r.agg.Add(err) {
		r.faulted.Store(true)
		r.obs.Fault(r.ctx, faultKind(err))
		r.cancel()
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func faultKind(err error) string {
	var panicErr *errors.PanicError
	switch {
	case errors.As(err, &panicErr):
		return "panic"
	case errors.IsCanceled(err):
		return "canceled"
	}
	return "fault"
}

func (r *run) recoverFault() {
	if p := recover(); p != nil {
		r.fault(errors.NewPanicError(p))
	}
}

// result is the outcome reported to the consumer: the caller's
// cancellation if it happened, otherwise the aggregated faults.
func (r *run) result() error {
	if err := r.parent.Err(); err != nil {
		return errors.Canceled(err)
	}
	return r.agg.Finalize()
}

// goTask runs fn as a tracked task on its own goroutine.
func (r *run) goTask(fn func(ctx context.Context)) {
	r.tasks.Add(1)
	go func() {
		defer r.tasks.Done()
		defer r.recoverFault()
		fn(r.ctx)
	}()
}

// dispatch runs fn as a tracked task: on its own goroutine in concurrent
// modes, on the worker pool in parallel modes. In parallel modes it blocks
// while the pool is saturated. Nothing is dispatched once the run is
// canceled.
func (r *run) dispatch(fn func(ctx context.Context)) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	r.obs.Dispatch(r.ctx)
	if !r.mode.IsParallel() {
		r.goTask(fn)
		return nil
	}
	r.tasks.Add(1)
	err := r.pool.Go(r.ctx, func() {
		defer r.tasks.Done()
		defer r.recoverFault()
		fn(r.ctx)
	})
	if err != nil {
		r.tasks.Done()
	}
	return err
}

// submit is dispatch for work whose result is awaited in order. Faults are
// recorded before the future resolves.
func submit[T any](r *run, fn func(context.Context) (T, error)) (*workpool.Future[T], error) {
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}
	r.obs.Dispatch(r.ctx)
	r.tasks.Add(1)
	task := tracked(r, fn)
	if !r.mode.IsParallel() {
		return workpool.Spawn(r.ctx, task), nil
	}
	f, err := workpool.Submit(r.ctx, r.pool, task)
	if err != nil {
		r.tasks.Done()
	}
	return f, err
}

// drain runs fn, the drain of a nested sequence, as a tracked task on its
// own goroutine whatever the mode. A drain waits on the nested sequence's
// own dispatch, so it never holds a pool slot.
func (r *run) drain(fn func(ctx context.Context)) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	r.obs.Dispatch(r.ctx)
	r.goTask(fn)
	return nil
}

// spawn runs fn on its own goroutine whatever the mode.
func spawn[T any](r *run, fn func(context.Context) (T, error)) *workpool.Future[T] {
	r.tasks.Add(1)
	return workpool.Spawn(r.ctx, tracked(r, fn))
}

func tracked[T any](r *run, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (v T, err error) {
		defer r.tasks.Done()
		defer func() {
			if p := recover(); p != nil {
				err = errors.NewPanicError(p)
			}
			r.fault(err)
		}()
		return fn(ctx)
	}
}

// completeWhenIdle starts the completer: once every task has finished it
// computes the run result and hands it to complete.
func (r *run) completeWhenIdle(complete func(error)) {
	r.completing = true
	go func() {
		r.tasks.Wait()
		r.err = r.result()
		complete(r.err)
		close(r.done)
	}()
}

// stop tears the run down: cancel, then wait for every task. Idempotent.
func (r *run) stop() {
	r.stopOnce.Do(func() {
		r.cancel()
		if r.completing {
			<-r.done
		} else {
			r.tasks.Wait()
		}
	})
}

// end records the run outcome once.
func (r *run) end(err error) {
	r.endOnce.Do(func() {
		status := observability.StatusOK
		switch {
		case errors.IsCanceled(err):
			status = observability.StatusCanceled
		case err != nil:
			status = observability.StatusError
		}
		faults := r.agg.Len()
		r.obs.End(context.WithoutCancel(r.ctx), status, faults, err)

		if status == observability.StatusError {
			fields := logger.MergeWithDuration(r.fields(), r.obs.Duration())
			fields[logger.FieldFaults] = faults
			r.log.WithError(err).Warn("run faulted", fields)
			return
		}
		if r.log.DebugEnabled() {
			fields := logger.MergeWithDuration(r.fields(), r.obs.Duration())
			fields[logger.FieldStatus] = status
			r.log.Debug("run finished", fields)
		}
	})
}

// runIter holds the terminal state shared by every engine iterator.
type runIter struct {
	r    *run
	done bool
	err  error
}

// finish makes err the final outcome of the iterator.
func (b *runIter) finish(err error) error {
	b.done = true
	b.err = err
	b.r.end(err)
	return err
}

// canceled ends the iterator because c ended, and stops the run's work.
func (b *runIter) canceled(c context.Context) error {
	b.r.cancel()
	return b.finish(errors.Canceled(c.Err()))
}

// failed waits for every task after a fault and reports the run result.
// fallback is reported if the run somehow ended without one.
func (b *runIter) failed(ctx context.Context, fallback error) error {
	select {
	case <-b.r.done:
		if b.r.err != nil {
			return b.finish(b.r.err)
		}
		return b.finish(fallback)
	case <-ctx.Done():
		return b.canceled(ctx)
	}
}

// halt returns the terminal error once the caller canceled the run or a
// fault was recorded, nil while the run may keep yielding.
func (b *runIter) halt(ctx context.Context) error {
	if b.r.parent.Err() != nil {
		return b.canceled(b.r.parent)
	}
	if b.r.faulted.Load() {
		return b.failed(ctx, nil)
	}
	return nil
}

// interrupted reports a wait aborted by ctx, or a wait aborted because the
// caller canceled the run.
func (b *runIter) interrupted(ctx context.Context) error {
	if ctx.Err() == nil && b.r.parent.Err() != nil {
		return b.canceled(b.r.parent)
	}
	return b.canceled(ctx)
}

// exhausted ends a sequential iterator whose source ran out. Background
// tasks (probe sets) may still hold a fault.
func (b *runIter) exhausted() error {
	b.r.tasks.Wait()
	return b.finish(b.r.agg.Finalize())
}

// failSequential ends a sequential iterator at its first fault. A fault
// caused by the caller canceling is reported as a cancellation.
func (b *runIter) failSequential(ctx context.Context, err error) error {
	switch {
	case b.r.parent.Err() != nil:
		return b.canceled(b.r.parent)
	case ctx.Err() != nil:
		return b.canceled(ctx)
	}
	b.r.fault(err)
	return b.finish(err)
}

// link cancels the run if the ctx of a sequential Next call ends while the
// call is running.
func (b *runIter) link(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, b.r.cancel)
}

func (b *runIter) close() {
	b.r.stop()
	b.r.end(nil)
}
