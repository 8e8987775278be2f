package workpool

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/kbukum/seqkit/errors"
)

// Config configures a Pool.
type Config struct {
	// Name identifies this pool for metrics/logging.
	Name string
	// Workers is the maximum number of tasks running at once.
	// Zero or negative means runtime.GOMAXPROCS(0).
	Workers int
	// OnAcquire is called when a task takes a worker slot.
	OnAcquire func(name string)
	// OnRelease is called when a task gives its worker slot back.
	OnRelease func(name string)
}

// DefaultConfig returns a config sized to the available CPUs.
func DefaultConfig(name string) Config {
	return Config{
		Name:    name,
		Workers: runtime.GOMAXPROCS(0),
	}
}

// Pool bounds how many submitted tasks run at the same time. Each task runs
// on its own goroutine once it holds a worker slot.
type Pool struct {
	config    Config
	sem       *semaphore.Weighted
	inUse     atomic.Int64
	submitted atomic.Int64
}

// New creates a pool with the given number of workers.
func New(workers int) *Pool {
	cfg := DefaultConfig("default")
	if workers > 0 {
		cfg.Workers = workers
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a pool from cfg.
func NewWithConfig(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		config: cfg,
		sem:    semaphore.NewWeighted(int64(cfg.Workers)),
	}
}

// Go waits for a free worker slot, then runs fn on a new goroutine and
// returns. It returns ctx.Err() without running fn if ctx ends while
// waiting. A panic in fn is recovered and discarded; use Submit to observe
// it.
func (p *Pool) Go(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.submitted.Add(1)
	p.inUse.Add(1)
	if p.config.OnAcquire != nil {
		p.config.OnAcquire(p.config.Name)
	}

	go func() {
		defer func() {
			_ = recover()
			if p.config.OnRelease != nil {
				p.config.OnRelease(p.config.Name)
			}
			p.inUse.Add(-1)
			p.sem.Release(1)
		}()
		fn()
	}()
	return nil
}

// Submit dispatches fn to the pool and returns a Future for its result.
// A panic in fn resolves the future with an *errors.PanicError.
func Submit[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (*Future[T], error) {
	f := NewFuture[T]()
	err := p.Go(ctx, func() {
		f.Resolve(call(ctx, fn))
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Spawn runs fn on a new goroutine without a worker slot and returns a
// Future for its result.
func Spawn[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := NewFuture[T]()
	go func() {
		f.Resolve(call(ctx, fn))
	}()
	return f
}

func call[T any](ctx context.Context, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, errors.NewPanicError(r)
		}
	}()
	return fn(ctx)
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.config.Name
}

// Workers returns the maximum number of concurrently running tasks.
func (p *Pool) Workers() int {
	return p.config.Workers
}

// InUse returns the number of worker slots currently held.
func (p *Pool) InUse() int {
	return int(p.inUse.Load())
}

// Available returns the number of free worker slots.
func (p *Pool) Available() int {
	return p.config.Workers - p.InUse()
}

// Submitted returns the total number of tasks that obtained a slot.
func (p *Pool) Submitted() int64 {
	return p.submitted.Load()
}

var (
	defaultMu   sync.RWMutex
	defaultPool *Pool
)

// Default returns the process-wide pool, creating a GOMAXPROCS-sized one
// on first use.
func Default() *Pool {
	defaultMu.RLock()
	p := defaultPool
	defaultMu.RUnlock()
	if p != nil {
		return p
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultPool == nil {
		defaultPool = NewWithConfig(DefaultConfig("default"))
	}
	return defaultPool
}

// SetDefault replaces the process-wide pool. Runs already dispatching to
// the previous pool keep using it.
func SetDefault(p *Pool) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultPool = p
}
