// Package workpool provides the worker-pool dispatch primitive used by the
// parallel scheduling modes.
//
// A Pool bounds how many tasks run at once with a weighted semaphore.
// Submit blocks until a worker slot is free (or the context ends) and
// returns a Future for the task's result:
//
//	p := workpool.New(4)
//	f, err := workpool.Submit(ctx, p, func(ctx context.Context) (int, error) {
//	    return expensive(ctx)
//	})
//	v, err := f.Await(ctx)
//
// Spawn runs a task on its own goroutine with no slot, which is how the
// concurrent (non-parallel) modes start work.
package workpool
