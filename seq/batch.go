package seq

import (
	"context"
	"time"
)

// Batch collects up to size values or waits timeout (whichever comes first),
// then emits them as a slice.
//
// size=0 means collect until timeout. timeout=0 means collect until size.
// Both zero is invalid and defaults to size=1.
func Batch[T any](s *Seq[T], size int, timeout time.Duration) *Seq[[]T] {
	if size <= 0 && timeout <= 0 {
		size = 1
	}
	return derive(s, func(ctx context.Context, _ runConfig) Iterator[[]T] {
		return &batchIter[T]{
			source:  s.Iter(ctx),
			size:    size,
			timeout: timeout,
		}
	})
}

type batchIter[T any] struct {
	source  Iterator[T]
	size    int
	timeout time.Duration
	done    bool
	err     error
}

func (it *batchIter[T]) Next(ctx context.Context) ([]T, bool, error) {
	if it.done {
		return nil, false, it.err
	}

	var batch []T
	var timer <-chan time.Time

	if it.timeout > 0 {
		t := time.NewTimer(it.timeout)
		defer t.Stop()
		timer = t.C
	}

	for {
		if it.size > 0 && len(batch) >= it.size {
			return batch, true, nil
		}

		val, ok, err := it.source.Next(ctx)
		if err != nil {
			it.done, it.err = true, err
			if len(batch) > 0 {
				// The partial batch goes out first; the fault follows on
				// the next call.
				return batch, true, nil
			}
			return nil, false, err
		}
		if !ok {
			it.done = true
			if len(batch) > 0 {
				return batch, true, nil
			}
			return nil, false, nil
		}

		batch = append(batch, val)

		// Timeout is checked between values; a pull already waiting on the
		// source is not interrupted.
		if timer != nil {
			select {
			case <-timer:
				return batch, true, nil
			default:
			}
		}
	}
}

func (it *batchIter[T]) Close() error { return it.source.Close() }
