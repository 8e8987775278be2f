package errors

import (
	"reflect"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Aggregator collects faults from concurrently in-flight operations.
// The zero value is ready to use and safe for concurrent use.
type Aggregator struct {
	mu   sync.Mutex
	errs []error
}

// Add records err. Composite faults (*multierror.Error or any error with
// Unwrap() []error) are spliced in child by child so the collection stays
// flat. An instance that was already recorded is ignored. Add reports
// whether at least one new fault was recorded.
func (a *Aggregator) Add(err error) bool {
	if err == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.add(err)
}

func (a *Aggregator) add(err error) bool {
	switch e := err.(type) {
	case *multierror.Error:
		added := false
		for _, child := range e.Errors {
			if child != nil && a.add(child) {
				added = true
			}
		}
		return added
	case interface{ Unwrap() []error }:
		added := false
		for _, child := range e.Unwrap() {
			if child != nil && a.add(child) {
				added = true
			}
		}
		return added
	}
	for _, seen := range a.errs {
		if sameInstance(seen, err) {
			return false
		}
	}
	a.errs = append(a.errs, err)
	return true
}

// Len returns the number of distinct faults recorded.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.errs)
}

// Errors returns a snapshot of the recorded faults in insertion order.
func (a *Aggregator) Errors() []error {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]error, len(a.errs))
	copy(out, a.errs)
	return out
}

// Finalize returns nil when nothing was recorded, the sole fault when one
// was, and otherwise a *multierror.Error holding every fault in insertion
// order.
func (a *Aggregator) Finalize() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch len(a.errs) {
	case 0:
		return nil
	case 1:
		return a.errs[0]
	}
	return multierror.Append(nil, a.errs...)
}

// Faults lists the leaf faults of err: the children of a composite, err
// itself otherwise, or nil for a nil error.
func Faults(err error) []error {
	if err == nil {
		return nil
	}
	var agg Aggregator
	agg.add(err)
	return agg.errs
}

// sameInstance compares errors by identity. Pointer errors compare by
// address; non-comparable dynamic types are never considered equal.
func sameInstance(a, b error) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
