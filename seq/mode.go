package seq

import (
	"fmt"
	"strings"
)

// Mode is the scheduling discipline of a combinator. It combines two axes:
// ordered or unordered output, and sequential, concurrent or parallel
// execution. Sequential is always ordered.
type Mode uint8

const (
	Sequential Mode = iota
	ConcurrentOrdered
	ConcurrentUnordered
	ParallelOrdered
	ParallelUnordered
)

var modeNames = [...]string{
	Sequential:          "sequential",
	ConcurrentOrdered:   "concurrent-ordered",
	ConcurrentUnordered: "concurrent-unordered",
	ParallelOrdered:     "parallel-ordered",
	ParallelUnordered:   "parallel-unordered",
}

// String returns the configuration name of m.
func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Valid reports whether m is one of the five modes.
func (m Mode) Valid() bool {
	return int(m) < len(modeNames)
}

// ParseMode maps a configuration name back to its Mode. Matching ignores
// case and accepts '_' in place of '-'.
func ParseMode(name string) (Mode, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	for m, n := range modeNames {
		if n == normalized {
			return Mode(m), nil
		}
	}
	return Sequential, fmt.Errorf("unknown mode %q", name)
}

func (m Mode) IsSequential() bool { return m == Sequential }

func (m Mode) IsOrdered() bool {
	return m == Sequential || m == ConcurrentOrdered || m == ParallelOrdered
}

func (m Mode) IsUnordered() bool { return !m.IsOrdered() }

// IsConcurrent reports the single-process overlapped modes that do not use
// the worker pool.
func (m Mode) IsConcurrent() bool {
	return m == ConcurrentOrdered || m == ConcurrentUnordered
}

func (m Mode) IsParallel() bool {
	return m == ParallelOrdered || m == ParallelUnordered
}

// MakeOrdered keeps the execution axis and switches to ordered output.
func (m Mode) MakeOrdered() Mode {
	switch m {
	case ConcurrentUnordered:
		return ConcurrentOrdered
	case ParallelUnordered:
		return ParallelOrdered
	}
	return m
}

// MakeUnordered keeps the execution axis and switches to unordered output.
// Sequential has no unordered form and becomes ConcurrentUnordered.
func (m Mode) MakeUnordered() Mode {
	switch m {
	case Sequential, ConcurrentOrdered:
		return ConcurrentUnordered
	case ParallelOrdered:
		return ParallelUnordered
	}
	return m
}

// MakeConcurrent keeps the ordering axis and switches to concurrent
// execution.
func (m Mode) MakeConcurrent() Mode {
	switch m {
	case Sequential, ParallelOrdered:
		return ConcurrentOrdered
	case ParallelUnordered:
		return ConcurrentUnordered
	}
	return m
}

// MakeParallel keeps the ordering axis and switches to worker-pool
// execution.
func (m Mode) MakeParallel() Mode {
	switch m {
	case Sequential, ConcurrentOrdered:
		return ParallelOrdered
	case ConcurrentUnordered:
		return ParallelUnordered
	}
	return m
}
