package errors

import (
	"fmt"
	"runtime"
)

// PanicError wraps a value recovered from a panic in caller-supplied logic
// together with the goroutine stack captured at the point of recovery.
type PanicError struct {
	// Value is the original value passed to panic().
	Value any

	// Stack is the goroutine stack trace at the point of panic.
	Stack string
}

// Error returns the panic value followed by the captured stack.
func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: %v\n\n%s", ErrCodePanic, e.Value, e.Stack)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// NewPanicError captures the current stack for a recovered value.
func NewPanicError(v any) *PanicError {
	// runtime.Stack truncates to the buffer size.
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{
		Value: v,
		Stack: string(buf[:n]),
	}
}
