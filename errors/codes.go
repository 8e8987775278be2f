package errors

// ErrorCode represents a machine-readable fault code.
type ErrorCode string

// Run faults
const (
	// ErrCodeCanceled indicates the consumer canceled or timed out the run.
	ErrCodeCanceled ErrorCode = "CANCELED"
	// ErrCodePanic indicates caller-supplied logic panicked.
	ErrCodePanic ErrorCode = "PANIC"
)

// Usage and engine errors
const (
	// ErrCodeInvalidArgument indicates a combinator or config was given an unusable value.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeInternal indicates a broken engine invariant.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeCanceled:        false,
	ErrCodePanic:           false,
	ErrCodeInvalidArgument: false,
	ErrCodeInternal:        false,
}

// IsRetryableCode returns true if re-enumerating the sequence may succeed.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
