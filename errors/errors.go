package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// AppError is the structured fault type used across the module.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if re-enumerating may succeed.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Constructors ---

// Canceled reports a consumer-initiated cancellation. cause is normally
// context.Canceled or context.DeadlineExceeded.
func Canceled(cause error) *AppError {
	return &AppError{
		Code: ErrCodeCanceled, Message: "sequence enumeration was canceled",
		Retryable: false, Cause: cause,
	}
}

// InvalidArgument reports a combinator built with an unusable argument.
func InvalidArgument(name, reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid %s: %s", name, reason),
		Details: map[string]any{"argument": name},
	}
}

// Internal reports a broken engine invariant.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "sequence engine invariant violated",
		Cause: cause,
	}
}

// IsCanceled reports whether err is a consumer cancellation, either
// reported through Canceled or a bare context error.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if appErr, ok := AsAppError(err); ok && appErr.Code == ErrCodeCanceled {
		return true
	}
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is and As re-export the standard library helpers so callers importing
// this package under the name errors keep access to them.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }
