// Package errors provides coded errors for the signal bridge.
//
// Codes are grouped by hundreds into categories:
//   - general (1-99)
//   - validation (100-199): parameters, configuration, orders, providers
//   - signal (200-299): rejections, expected in normal operation
//   - broker (300-399): connectivity, submission and cancellation failures
//   - engine (400-499): queueing and lifecycle
//   - journal (500-599): decision journal persistence
//
// Usage:
//
//	err := errors.Newf(errors.ErrCodeCapExceeded, "ledger at cap %d", 6)
//	err = errors.Wrap(errors.ErrCodeConnectivity, "broker unreachable", cause)
//
//	if errors.IsRejection(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error carries a code, a message and an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates an Error without a cause.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: nil}
}

// Newf is New with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to cause.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return Wrap(code, fmt.Sprintf(format, args...), cause)
}

// Error renders "[code] message: cause".
func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%d] %s", e.Code, e.Message)
	}

	return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is forwards to the standard errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As forwards to the standard errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode returns the code of the outermost *Error in err's chain, or
// ErrCodeUnknown when there is none.
func GetCode(err error) ErrorCode {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}

	return ErrCodeUnknown
}

// HasCode reports whether GetCode(err) is code.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsRejection reports whether err is a signal rejection rather than a
// failure. A rejected signal leaves the ledger and the broker untouched.
func IsRejection(err error) bool {
	return err != nil && GetCode(err).Category() == CategorySignal
}

// IsBrokerFailure reports whether err came from the broker side (the
// exchange may have changed state).
func IsBrokerFailure(err error) bool {
	return err != nil && GetCode(err).Category() == CategoryBroker
}
