package promptplace

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrorCode represents specific error codes for search operations.
type ErrorCode int

const (
	// ErrCodeInvalidOption is returned when an invalid option is provided.
	ErrCodeInvalidOption ErrorCode = iota + 1000

	// ErrCodeTimeout is returned when a search operation times out.
	ErrCodeTimeout

	// ErrCodeCanceled is returned when a search operation is canceled.
	ErrCodeCanceled

	// ErrCodeBackendUnavailable is returned when a search backend is absent or unreachable.
	ErrCodeBackendUnavailable

	// ErrCodeSearchFailed is returned when the terminal tier of a resolver fails.
	ErrCodeSearchFailed

	// ErrCodeInvalidTiers is returned when a resolver is built from an unusable tier list.
	ErrCodeInvalidTiers
)

// String returns the human-readable string representation of the error code.
// This implements the fmt.Stringer interface.
func (e ErrorCode) String() string {
	switch e {
	case ErrCodeInvalidOption:
		return "invalid option"
	case ErrCodeTimeout:
		return "operation timed out"
	case ErrCodeCanceled:
		return "operation canceled"
	case ErrCodeBackendUnavailable:
		return "backend unavailable"
	case ErrCodeSearchFailed:
		return "search failed"
	case ErrCodeInvalidTiers:
		return "invalid tiers"
	default:
		return "unknown error"
	}
}

// newErrorWithCode creates a new error with a code and message.
func newErrorWithCode(code ErrorCode, msg string) error {
	err := errors.New(msg)
	return errors.WithSecondaryError(err, errors.Newf("code: %d", int(code)))
}

// Common errors that can be returned by search operations.
var (
	// ErrInvalidOption is returned when an invalid option is provided.
	ErrInvalidOption = newErrorWithCode(ErrCodeInvalidOption, "promptplace: invalid option")

	// ErrTimeout is returned when a search operation times out.
	ErrTimeout = newErrorWithCode(ErrCodeTimeout, "promptplace: operation timed out")

	// ErrCanceled is returned when a search operation is canceled.
	ErrCanceled = newErrorWithCode(ErrCodeCanceled, "promptplace: operation canceled")

	// ErrBackendUnavailable is returned when a search backend is absent or unreachable.
	ErrBackendUnavailable = newErrorWithCode(ErrCodeBackendUnavailable, "promptplace: backend unavailable")

	// ErrSearchFailed is the only error a Resolver surfaces to its caller.
	ErrSearchFailed = newErrorWithCode(ErrCodeSearchFailed, "promptplace: search failed")

	// ErrInvalidTiers is returned by NewResolver for an empty or misordered tier list.
	ErrInvalidTiers = newErrorWithCode(ErrCodeInvalidTiers, "promptplace: invalid tiers")
)

// ContextError maps a context cancellation or deadline into the matching
// sentinel, or returns nil when err is neither.
func ContextError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		return ErrCanceled
	default:
		return nil
	}
}
