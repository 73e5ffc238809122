package acdat

import "errors"

// Sentinel errors returned by builder, automaton and codec operations.
// Callers should use errors.Is against these values rather than matching
// on message text.
var (
	// ErrInvalidArgument is returned when a caller-supplied argument
	// violates a documented precondition: an absent or empty key, a
	// nil entries slice, a negative or out-of-range sub-range, or a
	// nil visitor callback.
	ErrInvalidArgument = errors.New("acdat: invalid argument")

	// ErrInvalidState is returned when an operation is attempted
	// against a builder that has already produced an automaton.
	ErrInvalidState = errors.New("acdat: invalid state")

	// ErrCapacityExhausted is returned when the double array would
	// need to grow past the configured capacity ceiling.
	ErrCapacityExhausted = errors.New("acdat: capacity exhausted")

	// ErrNotSupported is returned when a value's runtime type has no
	// wire representation (for example a struct or an untyped nil).
	ErrNotSupported = errors.New("acdat: value type not supported")

	// ErrCorruptInput is returned when a serialized automaton fails a
	// structural check during loading: a truncated stream, a negative
	// array length other than the nullable-array sentinel, or an
	// unrecognized value type tag.
	ErrCorruptInput = errors.New("acdat: corrupt input")

	// ErrCancelled is returned when a context passed to a cancellable
	// save or load operation is done before the operation completes.
	ErrCancelled = errors.New("acdat: cancelled")
)
