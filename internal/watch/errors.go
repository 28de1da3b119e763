package watch

import "errors"

// Domain errors for the watch package.
var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// loop's current lifecycle state.
	ErrInvalidState = errors.New("watch: invalid state")

	// ErrInboxFull is reported when a message is dropped because handlers
	// are not keeping up.
	ErrInboxFull = errors.New("watch: inbox full")
)
