package status

import "errors"

// Domain errors for the status package.
var (
	// ErrMalformedStatus is returned when a status payload does not follow
	// the "HH:MM:SS - KEY=VALUE;..." grammar.
	ErrMalformedStatus = errors.New("status: malformed payload")

	// ErrMissingState is returned when a status payload has no STATE field.
	ErrMissingState = errors.New("status: missing STATE")

	// ErrUnknownCommand is returned for a command word the daemon does not know.
	ErrUnknownCommand = errors.New("status: unknown command")
)
