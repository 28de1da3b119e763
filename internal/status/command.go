package status

import (
	"fmt"
	"strings"
)

// Command is a word accepted on the daemon's command topic.
type Command string

// Commands understood by the daemon.
const (
	CommandEnter Command = "ENTER"
	CommandExit  Command = "EXIT"
	CommandDump  Command = "DUMP"
)

// Commands returns every command in a stable order.
func Commands() []Command {
	return []Command{CommandEnter, CommandExit, CommandDump}
}

// ParseCommand maps a word to a Command, case-insensitively.
func ParseCommand(s string) (Command, error) {
	candidate := Command(strings.ToUpper(strings.TrimSpace(s)))
	for _, c := range Commands() {
		if candidate == c {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// String returns the wire form of the command.
func (c Command) String() string {
	return string(c)
}

// AcceptedIn reports whether the daemon acts on c while in state.
//
//   - ENTER only from OUT
//   - EXIT only from IN
//   - DUMP from anything except OUT and DUMPING
//
// An unknown state accepts nothing.
func (c Command) AcceptedIn(state RunState) bool {
	if !state.Known() {
		return false
	}

	switch c {
	case CommandEnter:
		return state == StateOut
	case CommandExit:
		return state == StateIn
	case CommandDump:
		return state != StateOut && state != StateDumping
	default:
		return false
	}
}
