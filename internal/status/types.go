package status

import (
	"strings"
	"time"
)

// RunState is the daemon's lifecycle state as reported in STATE=.
type RunState string

// Run states published by the daemon.
const (
	StateStarting RunState = "STARTING"
	StateOut      RunState = "OUT"
	StateEntering RunState = "ENTERING"
	StateIn       RunState = "IN"
	StateLeaving  RunState = "LEAVING"
	StateDumping  RunState = "DUMPING"
	StateExiting  RunState = "EXITING"

	// StateUnknown stands for a value this package does not recognise.
	StateUnknown RunState = "UNKNOWN"
)

// knownStates lists every state the daemon publishes.
var knownStates = []RunState{
	StateStarting,
	StateOut,
	StateEntering,
	StateIn,
	StateLeaving,
	StateDumping,
	StateExiting,
}

// ParseRunState maps a STATE value to a RunState, case-insensitively.
// Unrecognised values yield StateUnknown.
func ParseRunState(s string) RunState {
	candidate := RunState(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range knownStates {
		if candidate == known {
			return known
		}
	}
	return StateUnknown
}

// String returns the wire form of the state.
func (s RunState) String() string {
	if s == "" {
		return string(StateUnknown)
	}
	return string(s)
}

// Known reports whether s is a state the daemon publishes.
func (s RunState) Known() bool {
	return ParseRunState(string(s)) != StateUnknown
}

// Status is one parsed status line.
type Status struct {
	// Clock is the daemon's local wall-clock prefix (HH:MM:SS), empty if absent.
	Clock string `json:"clock,omitempty"`

	// State is the daemon's run state.
	State RunState `json:"state"`

	// BufferSeconds is the buffered audio depth; valid only when HasBuffer is set.
	BufferSeconds float64 `json:"buffer_seconds"`
	HasBuffer     bool    `json:"has_buffer"`

	// Fields holds key/value pairs other than STATE and BUFFER_SECONDS.
	Fields map[string]string `json:"fields,omitempty"`

	// Raw is the payload as received.
	Raw string `json:"raw"`
}

// Transition is a change of run state between two consecutive status lines.
type Transition struct {
	From          RunState  `json:"from"`
	To            RunState  `json:"to"`
	BufferSeconds float64   `json:"buffer_seconds"`
	Raw           string    `json:"raw"`
	ObservedAt    time.Time `json:"observed_at"`
}
