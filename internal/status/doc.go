// Package status understands the changeling daemon's wire vocabulary.
//
// The daemon publishes a status line roughly every 100 ms on its status
// topic:
//
//	14:02:07 - STATE=IN;BUFFER_SECONDS=12.400000;
//
// and accepts single-word commands on its command topic: ENTER, EXIT, DUMP.
// A command is only honoured in some states; AcceptedIn mirrors those rules
// so callers can warn before sending a command the daemon will ignore.
//
// # Types
//
//   - RunState: the daemon's lifecycle state
//   - Status: one parsed status line
//   - Command: one command word
//   - Tracker: remembers the last Status and reports state transitions
package status
