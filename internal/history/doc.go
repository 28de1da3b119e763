// Package history keeps a local record of the daemon's run-state transitions.
//
// The daemon reports its state about ten times a second; only changes are
// stored. Entries live in the status_transitions table created by the
// embedded migrations and are pruned after the configured retention.
//
// Recorder is a watch.Handler: give it the status topic's messages and it
// writes one row per transition. Payloads that are not status lines are
// ignored.
package history
