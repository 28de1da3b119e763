// Package cli implements changeling-ctl, a small command-line companion to
// the watcher.
//
// It speaks to the changeling daemon over the same broker: enter, exit and
// dump publish a command word to the command topic, and status waits for
// the next line on the status topic and prints it parsed.
package cli
