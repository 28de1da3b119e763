package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/changeling-watch/internal/infrastructure/mqtt"
	"github.com/nerrad567/changeling-watch/internal/status"
)

// ErrNoStatus is returned by status when nothing arrives before the timeout.
var ErrNoStatus = errors.New("no status received")

var commandHelp = map[status.Command]string{
	status.CommandEnter: "Ask the daemon to start capturing (honoured from OUT)",
	status.CommandExit:  "Ask the daemon to stop capturing (honoured from IN)",
	status.CommandDump:  "Ask the daemon to dump its buffer (ignored while OUT or DUMPING)",
}

// newCommandCmds returns one subcommand per daemon command word.
func newCommandCmds(opts *Options, connect Connector) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(status.Commands()))
	for _, c := range status.Commands() {
		c := c // per-iteration copy (go.mod targets go 1.21 loop semantics)
		cmds = append(cmds, &cobra.Command{
			Use:   strings.ToLower(c.String()),
			Short: commandHelp[c],
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return sendCommand(cmd, opts, connect, c)
			},
		})
	}
	return cmds
}

func newSendCmd(opts *Options, connect Connector) *cobra.Command {
	return &cobra.Command{
		Use:   "send <command>",
		Short: "Send ENTER, EXIT or DUMP to the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := status.ParseCommand(args[0])
			if err != nil {
				return err
			}
			return sendCommand(cmd, opts, connect, c)
		},
	}
}

func newStatusCmd(opts *Options, connect Connector) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Wait for the next status line and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := waitStatus(contextOf(cmd), opts, connect)
			if err != nil {
				return err
			}
			logStatus(cmd.OutOrStdout(), opts.StatusTopic, st)
			return nil
		},
	}
}

// sendCommand publishes c to the command topic and disconnects.
func sendCommand(cmd *cobra.Command, opts *Options, connect Connector, c status.Command) error {
	ctx, cancel := context.WithTimeout(contextOf(cmd), opts.Timeout)
	defer cancel()

	ignore := mqtt.HandlerFunc(func(mqtt.Message) error { return nil })
	session, err := connect(ctx, opts.mqttConfig(), ignore)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Publish(opts.CommandTopic, []byte(c), byte(opts.CommandQoS), false); err != nil { //nolint:gosec // QoS from config defaults
		return fmt.Errorf("sending %s: %w", c, err)
	}

	logSent(cmd.OutOrStdout(), c, opts.CommandTopic)
	return nil
}

// waitStatus subscribes to the status topic and returns the first line
// that parses.
func waitStatus(parent context.Context, opts *Options, connect Connector) (status.Status, error) {
	ctx, cancel := context.WithTimeout(parent, opts.Timeout)
	defer cancel()

	received := make(chan status.Status, 1)
	handler := mqtt.HandlerFunc(func(msg mqtt.Message) error {
		st, err := status.Parse(msg.Payload)
		if err != nil {
			return nil
		}
		select {
		case received <- st:
		default:
		}
		return nil
	})

	session, err := connect(ctx, opts.mqttConfig(), handler)
	if err != nil {
		return status.Status{}, err
	}
	defer session.Close()

	if err := session.Subscribe(opts.StatusTopic, 0); err != nil {
		return status.Status{}, fmt.Errorf("subscribing to %q: %w", opts.StatusTopic, err)
	}

	select {
	case st := <-received:
		return st, nil
	case <-ctx.Done():
		return status.Status{}, fmt.Errorf("%w on %q within %s", ErrNoStatus, opts.StatusTopic, opts.Timeout)
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
