package cli

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nerrad567/changeling-watch/internal/infrastructure/config"
	"github.com/nerrad567/changeling-watch/internal/infrastructure/mqtt"
)

// defaultTimeout bounds connecting plus the command's own wait.
const defaultTimeout = 5 * time.Second

// Session is the part of an MQTT client the commands use. *mqtt.Client satisfies it.
type Session interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(filter string, qos byte) error
	Close() error
}

// Connector opens a Session. handler receives every message on every
// subscription of the session.
type Connector func(ctx context.Context, cfg config.MQTTConfig, handler mqtt.Handler) (Session, error)

// Connect is the production Connector.
func Connect(ctx context.Context, cfg config.MQTTConfig, handler mqtt.Handler) (Session, error) {
	c, err := mqtt.Connect(ctx, cfg, handler)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Options holds the values bound to the root command's flags.
type Options struct {
	Host         string
	Port         int
	Username     string
	Password     string
	Timeout      time.Duration
	StatusTopic  string
	CommandTopic string
	CommandQoS   int
}

// DefaultOptions mirrors the watcher's zero-configuration defaults.
func DefaultOptions() Options {
	cfg := config.Default()
	return Options{
		Host:         cfg.MQTT.Broker.Host,
		Port:         cfg.MQTT.Broker.Port,
		Timeout:      defaultTimeout,
		StatusTopic:  cfg.Watch.StatusTopic,
		CommandTopic: cfg.Watch.CommandTopic,
		CommandQoS:   cfg.Watch.CommandQoS,
	}
}

// mqttConfig builds a broker config with a per-invocation client ID, so the
// tool never takes over the watcher's session.
func (o Options) mqttConfig() config.MQTTConfig {
	cfg := config.Default().MQTT
	cfg.Broker.Host = o.Host
	cfg.Broker.Port = o.Port
	cfg.Broker.ClientID = "changeling-ctl-" + uuid.NewString()[:8]
	cfg.Auth.Username = o.Username
	cfg.Auth.Password = o.Password
	return cfg
}

// NewRootCmd returns the changeling-ctl command tree.
func NewRootCmd(connect Connector) *cobra.Command {
	opts := DefaultOptions()

	rootCmd := &cobra.Command{
		Use:           "changeling-ctl",
		Short:         "Control and inspect a changeling daemon over MQTT",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.Host, "host", "H", opts.Host, "MQTT broker host")
	rootCmd.PersistentFlags().IntVarP(&opts.Port, "port", "p", opts.Port, "MQTT broker port")
	rootCmd.PersistentFlags().StringVarP(&opts.Username, "username", "u", opts.Username, "MQTT username")
	rootCmd.PersistentFlags().StringVar(&opts.Password, "password", opts.Password, "MQTT password")
	rootCmd.PersistentFlags().DurationVarP(&opts.Timeout, "timeout", "t", opts.Timeout, "Connect and wait timeout")
	rootCmd.PersistentFlags().StringVar(&opts.StatusTopic, "status-topic", opts.StatusTopic, "Topic the daemon publishes status on")
	rootCmd.PersistentFlags().StringVar(&opts.CommandTopic, "command-topic", opts.CommandTopic, "Topic the daemon reads commands from")

	rootCmd.AddCommand(newCommandCmds(&opts, connect)...)
	rootCmd.AddCommand(newSendCmd(&opts, connect))
	rootCmd.AddCommand(newStatusCmd(&opts, connect))

	return rootCmd
}
