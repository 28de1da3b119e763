package mqtt

import (
	"testing"

	"github.com/nerrad567/changeling-watch/internal/infrastructure/config"
)

func TestBuildClientOptions_Defaults(t *testing.T) {
	opts := buildClientOptions(config.Default().MQTT)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://localhost:1883" {
		t.Errorf("Servers = %v, want [tcp://localhost:1883]", opts.Servers)
	}
	if opts.ClientID != "changeling-example-client" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "" {
		t.Errorf("Username = %q, want empty", opts.Username)
	}
	if opts.AutoReconnect {
		t.Error("AutoReconnect = true, want false by default")
	}
	if opts.ConnectRetry {
		t.Error("ConnectRetry = true, want false")
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false")
	}
	if opts.KeepAlive != 60 {
		t.Errorf("KeepAlive = %d, want 60", opts.KeepAlive)
	}
}

func TestBuildClientOptions_TLSAndAuth(t *testing.T) {
	cfg := config.Default().MQTT
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	cfg.Auth.Username = "watcher"
	cfg.Auth.Password = "secret"
	cfg.Reconnect.Enabled = true

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://localhost:8883" {
		t.Errorf("Servers[0] = %v, want ssl://localhost:8883", opts.Servers[0])
	}
	if opts.Username != "watcher" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config not applied")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false with reconnect enabled")
	}
}
