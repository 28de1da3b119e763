//go:build integration

package mqtt_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nerrad567/changeling-watch/internal/infrastructure/config"
	"github.com/nerrad567/changeling-watch/internal/infrastructure/mqtt"
)

// These tests need a broker on 127.0.0.1:1883.
// Run with: go test -tags=integration ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	cfg := config.Default().MQTT
	cfg.Broker.Host = "127.0.0.1"
	cfg.Broker.ClientID = clientID
	return cfg
}

func TestIntegration_SubscribeReceive(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	topic := fmt.Sprintf("changeling-test/%d", time.Now().UnixNano())
	received := make(chan mqtt.Message, 1)

	sub, err := mqtt.Connect(ctx, integrationConfig("changeling-it-sub"), mqtt.HandlerFunc(func(m mqtt.Message) error {
		received <- m
		return nil
	}))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer sub.Close()

	if err := sub.Subscribe(topic, 1); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	pub, err := mqtt.Connect(ctx, integrationConfig("changeling-it-pub"), mqtt.HandlerFunc(func(mqtt.Message) error { return nil }))
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pub.Close()

	if err := pub.Publish(topic, []byte("ok"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case m := <-received:
		if m.Topic != topic || string(m.Payload) != "ok" {
			t.Errorf("received %+v", m)
		}
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestIntegration_UnreachablePort(t *testing.T) {
	cfg := integrationConfig("changeling-it-unreachable")
	cfg.Broker.Port = 1

	_, err := mqtt.Connect(context.Background(), cfg, mqtt.HandlerFunc(func(mqtt.Message) error { return nil }))
	if err == nil {
		t.Fatal("Connect() to a closed port should fail")
	}
}
