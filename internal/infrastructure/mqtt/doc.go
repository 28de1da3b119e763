// Package mqtt provides MQTT client connectivity for changeling-watch.
//
// This package manages:
//   - A single broker session per Client
//   - Topic subscriptions with wildcard support, re-checked on delivery
//   - Message publishing (used for daemon commands)
//   - Connection loss reporting and optional auto-reconnect
//
// All protocol work (framing, QoS retries, keep-alive) is done by
// github.com/eclipse/paho.mqtt.golang.
//
// # Architecture
//
//	changeling daemon → changeling-status → Broker → Client → Handler
//	changeling-ctl    → changeling-commands → Broker → changeling daemon
//
// # Delivery
//
// The library delivers on its own goroutine, in order. Each delivery is
// copied into a Message and passed to the Handler given at Connect. A
// delivery whose topic matches no registered filter is dropped.
//
// # Connection Loss
//
// The initial connect is attempted once. When reconnect is disabled (the
// default) a dropped session is reported once on Lost(), wrapped in
// ErrConnectionLost. When enabled, the library reconnects with backoff and
// subscriptions are restored.
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT, mqtt.HandlerFunc(func(m mqtt.Message) error {
//	    fmt.Printf("%s: %s\n", m.Topic, m.Payload)
//	    return nil
//	}))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("changeling-status", 0)
package mqtt
